package gormrepo

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is one AI insight exchange.
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;index:idx_conversations_owner_created,priority:1"`
	CafeID    uuid.UUID `gorm:"type:uuid;not null"`
	Agent     string    `gorm:"size:32;not null"`
	Message   string    `gorm:"type:text;not null"`
	Response  string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_conversations_owner_created,priority:2,sort:desc"`
}

// PushSubscription is a browser push endpoint registered by a user.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
