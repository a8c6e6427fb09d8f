package gormrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveConversation(ctx context.Context, c *Conversation) error {
	const op = "gormrepo.Store.SaveConversation"

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Conversations returns the owner's latest exchanges, newest first.
func (s *Store) Conversations(ctx context.Context, ownerID uuid.UUID, limit int) ([]Conversation, error) {
	const op = "gormrepo.Store.Conversations"

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var out []Conversation
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// SaveSubscription registers the endpoint for the user, replacing its keys if it exists.
func (s *Store) SaveSubscription(ctx context.Context, sub *PushSubscription) error {
	const op = "gormrepo.Store.SaveSubscription"

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
		}).
		Create(sub).Error
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Store) Subscriptions(ctx context.Context, userID uuid.UUID) ([]PushSubscription, error) {
	const op = "gormrepo.Store.Subscriptions"

	var out []PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (s *Store) DeleteSubscription(ctx context.Context, endpoint string) error {
	const op = "gormrepo.Store.DeleteSubscription"

	if err := s.db.WithContext(ctx).Delete(&PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}
