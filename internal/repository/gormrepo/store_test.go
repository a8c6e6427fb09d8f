package gormrepo

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestConversations(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newSQLiteDB(t))

	owner, cafe := uuid.New(), uuid.New()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		c := &Conversation{
			OwnerID:   owner,
			CafeID:    cafe,
			Agent:     "OWNER_ASSISTANT",
			Message:   "how busy",
			Response:  "busy",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.SaveConversation(ctx, c))
		assert.NotEqual(t, uuid.Nil, c.ID)
	}
	require.NoError(t, s.SaveConversation(ctx, &Conversation{OwnerID: uuid.New(), CafeID: cafe, Agent: "X", Message: "m", Response: "r"}))

	got, err := s.Conversations(ctx, owner, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newSQLiteDB(t))
	user := uuid.New()

	sub := &PushSubscription{Endpoint: "https://push.example/1", UserID: user, P256DH: "k1", Auth: "a1"}
	require.NoError(t, s.SaveSubscription(ctx, sub))

	// same endpoint re-registered with new keys
	require.NoError(t, s.SaveSubscription(ctx, &PushSubscription{Endpoint: "https://push.example/1", UserID: user, P256DH: "k2", Auth: "a2"}))

	subs, err := s.Subscriptions(ctx, user)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "k2", subs[0].P256DH)

	require.NoError(t, s.DeleteSubscription(ctx, "https://push.example/1"))
	subs, err = s.Subscriptions(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestDeleteSubscription_Postgres(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = $1`)).
		WithArgs("https://push.example/gone").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteSubscription(context.Background(), "https://push.example/gone"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
