package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/kirinyoku/gamecafe/internal/repository"
)

// unsentErr is what pgconn returns when the query never reached the server.
type unsentErr struct{}

func (unsentErr) Error() string     { return "conn closed" }
func (unsentErr) SafeToRetry() bool { return true }

func TestWrapDBErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: repository.ErrNotFound},
		{name: "unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "users_phone_key"}, want: repository.ErrConflict},
		{name: "one open session per device", err: &pgconn.PgError{Code: "23505", ConstraintName: "sessions_open_device_uq"}, want: repository.ErrConflict},
		{name: "exclusion", err: &pgconn.PgError{Code: "23P01"}, want: repository.ErrConflict},
		{name: "foreign key", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), want: repository.ErrNotFound},
		{name: "deadline", err: fmt.Errorf("query: %w", context.DeadlineExceeded), want: repository.ErrUnavailable},
		{name: "never sent", err: unsentErr{}, want: repository.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapDBErr("op", tt.err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.NoError(t, wrapDBErr("op", nil))

	other := errors.New("boom")
	assert.ErrorIs(t, wrapDBErr("op", other), other)
	assert.NotErrorIs(t, wrapDBErr("op", other), repository.ErrUnavailable)

	// the driver error stays reachable for the unit of work
	assert.True(t, IsConnErr(wrapDBErr("op", unsentErr{})))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("x")))
}
