package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
	postgres "github.com/kirinyoku/gamecafe/internal/repository/postgres"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// TxFunc is the body of a unit of work. Repositories in repos share one transaction.
type TxFunc func(ctx context.Context, repos repository.Repos, after func(AfterCommit)) error

// Runner is implemented by every storage backend.
type Runner interface {
	// Do runs fn atomically. After a successful commit it executes all after-commit hooks.
	Do(ctx context.Context, fn TxFunc) error
	// Repos returns repositories that run outside of any transaction.
	Repos() repository.Repos
}

const maxAttempts = 3

// UoW represents a unit of work over postgres.
type UoW struct {
	store *postgres.Store
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{store: store}
}

func (u *UoW) Repos() repository.Repos {
	return u.store.Repos(nil)
}

// Do runs fn inside a serializable transaction and retries it on serialization
// failures. Hooks registered by a failed attempt are discarded.
func (u *UoW) Do(ctx context.Context, fn TxFunc) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn inside the transaction with the given options. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) DoWithOpts(ctx context.Context, opts *pgx.TxOptions, fn TxFunc) error {
	const op = "uow.UoW.Do"

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var hooks []AfterCommit

		err = u.store.RunTx(ctx, opts, func(ctx context.Context, tx postgres.DB) error {
			return fn(ctx, u.store.Repos(tx), func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if err == nil {
			for _, h := range hooks {
				h(ctx)
			}
			return nil
		}

		if !postgres.IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}

	if postgres.IsRetryable(err) || postgres.IsConnErr(err) {
		return fmt.Errorf("%s:%w", op, domain.Upstream(err))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s:%w", op, domain.Upstream(err))
	}

	return err
}
