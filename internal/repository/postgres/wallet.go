package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type WalletRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *WalletRepo) With(db DB) *WalletRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *WalletRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Append writes the ledger row and moves the cached balance in the same
// round trip. Callers run it inside a unit of work so both land or neither does.
//
// Returns:
//   - error: repository.ErrNotFound if the customer does not exist.
func (r *WalletRepo) Append(ctx context.Context, tx *domain.WalletTransaction) error {
	const op = "postgres.WalletRepo.Append"

	return r.appendCore(ctx, op, tx, false)
}

// AppendCovered is Append guarded by wallet_balance >= -amount.
//
// Returns:
//   - error: repository.ErrInsufficientFunds if the balance does not cover the outflow.
//   - error: repository.ErrNotFound if the customer does not exist.
func (r *WalletRepo) AppendCovered(ctx context.Context, tx *domain.WalletTransaction) error {
	const op = "postgres.WalletRepo.AppendCovered"

	return r.appendCore(ctx, op, tx, true)
}

func (r *WalletRepo) appendCore(ctx context.Context, op string, tx *domain.WalletTransaction, covered bool) error {
	db := r.handle()

	var bumped bool
	if err := db.QueryRow(ctx,
		`WITH bumped AS (
		   UPDATE users SET wallet_balance = wallet_balance + $2
		   WHERE id = $1 AND (NOT $3 OR wallet_balance + $2 >= 0)
		   RETURNING id
		 )
		 SELECT EXISTS (SELECT 1 FROM bumped)`,
		tx.CustomerID, tx.Amount, covered,
	).Scan(&bumped); err != nil {
		return wrapDBErr(op, err)
	}

	if !bumped {
		var exists bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, tx.CustomerID,
		).Scan(&exists); err != nil {
			return wrapDBErr(op, err)
		}
		if !exists {
			return wrapDBErr(op, repository.ErrNotFound)
		}
		return wrapDBErr(op, repository.ErrInsufficientFunds)
	}

	if err := db.QueryRow(ctx,
		`INSERT INTO wallet_transactions(id, customer_id, amount, transaction_type, description, reference_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		tx.ID, tx.CustomerID, tx.Amount, tx.Type, tx.Description, tx.ReferenceID,
	).Scan(&tx.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *WalletRepo) Balance(ctx context.Context, customerID uuid.UUID) (float64, error) {
	const op = "postgres.WalletRepo.Balance"

	var balance float64
	if err := r.handle().QueryRow(ctx,
		`SELECT wallet_balance FROM users WHERE id = $1`, customerID,
	).Scan(&balance); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return balance, nil
}

func (r *WalletRepo) LedgerSum(ctx context.Context, customerID uuid.UUID) (float64, error) {
	const op = "postgres.WalletRepo.LedgerSum"

	var sum float64
	if err := r.handle().QueryRow(ctx,
		`SELECT COALESCE(sum(amount), 0) FROM wallet_transactions WHERE customer_id = $1`,
		customerID,
	).Scan(&sum); err != nil {
		return 0, wrapDBErr(op, err)
	}

	return sum, nil
}

func (r *WalletRepo) List(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	const op = "postgres.WalletRepo.List"

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.handle().Query(ctx,
		`SELECT id, customer_id, amount, transaction_type, description, reference_id, created_at
		 FROM wallet_transactions
		 WHERE customer_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		customerID, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WalletTransaction, error) {
		var t domain.WalletTransaction
		err := row.Scan(&t.ID, &t.CustomerID, &t.Amount, &t.Type, &t.Description, &t.ReferenceID, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return txs, nil
}
