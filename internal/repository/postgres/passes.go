package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

type PassRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PassRepo) With(db DB) *PassRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PassRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *PassRepo) Create(ctx context.Context, p *domain.Pass) error {
	const op = "postgres.PassRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO passes(id, customer_id, cafe_id, pass_type, hours_included, price, valid_from, valid_until)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING hours_used, is_active, created_at`,
		p.ID, p.CustomerID, p.CafeID, p.Type, p.HoursIncluded, p.Price, p.ValidFrom, p.ValidUntil,
	).Scan(&p.HoursUsed, &p.IsActive, &p.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *PassRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Pass, error) {
	const op = "postgres.PassRepo.ListByCustomer"

	rows, err := r.handle().Query(ctx,
		`SELECT id, customer_id, cafe_id, pass_type, hours_included, hours_used, price,
		        valid_from, valid_until, is_active, created_at
		 FROM passes
		 WHERE customer_id = $1
		 ORDER BY created_at DESC
		 LIMIT 50`, customerID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	passes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Pass, error) {
		var p domain.Pass
		err := row.Scan(
			&p.ID, &p.CustomerID, &p.CafeID, &p.Type, &p.HoursIncluded, &p.HoursUsed, &p.Price,
			&p.ValidFrom, &p.ValidUntil, &p.IsActive, &p.CreatedAt,
		)
		return p, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return passes, nil
}
