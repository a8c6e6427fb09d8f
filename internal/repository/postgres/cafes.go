package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

type CafeRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CafeRepo) With(db DB) *CafeRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CafeRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

func (r *CafeRepo) Create(ctx context.Context, c *domain.Cafe) error {
	const op = "postgres.CafeRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO cafes(id, owner_id, name, address, city)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING is_active, created_at`,
		c.ID, c.OwnerID, c.Name, c.Address, c.City,
	).Scan(&c.IsActive, &c.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *CafeRepo) Get(ctx context.Context, id uuid.UUID) (domain.Cafe, error) {
	const op = "postgres.CafeRepo.Get"

	var c domain.Cafe
	if err := r.handle().QueryRow(ctx,
		`SELECT id, owner_id, name, address, city, is_active, created_at
		 FROM cafes WHERE id = $1`, id,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Address, &c.City, &c.IsActive, &c.CreatedAt); err != nil {
		return domain.Cafe{}, wrapDBErr(op, err)
	}

	return c, nil
}

func (r *CafeRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Cafe, error) {
	const op = "postgres.CafeRepo.ListByOwner"

	rows, err := r.handle().Query(ctx,
		`SELECT id, owner_id, name, address, city, is_active, created_at
		 FROM cafes WHERE owner_id = $1
		 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	cafes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Cafe, error) {
		var c domain.Cafe
		err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Address, &c.City, &c.IsActive, &c.CreatedAt)
		return c, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return cafes, nil
}

func (r *CafeRepo) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	const op = "postgres.CafeRepo.ListActiveIDs"

	rows, err := r.handle().Query(ctx, `SELECT id FROM cafes WHERE is_active`)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return ids, nil
}
