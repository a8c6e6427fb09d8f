package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type CouponRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CouponRepo) With(db DB) *CouponRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CouponRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const couponColumns = `id, cafe_id, code, discount_type, discount_value, min_amount, max_uses,
	used_count, valid_from, valid_until, is_active, created_at`

func scanCoupon(row interface{ Scan(...any) error }) (domain.Coupon, error) {
	var c domain.Coupon
	err := row.Scan(
		&c.ID, &c.CafeID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinAmount, &c.MaxUses,
		&c.UsedCount, &c.ValidFrom, &c.ValidUntil, &c.IsActive, &c.CreatedAt,
	)
	return c, err
}

// Create inserts a coupon. Codes are stored upper-cased.
//
// Returns:
//   - error: repository.ErrConflict if the café already has the code.
func (r *CouponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	const op = "postgres.CouponRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO coupons(id, cafe_id, code, discount_type, discount_value, min_amount, max_uses,
		                     valid_from, valid_until, is_active)
		 VALUES ($1, $2, upper($3), $4, $5, $6, $7, $8, $9, $10)
		 RETURNING code, used_count, created_at`,
		c.ID, c.CafeID, c.Code, c.DiscountType, c.DiscountValue, c.MinAmount, c.MaxUses,
		c.ValidFrom, c.ValidUntil, c.IsActive,
	).Scan(&c.Code, &c.UsedCount, &c.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *CouponRepo) GetByCode(ctx context.Context, cafeID uuid.UUID, code string) (domain.Coupon, error) {
	const op = "postgres.CouponRepo.GetByCode"

	c, err := scanCoupon(r.handle().QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons
		 WHERE cafe_id = $1 AND code = upper($2)`,
		cafeID, code,
	))
	if err != nil {
		return domain.Coupon{}, wrapDBErr(op, err)
	}

	return c, nil
}

func (r *CouponRepo) ListByCafe(ctx context.Context, cafeID uuid.UUID) ([]domain.Coupon, error) {
	const op = "postgres.CouponRepo.ListByCafe"

	rows, err := r.handle().Query(ctx,
		`SELECT `+couponColumns+` FROM coupons
		 WHERE cafe_id = $1
		 ORDER BY created_at DESC`, cafeID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	coupons, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Coupon, error) {
		return scanCoupon(row)
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return coupons, nil
}

// IncrementUsage is a conditional increment: the cap check and the increment are
// one statement, so concurrent redemptions cannot overshoot max_uses.
//
// Returns:
//   - error: repository.ErrLimitReached if used_count already equals max_uses.
func (r *CouponRepo) IncrementUsage(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.CouponRepo.IncrementUsage"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE coupons SET used_count = used_count + 1
		 WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)`,
		id,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}

	if !exists {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return wrapDBErr(op, repository.ErrLimitReached)
}
