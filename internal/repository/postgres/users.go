package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const userColumns = `id, phone, name, email, role, cafe_id, wallet_balance, referral_code, referred_by, created_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Phone, &u.Name, &u.Email, &u.Role, &u.CafeID,
		&u.WalletBalance, &u.ReferralCode, &u.ReferredBy, &u.CreatedAt,
	)
	return u, err
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	const op = "postgres.UserRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO users(id, phone, name, email, role, cafe_id, referral_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING wallet_balance, created_at`,
		u.ID, u.Phone, u.Name, u.Email, u.Role, u.CafeID, u.ReferralCode,
	).Scan(&u.WalletBalance, &u.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *UserRepo) Get(ctx context.Context, id uuid.UUID) (domain.User, error) {
	const op = "postgres.UserRepo.Get"

	u, err := scanUser(r.handle().QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, wrapDBErr(op, err)
	}

	return u, nil
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	const op = "postgres.UserRepo.GetByPhone"

	u, err := scanUser(r.handle().QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
	if err != nil {
		return domain.User{}, wrapDBErr(op, err)
	}

	return u, nil
}

func (r *UserRepo) GetByReferralCode(ctx context.Context, code string) (domain.User, error) {
	const op = "postgres.UserRepo.GetByReferralCode"

	u, err := scanUser(r.handle().QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = upper($1)`, code))
	if err != nil {
		return domain.User{}, wrapDBErr(op, err)
	}

	return u, nil
}

func (r *UserRepo) SetReferredBy(ctx context.Context, id, referrerID uuid.UUID) error {
	const op = "postgres.UserRepo.SetReferredBy"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE users SET referred_by = $2
		 WHERE id = $1 AND referred_by IS NULL`,
		id, referrerID,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return wrapDBErr(op, err)
	}

	return wrapDBErr(op, repository.ErrAlreadySet)
}
