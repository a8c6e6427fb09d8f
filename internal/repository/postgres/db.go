package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Users() *UserRepo              { return &UserRepo{pool: s.pool} }
func (s *Store) Cafes() *CafeRepo              { return &CafeRepo{pool: s.pool} }
func (s *Store) Devices() *DeviceRepo          { return &DeviceRepo{pool: s.pool} }
func (s *Store) Maintenance() *MaintenanceRepo { return &MaintenanceRepo{pool: s.pool} }
func (s *Store) HealthLogs() *HealthLogRepo    { return &HealthLogRepo{pool: s.pool} }
func (s *Store) Sessions() *SessionRepo        { return &SessionRepo{pool: s.pool} }
func (s *Store) Pricing() *PricingRepo         { return &PricingRepo{pool: s.pool} }
func (s *Store) Coupons() *CouponRepo          { return &CouponRepo{pool: s.pool} }
func (s *Store) Wallet() *WalletRepo           { return &WalletRepo{pool: s.pool} }
func (s *Store) Passes() *PassRepo             { return &PassRepo{pool: s.pool} }

// Repos binds every repository to db. A nil db falls back to the pool.
func (s *Store) Repos(db DB) repository.Repos {
	return &repos{store: s, db: db}
}

type repos struct {
	store *Store
	db    DB
}

func (r *repos) Users() repository.UserRepository          { return r.store.Users().With(r.db) }
func (r *repos) Cafes() repository.CafeRepository          { return r.store.Cafes().With(r.db) }
func (r *repos) Devices() repository.DeviceRepository      { return r.store.Devices().With(r.db) }
func (r *repos) Sessions() repository.SessionRepository    { return r.store.Sessions().With(r.db) }
func (r *repos) Pricing() repository.PricingRepository     { return r.store.Pricing().With(r.db) }
func (r *repos) Coupons() repository.CouponRepository      { return r.store.Coupons().With(r.db) }
func (r *repos) Wallet() repository.WalletRepository       { return r.store.Wallet().With(r.db) }
func (r *repos) Passes() repository.PassRepository         { return r.store.Passes().With(r.db) }
func (r *repos) Maintenance() repository.MaintenanceRepository {
	return r.store.Maintenance().With(r.db)
}
func (r *repos) HealthLogs() repository.HealthLogRepository {
	return r.store.HealthLogs().With(r.db)
}
