// Package memory keeps every repository in process memory. It backs STORAGE_DRIVER=memory
// and the service tests.
//
// A unit of work holds the store mutex for its whole body and restores a snapshot of all
// tables when the body fails, so Do is serializable and atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

type table[T any] struct {
	rows  map[uuid.UUID]T
	order []uuid.UUID
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[uuid.UUID]T)}
}

func (t table[T]) clone() table[T] {
	cp := table[T]{
		rows:  make(map[uuid.UUID]T, len(t.rows)),
		order: append([]uuid.UUID(nil), t.order...),
	}
	for k, v := range t.rows {
		cp.rows[k] = v
	}
	return cp
}

func (t *table[T]) insert(id uuid.UUID, v T) {
	t.rows[id] = v
	t.order = append(t.order, id)
}

func (t table[T]) get(id uuid.UUID) (T, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t *table[T]) put(id uuid.UUID, v T) {
	t.rows[id] = v
}

// all returns rows in insertion order.
func (t table[T]) all() []T {
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

// newestFirst returns rows sorted by created descending, latest insert first on ties.
func newestFirst[T any](t table[T], created func(T) time.Time) []T {
	rows := t.all()
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return created(rows[i]).After(created(rows[j]))
	})
	return rows
}

func limited[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

type state struct {
	users       table[domain.User]
	cafes       table[domain.Cafe]
	devices     table[domain.Device]
	maintenance table[domain.MaintenanceRecord]
	health      table[domain.DeviceHealthLog]
	sessions    table[domain.Session]
	rules       table[domain.PricingRule]
	coupons     table[domain.Coupon]
	wallet      table[domain.WalletTransaction]
	passes      table[domain.Pass]
}

func newState() *state {
	return &state{
		users:       newTable[domain.User](),
		cafes:       newTable[domain.Cafe](),
		devices:     newTable[domain.Device](),
		maintenance: newTable[domain.MaintenanceRecord](),
		health:      newTable[domain.DeviceHealthLog](),
		sessions:    newTable[domain.Session](),
		rules:       newTable[domain.PricingRule](),
		coupons:     newTable[domain.Coupon](),
		wallet:      newTable[domain.WalletTransaction](),
		passes:      newTable[domain.Pass](),
	}
}

func (s *state) clone() *state {
	return &state{
		users:       s.users.clone(),
		cafes:       s.cafes.clone(),
		devices:     s.devices.clone(),
		maintenance: s.maintenance.clone(),
		health:      s.health.clone(),
		sessions:    s.sessions.clone(),
		rules:       s.rules.clone(),
		coupons:     s.coupons.clone(),
		wallet:      s.wallet.clone(),
		passes:      s.passes.clone(),
	}
}

type Option func(*Store)

// WithClock sets the clock used for created_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ uow.Runner = (*Store)(nil)

func New(opts ...Option) *Store {
	s := &Store{
		st:  newState(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repos returns repositories that lock the store per call.
func (s *Store) Repos() repository.Repos {
	return &repos{h: handle{s: s}}
}

// Do runs fn with the store locked. When fn fails every table is restored to its state
// before the call and the registered hooks are dropped.
func (s *Store) Do(ctx context.Context, fn uow.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var hooks []uow.AfterCommit

	if err := s.locked(func() error {
		return fn(ctx, &repos{h: handle{s: s, locked: true}}, func(h uow.AfterCommit) {
			hooks = append(hooks, h)
		})
	}); err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

func (s *Store) locked(fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	return fn()
}

type handle struct {
	s      *Store
	locked bool
}

func (h handle) run(fn func(st *state) error) error {
	if !h.locked {
		h.s.mu.Lock()
		defer h.s.mu.Unlock()
	}
	return fn(h.s.st)
}

func (h handle) now() time.Time {
	return h.s.now().UTC()
}

type repos struct {
	h handle
}

func (r *repos) Users() repository.UserRepository              { return userRepo{r.h} }
func (r *repos) Cafes() repository.CafeRepository              { return cafeRepo{r.h} }
func (r *repos) Devices() repository.DeviceRepository          { return deviceRepo{r.h} }
func (r *repos) Maintenance() repository.MaintenanceRepository { return maintenanceRepo{r.h} }
func (r *repos) HealthLogs() repository.HealthLogRepository    { return healthRepo{r.h} }
func (r *repos) Sessions() repository.SessionRepository        { return sessionRepo{r.h} }
func (r *repos) Pricing() repository.PricingRepository         { return pricingRepo{r.h} }
func (r *repos) Coupons() repository.CouponRepository          { return couponRepo{r.h} }
func (r *repos) Wallet() repository.WalletRepository           { return walletRepo{r.h} }
func (r *repos) Passes() repository.PassRepository             { return passRepo{r.h} }
