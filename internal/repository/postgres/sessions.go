package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type SessionRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SessionRepo) With(db DB) *SessionRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SessionRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const sessionColumns = `id, customer_id, device_id, cafe_id, start_time, end_time, checked_in_at,
	duration_hours, total_amount, status, coupon_code, coupon_discount_type, coupon_discount,
	coupon_min_amount, overstay_penalty, created_at`

const openStatuses = `('ACTIVE', 'EXTENDED')`

func scanSession(row interface{ Scan(...any) error }) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.DeviceID, &s.CafeID, &s.StartTime, &s.EndTime, &s.CheckedInAt,
		&s.DurationHours, &s.TotalAmount, &s.Status, &s.CouponCode, &s.CouponDiscountType,
		&s.CouponDiscount, &s.CouponMinAmount, &s.OverstayPenalty, &s.CreatedAt,
	)
	return s, err
}

func collectSessions(rows pgx.Rows) ([]domain.Session, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Session, error) {
		return scanSession(row)
	})
}

// Create inserts a new open session. The partial unique index on open sessions per
// device makes a second open session for the same device a conflict.
//
// Returns:
//   - error: repository.ErrConflict if the device already has an open session.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	const op = "postgres.SessionRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO sessions(id, customer_id, device_id, cafe_id, start_time, total_amount, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		s.ID, s.CustomerID, s.DeviceID, s.CafeID, s.StartTime, s.TotalAmount, s.Status,
	).Scan(&s.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	const op = "postgres.SessionRepo.Get"

	s, err := scanSession(r.handle().QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		return domain.Session{}, wrapDBErr(op, err)
	}

	return s, nil
}

func (r *SessionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	const op = "postgres.SessionRepo.GetForUpdate"

	s, err := scanSession(r.handle().QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Session{}, wrapDBErr(op, err)
	}

	return s, nil
}

// Finish moves an open session to a terminal status and freezes its amount.
//
// Returns:
//   - error: repository.ErrNotFound if the session does not exist.
//   - error: repository.ErrStatusMismatch if the session is already terminal.
func (r *SessionRepo) Finish(ctx context.Context, id uuid.UUID, f repository.SessionFinish) error {
	const op = "postgres.SessionRepo.Finish"

	tag, err := r.handle().Exec(ctx,
		`UPDATE sessions
		 SET status = $2, end_time = $3, duration_hours = $4, total_amount = $5
		 WHERE id = $1 AND status IN `+openStatuses,
		id, f.Status, f.EndTime, f.DurationHours, f.TotalAmount,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return r.mismatchOrMissing(ctx, op, id, tag.RowsAffected())
}

// Extend adds amount to the running total and marks the session EXTENDED.
func (r *SessionRepo) Extend(ctx context.Context, id uuid.UUID, amount float64) (domain.Session, error) {
	const op = "postgres.SessionRepo.Extend"

	s, err := scanSession(r.handle().QueryRow(ctx,
		`UPDATE sessions
		 SET status = 'EXTENDED', total_amount = total_amount + $2
		 WHERE id = $1 AND status IN `+openStatuses+`
		 RETURNING `+sessionColumns,
		id, amount,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, r.mismatchOrMissing(ctx, op, id, 0)
		}
		return domain.Session{}, wrapDBErr(op, err)
	}

	return s, nil
}

// CheckIn stamps the first check-in of an open session.
//
// Returns:
//   - error: repository.ErrAlreadySet if the session was already checked in.
//   - error: repository.ErrStatusMismatch if the session is terminal.
func (r *SessionRepo) CheckIn(ctx context.Context, id uuid.UUID, at time.Time) error {
	const op = "postgres.SessionRepo.CheckIn"

	tag, err := r.handle().Exec(ctx,
		`UPDATE sessions SET checked_in_at = $2
		 WHERE id = $1 AND checked_in_at IS NULL AND status IN `+openStatuses,
		id, at,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	s, err := r.Get(ctx, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if s.CheckedInAt != nil && s.Status.Open() {
		return wrapDBErr(op, repository.ErrAlreadySet)
	}

	return wrapDBErr(op, repository.ErrStatusMismatch)
}

// AttachCoupon stores the coupon terms on an open session that has none yet.
//
// Returns:
//   - error: repository.ErrAlreadySet if a coupon is already attached.
//   - error: repository.ErrStatusMismatch if the session is terminal.
func (r *SessionRepo) AttachCoupon(ctx context.Context, id uuid.UUID, c repository.CouponAttachment) error {
	const op = "postgres.SessionRepo.AttachCoupon"

	tag, err := r.handle().Exec(ctx,
		`UPDATE sessions
		 SET coupon_code = $2, coupon_discount_type = $3, coupon_discount = $4, coupon_min_amount = $5
		 WHERE id = $1 AND coupon_code IS NULL AND status IN `+openStatuses,
		id, c.Code, c.DiscountType, c.Discount, c.MinAmount,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	s, err := r.Get(ctx, id)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if s.CouponCode != nil && s.Status.Open() {
		return wrapDBErr(op, repository.ErrAlreadySet)
	}

	return wrapDBErr(op, repository.ErrStatusMismatch)
}

// MarkOverstay overwrites duration and amount with values computed from the
// original start time, so repeated sweeps never accumulate.
func (r *SessionRepo) MarkOverstay(ctx context.Context, id uuid.UUID, durationHours, totalAmount float64) error {
	const op = "postgres.SessionRepo.MarkOverstay"

	tag, err := r.handle().Exec(ctx,
		`UPDATE sessions
		 SET duration_hours = $2, total_amount = $3, overstay_penalty = true
		 WHERE id = $1 AND status IN `+openStatuses,
		id, durationHours, totalAmount,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return r.mismatchOrMissing(ctx, op, id, tag.RowsAffected())
}

func (r *SessionRepo) ListOpen(ctx context.Context, f repository.OpenSessionFilter) ([]domain.Session, error) {
	const op = "postgres.SessionRepo.ListOpen"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	statuses := make([]string, 0, len(f.Statuses))
	for _, st := range f.Statuses {
		statuses = append(statuses, string(st))
	}

	rows, err := r.handle().Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE cafe_id = ANY($1)
		   AND status = ANY($2)
		   AND start_time < $3
		   AND (NOT $4 OR checked_in_at IS NULL)
		   AND (start_time, id) > ($6, $7)
		 ORDER BY start_time, id
		 LIMIT $5`,
		f.CafeIDs, statuses, f.StartedBefore, f.NotCheckedIn, limit, f.After.StartTime, f.After.ID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return sessions, nil
}

func (r *SessionRepo) ListByCafe(
	ctx context.Context,
	cafeID uuid.UUID,
	status *domain.SessionStatus,
	limit int,
) ([]domain.Session, error) {
	const op = "postgres.SessionRepo.ListByCafe"

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.handle().Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE cafe_id = $1 AND ($2::text IS NULL OR status = $2)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		cafeID, status, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return sessions, nil
}

func (r *SessionRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.Session, error) {
	const op = "postgres.SessionRepo.ListByCustomer"

	if limit <= 0 {
		limit = 50
	}

	rows, err := r.handle().Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE customer_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		customerID, limit,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return sessions, nil
}

func (r *SessionRepo) Stats(ctx context.Context, cafeID uuid.UUID, since time.Time) (domain.CafeStats, error) {
	const op = "postgres.SessionRepo.Stats"

	var st domain.CafeStats
	if err := r.handle().QueryRow(ctx,
		`SELECT
		   (SELECT count(*) FROM devices WHERE cafe_id = $1 AND is_active),
		   (SELECT count(*) FROM sessions WHERE cafe_id = $1 AND status IN `+openStatuses+`),
		   COALESCE(sum(total_amount), 0)::float8,
		   count(*),
		   COALESCE(avg(duration_hours), 0)::float8
		 FROM sessions
		 WHERE cafe_id = $1 AND status = 'COMPLETED' AND end_time >= $2`,
		cafeID, since,
	).Scan(&st.TotalDevices, &st.ActiveSessions, &st.RevenueSince, &st.CompletedCount, &st.AvgDurationHours); err != nil {
		return domain.CafeStats{}, wrapDBErr(op, err)
	}

	return st, nil
}

func (r *SessionRepo) mismatchOrMissing(ctx context.Context, op string, id uuid.UUID, affected int64) error {
	if affected == 1 {
		return nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return wrapDBErr(op, err)
	}

	return wrapDBErr(op, repository.ErrStatusMismatch)
}
