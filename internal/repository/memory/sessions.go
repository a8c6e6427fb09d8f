package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type sessionRepo struct{ h handle }

func sessionCreated(s domain.Session) time.Time { return s.CreatedAt }

func (r sessionRepo) Create(_ context.Context, s *domain.Session) error {
	const op = "memory.SessionRepo.Create"

	return r.h.run(func(st *state) error {
		if _, ok := st.users.get(s.CustomerID); !ok {
			return fail(op, repository.ErrNotFound)
		}
		if _, ok := st.devices.get(s.DeviceID); !ok {
			return fail(op, repository.ErrNotFound)
		}
		for _, other := range st.sessions.rows {
			if other.DeviceID == s.DeviceID && other.Status.Open() {
				return fail(op, fmt.Errorf("%w: sessions_open_device_uq", repository.ErrConflict))
			}
		}

		s.CreatedAt = r.h.now()
		st.sessions.insert(s.ID, *s)
		return nil
	})
}

func (r sessionRepo) Get(_ context.Context, id uuid.UUID) (domain.Session, error) {
	const op = "memory.SessionRepo.Get"

	var s domain.Session
	err := r.h.run(func(st *state) error {
		found, ok := st.sessions.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		s = found
		return nil
	})
	return s, err
}

// GetForUpdate is Get: a unit of work already holds the store lock.
func (r sessionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	return r.Get(ctx, id)
}

// mutateOpen applies fn to an open session and stores the result.
func (r sessionRepo) mutateOpen(op string, id uuid.UUID, fn func(s *domain.Session) error) (domain.Session, error) {
	var out domain.Session
	err := r.h.run(func(st *state) error {
		s, ok := st.sessions.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		if !s.Status.Open() {
			return fail(op, repository.ErrStatusMismatch)
		}
		if err := fn(&s); err != nil {
			return fail(op, err)
		}
		st.sessions.put(id, s)
		out = s
		return nil
	})
	return out, err
}

func (r sessionRepo) Finish(_ context.Context, id uuid.UUID, f repository.SessionFinish) error {
	_, err := r.mutateOpen("memory.SessionRepo.Finish", id, func(s *domain.Session) error {
		end := f.EndTime
		dur := f.DurationHours
		s.Status = f.Status
		s.EndTime = &end
		s.DurationHours = &dur
		s.TotalAmount = f.TotalAmount
		return nil
	})
	return err
}

func (r sessionRepo) Extend(_ context.Context, id uuid.UUID, amount float64) (domain.Session, error) {
	return r.mutateOpen("memory.SessionRepo.Extend", id, func(s *domain.Session) error {
		s.Status = domain.SessionExtended
		s.TotalAmount += amount
		return nil
	})
}

func (r sessionRepo) CheckIn(_ context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.mutateOpen("memory.SessionRepo.CheckIn", id, func(s *domain.Session) error {
		if s.CheckedInAt != nil {
			return repository.ErrAlreadySet
		}
		in := at
		s.CheckedInAt = &in
		return nil
	})
	return err
}

func (r sessionRepo) AttachCoupon(_ context.Context, id uuid.UUID, c repository.CouponAttachment) error {
	_, err := r.mutateOpen("memory.SessionRepo.AttachCoupon", id, func(s *domain.Session) error {
		if s.CouponCode != nil {
			return repository.ErrAlreadySet
		}
		code, kind, discount := c.Code, c.DiscountType, c.Discount
		s.CouponCode = &code
		s.CouponDiscountType = &kind
		s.CouponDiscount = &discount
		s.CouponMinAmount = c.MinAmount
		return nil
	})
	return err
}

func (r sessionRepo) MarkOverstay(_ context.Context, id uuid.UUID, durationHours, totalAmount float64) error {
	_, err := r.mutateOpen("memory.SessionRepo.MarkOverstay", id, func(s *domain.Session) error {
		dur := durationHours
		s.DurationHours = &dur
		s.TotalAmount = totalAmount
		s.OverstayPenalty = true
		return nil
	})
	return err
}

func (r sessionRepo) ListOpen(_ context.Context, f repository.OpenSessionFilter) ([]domain.Session, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	var out []domain.Session
	err := r.h.run(func(st *state) error {
		for _, s := range st.sessions.all() {
			if !slices.Contains(f.CafeIDs, s.CafeID) || !slices.Contains(f.Statuses, s.Status) {
				continue
			}
			if !s.StartTime.Before(f.StartedBefore) {
				continue
			}
			if f.NotCheckedIn && s.CheckedInAt != nil {
				continue
			}
			if compareCursor(repository.CursorAt(s), f.After) <= 0 {
				continue
			}
			out = append(out, s)
		}
		sort.Slice(out, func(i, j int) bool {
			return compareCursor(repository.CursorAt(out[i]), repository.CursorAt(out[j])) < 0
		})
		out = limited(out, limit)
		return nil
	})
	return out, err
}

func (r sessionRepo) ListByCafe(
	_ context.Context,
	cafeID uuid.UUID,
	status *domain.SessionStatus,
	limit int,
) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 100
	}

	var out []domain.Session
	err := r.h.run(func(st *state) error {
		for _, s := range newestFirst(st.sessions, sessionCreated) {
			if s.CafeID != cafeID || (status != nil && s.Status != *status) {
				continue
			}
			out = append(out, s)
		}
		out = limited(out, limit)
		return nil
	})
	return out, err
}

func (r sessionRepo) ListByCustomer(_ context.Context, customerID uuid.UUID, limit int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	var out []domain.Session
	err := r.h.run(func(st *state) error {
		for _, s := range newestFirst(st.sessions, sessionCreated) {
			if s.CustomerID == customerID {
				out = append(out, s)
			}
		}
		out = limited(out, limit)
		return nil
	})
	return out, err
}

func (r sessionRepo) Stats(_ context.Context, cafeID uuid.UUID, since time.Time) (domain.CafeStats, error) {
	var stats domain.CafeStats
	err := r.h.run(func(st *state) error {
		for _, d := range st.devices.rows {
			if d.CafeID == cafeID && d.IsActive {
				stats.TotalDevices++
			}
		}

		var durations float64
		for _, s := range st.sessions.rows {
			if s.CafeID != cafeID {
				continue
			}
			if s.Status.Open() {
				stats.ActiveSessions++
				continue
			}
			if s.Status != domain.SessionCompleted || s.EndTime == nil || s.EndTime.Before(since) {
				continue
			}
			stats.CompletedCount++
			stats.RevenueSince += s.TotalAmount
			if s.DurationHours != nil {
				durations += *s.DurationHours
			}
		}

		if stats.CompletedCount > 0 {
			stats.AvgDurationHours = durations / float64(stats.CompletedCount)
		}
		return nil
	})
	return stats, err
}

// compareCursor orders like postgres compares (start_time, id) row values.
func compareCursor(a, b repository.SessionCursor) int {
	if c := a.StartTime.Compare(b.StartTime); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}
