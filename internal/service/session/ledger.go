// Package session runs the session lifecycle: start, extend, end, check-in and coupons,
// plus the no-show and overstay sweeps. Every transition commits together with the
// device status change and any wallet settlement it causes.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/logger"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/service/device"
	"github.com/kirinyoku/gamecafe/internal/service/pricing"
	"github.com/kirinyoku/gamecafe/internal/service/wallet"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

// Extension pricing policies.
const (
	ExtensionBase    = "base"
	ExtensionDynamic = "dynamic"
)

// Notifier delivers customer-facing alerts. Delivery is best effort.
type Notifier interface {
	NotifyCustomer(ctx context.Context, customerID uuid.UUID, title, body string)
}

type Config struct {
	NoShowGrace        time.Duration
	NoShowPenalty      float64
	OverstayMax        time.Duration
	OverstayMultiplier float64
	ExtensionPricing   string
	// SweepBatch is the page size the sweeps read candidates in.
	SweepBatch         int
	Now                func() time.Time
}

func (c *Config) defaults() {
	if c.NoShowGrace <= 0 {
		c.NoShowGrace = 15 * time.Minute
	}
	if c.NoShowPenalty < 0 {
		c.NoShowPenalty = 0
	}
	if c.OverstayMax <= 0 {
		c.OverstayMax = 4 * time.Hour
	}
	if c.OverstayMultiplier <= 0 {
		c.OverstayMultiplier = 1.5
	}
	if c.ExtensionPricing == "" {
		c.ExtensionPricing = ExtensionBase
	}
	if c.SweepBatch <= 0 {
		c.SweepBatch = 500
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Ledger owns session state. Device status changes go through the device registry,
// rates through the pricing engine, money through the wallet ledger.
type Ledger struct {
	uow      uow.Runner
	devices  *device.Registry
	pricing  *pricing.Engine
	wallet   *wallet.Ledger
	notifier Notifier
	log      *zap.Logger
	cfg      Config
}

func New(
	runner uow.Runner,
	devices *device.Registry,
	engine *pricing.Engine,
	ledger *wallet.Ledger,
	notifier Notifier,
	log *zap.Logger,
	cfg Config,
) *Ledger {
	cfg.defaults()

	if log == nil {
		log = zap.NewNop()
	}

	return &Ledger{
		uow:      runner,
		devices:  devices,
		pricing:  engine,
		wallet:   ledger,
		notifier: notifier,
		log:      log,
		cfg:      cfg,
	}
}

func (l *Ledger) now() time.Time {
	return l.cfg.Now().UTC()
}

// Start occupies the device and opens an ACTIVE session on it.
//
// Parameters:
//   - customerID: the customer the session is billed to.
//   - deviceID: the device to occupy.
//
// Returns:
//   - domain.Session: the new session with start_time = now and total_amount = 0.
//   - error: domain.ErrDeviceUnavailable if the device is not AVAILABLE.
//   - error: domain.ErrNotFound if the device or the customer does not exist.
func (l *Ledger) Start(ctx context.Context, customerID, deviceID uuid.UUID) (domain.Session, error) {
	const op = "service.session.Start"

	now := l.now()

	var s domain.Session
	err := l.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
		d, err := l.devices.Tx(repos, after).Occupy(ctx, deviceID)
		if err != nil {
			return err
		}

		s = domain.Session{
			ID:         uuid.New(),
			CustomerID: customerID,
			DeviceID:   d.ID,
			CafeID:     d.CafeID,
			StartTime:  now,
			Status:     domain.SessionActive,
		}

		if err := repos.Sessions().Create(ctx, &s); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return domain.DeviceUnavailableError{DeviceID: deviceID, Status: domain.DeviceOccupied}
			}
			return err
		}

		return nil
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return s, nil
}

// End closes an open session and frees its device.
//
// The bill is the larger of elapsed hours times the rate effective now and the amount
// already committed by extensions or an overstay recompute. Flagged sessions are billed
// at the overstay multiplier. An attached coupon is
// applied to that, and the result is never negative.
//
// Returns:
//   - domain.Session: the COMPLETED session.
//   - error: domain.ErrNotFound if the session does not exist or is already closed.
func (l *Ledger) End(ctx context.Context, sessionID uuid.UUID) (domain.Session, error) {
	const op = "service.session.End"

	now := l.now()

	var out domain.Session
	err := l.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
		s, err := repos.Sessions().GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}

		if !s.Status.Open() {
			return fmt.Errorf("%w: session %s is %s", domain.ErrNotFound, s.ID, s.Status)
		}

		d, err := repos.Devices().Get(ctx, s.DeviceID)
		if err != nil {
			return err
		}

		rate, err := l.pricing.With(repos).ResolveRate(ctx, d.HourlyRate, s.CafeID, now)
		if err != nil {
			return err
		}

		hours := elapsedHours(s.StartTime, now)
		total := Bill(hours, rate, s, l.cfg.OverstayMultiplier)

		err = repos.Sessions().Finish(ctx, s.ID, repository.SessionFinish{
			Status:        domain.SessionCompleted,
			EndTime:       now,
			DurationHours: roundHours(hours),
			TotalAmount:   total,
		})
		if err != nil {
			return err
		}

		if err := l.releaseDevice(ctx, repos, after, s); err != nil {
			return err
		}

		out, err = repos.Sessions().Get(ctx, s.ID)
		return err
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return out, nil
}

// Bill computes the final amount of a session that ran for hours at rate. A session
// flagged for overstay keeps the surcharge multiplier up to the moment it ends.
func Bill(hours, rate float64, s domain.Session, overstayMultiplier float64) float64 {
	if s.OverstayPenalty && overstayMultiplier > 0 {
		rate *= overstayMultiplier
	}

	gross := math.Max(hours*rate, s.TotalAmount)

	if s.CouponDiscountType != nil && s.CouponDiscount != nil {
		gross = pricing.ApplyDiscount(gross, *s.CouponDiscountType, *s.CouponDiscount, s.CouponMinAmount)
	}

	return pricing.RoundMoney(math.Max(0, gross))
}

// Extend adds hours to an open session. The amount uses the device base rate under the
// base policy and the rate effective now under the dynamic policy.
//
// Returns:
//   - error: domain.ErrValidation if hours is not positive.
//   - error: domain.ErrInvalidState if the session is closed.
func (l *Ledger) Extend(ctx context.Context, sessionID uuid.UUID, hours float64) (domain.Session, error) {
	const op = "service.session.Extend"

	if !(hours > 0) || math.IsInf(hours, 0) {
		return domain.Session{}, fmt.Errorf("%s:%w", op,
			domain.ValidationError{Field: "additional_hours", Reason: "must be positive"})
	}

	now := l.now()

	var out domain.Session
	err := l.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, _ func(uow.AfterCommit)) error {
		s, err := repos.Sessions().GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}

		if !s.Status.Open() {
			return domain.InvalidStateError{Entity: "session", Status: string(s.Status), Op: "extend"}
		}

		d, err := repos.Devices().Get(ctx, s.DeviceID)
		if err != nil {
			return err
		}

		rate := d.HourlyRate
		if l.cfg.ExtensionPricing == ExtensionDynamic {
			rate, err = l.pricing.With(repos).ResolveRate(ctx, d.HourlyRate, s.CafeID, now)
			if err != nil {
				return err
			}
		}

		out, err = repos.Sessions().Extend(ctx, s.ID, pricing.RoundMoney(hours*rate))
		if errors.Is(err, repository.ErrStatusMismatch) {
			return domain.InvalidStateError{Entity: "session", Status: string(s.Status), Op: "extend"}
		}
		return err
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return out, nil
}

// CheckIn confirms the customer showed up. Checking in twice is a no-op.
//
// Returns:
//   - error: domain.ErrInvalidState if the session is closed.
func (l *Ledger) CheckIn(ctx context.Context, sessionID uuid.UUID) (domain.Session, error) {
	const op = "service.session.CheckIn"

	now := l.now()

	var out domain.Session
	err := l.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, _ func(uow.AfterCommit)) error {
		err := repos.Sessions().CheckIn(ctx, sessionID, now)
		switch {
		case errors.Is(err, repository.ErrStatusMismatch):
			s, getErr := repos.Sessions().Get(ctx, sessionID)
			if getErr != nil {
				return getErr
			}
			return domain.InvalidStateError{Entity: "session", Status: string(s.Status), Op: "check in"}
		case err != nil && !errors.Is(err, repository.ErrAlreadySet):
			return err
		}

		out, err = repos.Sessions().Get(ctx, sessionID)
		return err
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return out, nil
}

// ApplyCoupon validates the code against the session's café, counts one use and
// attaches the discount to the session. The discount is applied when the session ends.
//
// Returns:
//   - error: domain.ErrInvalidCoupon, domain.ErrCouponExpired or domain.ErrCouponLimitReached.
//   - error: domain.ErrInvalidState if the session is closed.
//   - error: domain.ErrConflict if the session already carries a coupon.
func (l *Ledger) ApplyCoupon(ctx context.Context, sessionID uuid.UUID, code string) (domain.Session, error) {
	const op = "service.session.ApplyCoupon"

	if strings.TrimSpace(code) == "" {
		return domain.Session{}, fmt.Errorf("%s:%w", op, domain.ValidationError{Field: "code", Reason: "required"})
	}

	var out domain.Session
	err := l.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, _ func(uow.AfterCommit)) error {
		s, err := repos.Sessions().GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}

		if !s.Status.Open() {
			return domain.InvalidStateError{Entity: "session", Status: string(s.Status), Op: "apply coupon to"}
		}

		if s.CouponCode != nil {
			return fmt.Errorf("%w: session already has coupon %s", domain.ErrConflict, *s.CouponCode)
		}

		engine := l.pricing.With(repos)

		c, err := engine.ValidateCoupon(ctx, s.CafeID, code)
		if err != nil {
			return err
		}

		if err := engine.Redeem(ctx, c.ID); err != nil {
			return err
		}

		err = repos.Sessions().AttachCoupon(ctx, s.ID, repository.CouponAttachment{
			Code:         c.Code,
			DiscountType: c.DiscountType,
			Discount:     c.DiscountValue,
			MinAmount:    c.MinAmount,
		})
		if err != nil {
			return err
		}

		out, err = repos.Sessions().Get(ctx, s.ID)
		return err
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return out, nil
}

func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	const op = "service.session.Get"

	s, err := l.uow.Repos().Sessions().Get(ctx, id)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return s, nil
}

func (l *Ledger) ListByCafe(ctx context.Context, cafeID uuid.UUID, status *domain.SessionStatus, limit int) ([]domain.Session, error) {
	const op = "service.session.ListByCafe"

	sessions, err := l.uow.Repos().Sessions().ListByCafe(ctx, cafeID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return sessions, nil
}

func (l *Ledger) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.Session, error) {
	const op = "service.session.ListByCustomer"

	sessions, err := l.uow.Repos().Sessions().ListByCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return sessions, nil
}

// Stats aggregates the café's devices and the sessions completed since the given instant.
func (l *Ledger) Stats(ctx context.Context, cafeID uuid.UUID, since time.Time) (domain.CafeStats, error) {
	const op = "service.session.Stats"

	stats, err := l.uow.Repos().Sessions().Stats(ctx, cafeID, since)
	if err != nil {
		return domain.CafeStats{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	stats.RevenueSince = pricing.RoundMoney(stats.RevenueSince)

	return stats, nil
}

// releaseDevice frees the session's device. A device that staff already moved out of
// OCCUPIED is left as it is.
func (l *Ledger) releaseDevice(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit), s domain.Session) error {
	_, err := l.devices.Tx(repos, after).Release(ctx, s.DeviceID)
	if errors.Is(err, domain.ErrInvalidState) {
		l.log.Warn("device not occupied at release",
			zap.String(logger.FieldSessionID, s.ID.String()),
			zap.String(logger.FieldDeviceID, s.DeviceID.String()),
			zap.Error(err),
		)
		return nil
	}
	return err
}

func elapsedHours(start, now time.Time) float64 {
	h := now.Sub(start).Hours()
	if h < 0 {
		return 0
	}
	return h
}

func roundHours(h float64) float64 {
	return math.Round(h*10000) / 10000
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrUnavailable):
		return domain.Upstream(err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	return err
}
