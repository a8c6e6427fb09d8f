package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/gamecafe/internal/domain"
)

// Repos is the set of repositories bound to one store handle. Inside a unit of work
// every repository shares the same transaction.
type Repos interface {
	Users() UserRepository
	Cafes() CafeRepository
	Devices() DeviceRepository
	Maintenance() MaintenanceRepository
	HealthLogs() HealthLogRepository
	Sessions() SessionRepository
	Pricing() PricingRepository
	Coupons() CouponRepository
	Wallet() WalletRepository
	Passes() PassRepository
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetByPhone(ctx context.Context, phone string) (domain.User, error)
	GetByReferralCode(ctx context.Context, code string) (domain.User, error)
	// SetReferredBy fails with ErrAlreadySet when the user already has a referrer.
	SetReferredBy(ctx context.Context, id, referrerID uuid.UUID) error
}

type CafeRepository interface {
	Create(ctx context.Context, c *domain.Cafe) error
	Get(ctx context.Context, id uuid.UUID) (domain.Cafe, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Cafe, error)
	ListActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

type DeviceRepository interface {
	Create(ctx context.Context, d *domain.Device) error
	Get(ctx context.Context, id uuid.UUID) (domain.Device, error)
	ListByCafe(ctx context.Context, cafeID uuid.UUID) ([]domain.Device, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus) error
	// CompareAndSetStatus moves the device from one status to another and fails with
	// ErrStatusMismatch if the current status is not from.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to domain.DeviceStatus) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type MaintenanceRepository interface {
	Create(ctx context.Context, m *domain.MaintenanceRecord) error
	Get(ctx context.Context, id uuid.UUID) (domain.MaintenanceRecord, error)
	Complete(ctx context.Context, id uuid.UUID, at time.Time, cost *float64, notes string) error
	ListByCafe(ctx context.Context, cafeID uuid.UUID) ([]domain.MaintenanceRecord, error)
}

type HealthLogRepository interface {
	Append(ctx context.Context, l *domain.DeviceHealthLog) error
	// ListByDevice returns the newest readings first.
	ListByDevice(ctx context.Context, deviceID uuid.UUID, limit int) ([]domain.DeviceHealthLog, error)
}

type SessionFinish struct {
	Status        domain.SessionStatus
	EndTime       time.Time
	DurationHours float64
	TotalAmount   float64
}

type CouponAttachment struct {
	Code         string
	DiscountType domain.DiscountType
	Discount     float64
	MinAmount    *float64
}

type OpenSessionFilter struct {
	CafeIDs       []uuid.UUID
	Statuses      []domain.SessionStatus
	StartedBefore time.Time
	NotCheckedIn  bool
	// After is a keyset cursor: only sessions ordered after (StartTime, ID) of the
	// previous page's last row are returned. The zero value starts from the beginning.
	After         SessionCursor
	Limit         int
}

type SessionCursor struct {
	StartTime time.Time
	ID        uuid.UUID
}

// CursorAt returns the cursor positioned at s.
func CursorAt(s domain.Session) SessionCursor {
	return SessionCursor{StartTime: s.StartTime, ID: s.ID}
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id uuid.UUID) (domain.Session, error)
	// GetForUpdate locks the row for the rest of the transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Session, error)
	// The mutators below only touch sessions in an open status and fail with
	// ErrStatusMismatch otherwise.
	Finish(ctx context.Context, id uuid.UUID, f SessionFinish) error
	Extend(ctx context.Context, id uuid.UUID, amount float64) (domain.Session, error)
	CheckIn(ctx context.Context, id uuid.UUID, at time.Time) error
	AttachCoupon(ctx context.Context, id uuid.UUID, c CouponAttachment) error
	MarkOverstay(ctx context.Context, id uuid.UUID, durationHours, totalAmount float64) error
	ListOpen(ctx context.Context, f OpenSessionFilter) ([]domain.Session, error)
	ListByCafe(ctx context.Context, cafeID uuid.UUID, status *domain.SessionStatus, limit int) ([]domain.Session, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.Session, error)
	Stats(ctx context.Context, cafeID uuid.UUID, since time.Time) (domain.CafeStats, error)
}

type PricingRepository interface {
	Create(ctx context.Context, r *domain.PricingRule) error
	Get(ctx context.Context, id uuid.UUID) (domain.PricingRule, error)
	ListByCafe(ctx context.Context, cafeID uuid.UUID, activeOnly bool) ([]domain.PricingRule, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type CouponRepository interface {
	Create(ctx context.Context, c *domain.Coupon) error
	GetByCode(ctx context.Context, cafeID uuid.UUID, code string) (domain.Coupon, error)
	ListByCafe(ctx context.Context, cafeID uuid.UUID) ([]domain.Coupon, error)
	// IncrementUsage bumps used_count and fails with ErrLimitReached when max_uses is hit.
	IncrementUsage(ctx context.Context, id uuid.UUID) error
}

type WalletRepository interface {
	// Append inserts the transaction and moves the cached balance by its signed amount.
	Append(ctx context.Context, tx *domain.WalletTransaction) error
	// AppendCovered is Append for outflows that must not overdraw the balance;
	// it fails with ErrInsufficientFunds and writes nothing.
	AppendCovered(ctx context.Context, tx *domain.WalletTransaction) error
	Balance(ctx context.Context, customerID uuid.UUID) (float64, error)
	LedgerSum(ctx context.Context, customerID uuid.UUID) (float64, error)
	List(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.WalletTransaction, error)
}

type PassRepository interface {
	Create(ctx context.Context, p *domain.Pass) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Pass, error)
}
