package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleCafeOwner  Role = "CAFE_OWNER"
	RoleStaff      Role = "STAFF"
	RoleCustomer   Role = "CUSTOMER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleCafeOwner, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

type DeviceType string

const (
	DevicePC        DeviceType = "PC"
	DevicePS5       DeviceType = "PS5"
	DeviceVR        DeviceType = "VR"
	DeviceSimulator DeviceType = "SIMULATOR"
)

func (t DeviceType) Valid() bool {
	switch t {
	case DevicePC, DevicePS5, DeviceVR, DeviceSimulator:
		return true
	}
	return false
}

type DeviceStatus string

const (
	DeviceAvailable   DeviceStatus = "AVAILABLE"
	DeviceOccupied    DeviceStatus = "OCCUPIED"
	DeviceMaintenance DeviceStatus = "MAINTENANCE"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceAvailable, DeviceOccupied, DeviceMaintenance:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionExtended  SessionStatus = "EXTENDED"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionNoShow    SessionStatus = "NO_SHOW"
)

// Open reports whether the session still holds its device.
func (s SessionStatus) Open() bool {
	return s == SessionActive || s == SessionExtended
}

// Terminal reports whether the session is closed and its amount frozen.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionNoShow
}

type RuleType string

const (
	RulePeak      RuleType = "PEAK"
	RuleOffPeak   RuleType = "OFFPEAK"
	RuleWeekend   RuleType = "WEEKEND"
	RuleHappyHour RuleType = "HAPPY_HOUR"
	RuleFestival  RuleType = "FESTIVAL"
)

func (t RuleType) Valid() bool {
	switch t {
	case RulePeak, RuleOffPeak, RuleWeekend, RuleHappyHour, RuleFestival:
		return true
	}
	return false
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type TransactionType string

const (
	TxCredit   TransactionType = "credit"
	TxDebit    TransactionType = "debit"
	TxRefund   TransactionType = "refund"
	TxPenalty  TransactionType = "penalty"
	TxCashback TransactionType = "cashback"
	TxReward   TransactionType = "reward"
)

// Inflow reports whether transactions of this type increase the balance.
func (t TransactionType) Inflow() bool {
	switch t {
	case TxCredit, TxRefund, TxCashback, TxReward:
		return true
	}
	return false
}

// Outflow reports whether transactions of this type decrease the balance.
func (t TransactionType) Outflow() bool {
	return t == TxDebit || t == TxPenalty
}

type User struct {
	ID            uuid.UUID  `json:"id"`
	Phone         string     `json:"phone"`
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	Role          Role       `json:"role"`
	CafeID        *uuid.UUID `json:"cafe_id,omitempty"`
	WalletBalance float64    `json:"wallet_balance"`
	ReferralCode  string     `json:"referral_code"`
	ReferredBy    *uuid.UUID `json:"referred_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Cafe struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Device struct {
	ID             uuid.UUID    `json:"id"`
	CafeID         uuid.UUID    `json:"cafe_id"`
	Name           string       `json:"name"`
	Type           DeviceType   `json:"device_type"`
	Specifications string       `json:"specifications,omitempty"`
	Status         DeviceStatus `json:"status"`
	HourlyRate     float64      `json:"hourly_rate"`
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
}

type Session struct {
	ID                 uuid.UUID     `json:"id"`
	CustomerID         uuid.UUID     `json:"customer_id"`
	DeviceID           uuid.UUID     `json:"device_id"`
	CafeID             uuid.UUID     `json:"cafe_id"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            *time.Time    `json:"end_time,omitempty"`
	CheckedInAt        *time.Time    `json:"checked_in_at,omitempty"`
	DurationHours      *float64      `json:"duration_hours,omitempty"`
	TotalAmount        float64       `json:"total_amount"`
	Status             SessionStatus `json:"status"`
	CouponCode         *string       `json:"coupon_code,omitempty"`
	CouponDiscountType *DiscountType `json:"coupon_discount_type,omitempty"`
	CouponDiscount     *float64      `json:"coupon_discount,omitempty"`
	CouponMinAmount    *float64      `json:"-"`
	OverstayPenalty    bool          `json:"overstay_penalty"`
	CreatedAt          time.Time     `json:"created_at"`
}

type PricingRule struct {
	ID         uuid.UUID `json:"id"`
	CafeID     uuid.UUID `json:"cafe_id"`
	Name       string    `json:"name"`
	Type       RuleType  `json:"rule_type"`
	Multiplier float64   `json:"multiplier"`
	StartTime  string    `json:"start_time,omitempty"` // HH:MM
	EndTime    string    `json:"end_time,omitempty"`   // HH:MM, exclusive
	DaysOfWeek []int     `json:"days_of_week,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

type Coupon struct {
	ID            uuid.UUID    `json:"id"`
	CafeID        uuid.UUID    `json:"cafe_id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue float64      `json:"discount_value"`
	MinAmount     *float64     `json:"min_amount,omitempty"`
	MaxUses       *int         `json:"max_uses,omitempty"`
	UsedCount     int          `json:"used_count"`
	ValidFrom     time.Time    `json:"valid_from"`
	ValidUntil    time.Time    `json:"valid_until"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
}

type WalletTransaction struct {
	ID          uuid.UUID       `json:"id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	Amount      float64         `json:"amount"`
	Type        TransactionType `json:"transaction_type"`
	Description string          `json:"description"`
	ReferenceID *uuid.UUID      `json:"reference_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type WalletAudit struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Balance    float64   `json:"balance"`
	LedgerSum  float64   `json:"ledger_sum"`
	Consistent bool      `json:"consistent"`
}

type MaintenanceStatus string

const (
	MaintenanceScheduled MaintenanceStatus = "SCHEDULED"
	MaintenanceCompleted MaintenanceStatus = "COMPLETED"
)

type MaintenanceRecord struct {
	ID               uuid.UUID         `json:"id"`
	DeviceID         uuid.UUID         `json:"device_id"`
	CafeID           uuid.UUID         `json:"cafe_id"`
	IssueDescription string            `json:"issue_description"`
	MaintenanceType  string            `json:"maintenance_type"`
	Status           MaintenanceStatus `json:"status"`
	ScheduledDate    time.Time         `json:"scheduled_date"`
	CompletedDate    *time.Time        `json:"completed_date,omitempty"`
	Cost             *float64          `json:"cost,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// DeviceHealthLog is one metric reading reported for a device, e.g. temperature or uptime.
type DeviceHealthLog struct {
	ID         uuid.UUID `json:"id"`
	DeviceID   uuid.UUID `json:"device_id"`
	CafeID     uuid.UUID `json:"cafe_id"`
	Metric     string    `json:"metric"`
	Value      string    `json:"value"`
	RecordedAt time.Time `json:"timestamp"`
}

type PassType string

const (
	PassHourly  PassType = "HOURLY"
	PassDaily   PassType = "DAILY"
	PassWeekly  PassType = "WEEKLY"
	PassMonthly PassType = "MONTHLY"
)

type Pass struct {
	ID            uuid.UUID `json:"id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	CafeID        uuid.UUID `json:"cafe_id"`
	Type          PassType  `json:"pass_type"`
	HoursIncluded float64   `json:"hours_included"`
	HoursUsed     float64   `json:"hours_used"`
	Price         float64   `json:"price"`
	ValidFrom     time.Time `json:"valid_from"`
	ValidUntil    time.Time `json:"valid_until"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// CafeStats is a read-only aggregate over a café's devices and sessions.
type CafeStats struct {
	TotalDevices     int64   `json:"total_devices"`
	ActiveSessions   int64   `json:"active_sessions"`
	RevenueSince     float64 `json:"revenue_since"`
	CompletedCount   int64   `json:"completed_count"`
	AvgDurationHours float64 `json:"avg_duration_hours"`
}
