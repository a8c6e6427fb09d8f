package httpgin

import (
	"time"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type OTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type OTPResponse struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
	OTP       string `json:"otp,omitempty"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

type RegisterRequest struct {
	Phone string      `json:"phone" binding:"required"`
	Name  string      `json:"name" binding:"required"`
	Email string      `json:"email" binding:"omitempty,email"`
	Role  domain.Role `json:"role"`
}

type CreateCafeRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	City    string `json:"city"`
}

type CreateDeviceRequest struct {
	Name           string            `json:"name" binding:"required"`
	Type           domain.DeviceType `json:"device_type" binding:"required"`
	Specifications string            `json:"specifications"`
	HourlyRate     float64           `json:"hourly_rate" binding:"required,gt=0"`
}

type SetDeviceStatusRequest struct {
	Status domain.DeviceStatus `json:"status" binding:"required"`
}

type ScheduleMaintenanceRequest struct {
	IssueDescription string     `json:"issue_description" binding:"required"`
	MaintenanceType  string     `json:"maintenance_type"`
	ScheduledDate    *time.Time `json:"scheduled_date"`
}

type HealthLogRequest struct {
	Metric string `json:"metric" binding:"required"`
	Value  string `json:"value" binding:"required"`
}

type CompleteMaintenanceRequest struct {
	Cost  *float64 `json:"cost"`
	Notes string   `json:"notes"`
}

type StartSessionRequest struct {
	DeviceID string `json:"device_id" binding:"required,uuid"`
	// CustomerID lets staff open a session on behalf of a customer.
	CustomerID string `json:"customer_id" binding:"omitempty,uuid"`
}

type ExtendSessionRequest struct {
	Hours float64 `json:"additional_hours" binding:"required,gt=0"`
}

type ApplyCouponRequest struct {
	Code string `json:"coupon_code" binding:"required"`
}

type CreateRuleRequest struct {
	Name       string          `json:"name" binding:"required"`
	Type       domain.RuleType `json:"rule_type" binding:"required"`
	Multiplier float64         `json:"multiplier" binding:"required,gt=0"`
	StartTime  string          `json:"start_time"`
	EndTime    string          `json:"end_time"`
	DaysOfWeek []int           `json:"days_of_week"`
}

type SetRuleActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type CreateCouponRequest struct {
	Code          string              `json:"code" binding:"required"`
	DiscountType  domain.DiscountType `json:"discount_type" binding:"required"`
	DiscountValue float64             `json:"discount_value" binding:"required,gt=0"`
	MinAmount     *float64            `json:"min_amount"`
	MaxUses       *int                `json:"max_uses"`
	ValidFrom     *time.Time          `json:"valid_from"`
	ValidDays     int                 `json:"valid_days" binding:"required,gt=0"`
}

type QuoteCouponRequest struct {
	Code   string  `json:"code" binding:"required"`
	Amount float64 `json:"amount" binding:"gte=0"`
}

type TopUpRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

type PurchasePassRequest struct {
	CafeID   string          `json:"cafe_id" binding:"required,uuid"`
	PassType domain.PassType `json:"pass_type" binding:"required"`
}

type ReferralRequest struct {
	Code string `json:"referral_code" binding:"required"`
}

type ChatRequest struct {
	CafeID    string `json:"cafe_id" binding:"required,uuid"`
	AgentType string `json:"agent_type"`
	Message   string `json:"message"`
}

type PushKeys struct {
	P256DH string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type PushSubscriptionRequest struct {
	Endpoint string   `json:"endpoint" binding:"required,url"`
	Keys     PushKeys `json:"keys" binding:"required"`
}

type DeletePushSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

type SweepResponse struct {
	Processed int `json:"processed"`
	Cafes     int `json:"cafes"`
}

type RateResponse struct {
	DeviceID      string    `json:"device_id"`
	BaseRate      float64   `json:"base_rate"`
	EffectiveRate float64   `json:"effective_rate"`
	At            time.Time `json:"at"`
}
