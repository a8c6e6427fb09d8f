package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type CouponInput struct {
	Code          string
	DiscountType  domain.DiscountType
	DiscountValue float64
	MinAmount     *float64
	MaxUses       *int
	// ValidFrom defaults to now.
	ValidFrom *time.Time
	ValidDays int
}

func (in CouponInput) validate() error {
	code := strings.TrimSpace(in.Code)
	if len(code) < 3 || len(code) > 32 || strings.ContainsAny(code, " \t") {
		return domain.ValidationError{Field: "code", Reason: "3 to 32 characters without spaces"}
	}

	switch in.DiscountType {
	case domain.DiscountPercentage:
		if in.DiscountValue <= 0 || in.DiscountValue > 100 {
			return domain.ValidationError{Field: "discount_value", Reason: "percentage must be in (0, 100]"}
		}
	case domain.DiscountFixed:
		if in.DiscountValue <= 0 {
			return domain.ValidationError{Field: "discount_value", Reason: "must be positive"}
		}
	default:
		return domain.ValidationError{Field: "discount_type", Reason: "percentage or fixed"}
	}

	if in.MinAmount != nil && *in.MinAmount < 0 {
		return domain.ValidationError{Field: "min_amount", Reason: "must not be negative"}
	}

	if in.MaxUses != nil && *in.MaxUses <= 0 {
		return domain.ValidationError{Field: "max_uses", Reason: "must be positive"}
	}

	if in.ValidDays <= 0 {
		return domain.ValidationError{Field: "valid_days", Reason: "must be positive"}
	}

	return nil
}

// CreateCoupon stores a coupon valid for ValidDays from ValidFrom. Codes are upper-cased
// and unique per café.
//
// Returns:
//   - error: domain.ErrValidation on malformed input.
//   - error: domain.ErrConflict if the café already has the code.
func (e *Engine) CreateCoupon(ctx context.Context, cafeID uuid.UUID, in CouponInput) (domain.Coupon, error) {
	const op = "service.pricing.CreateCoupon"

	if err := in.validate(); err != nil {
		return domain.Coupon{}, fmt.Errorf("%s:%w", op, err)
	}

	from := e.cfg.Now().UTC()
	if in.ValidFrom != nil {
		from = in.ValidFrom.UTC()
	}

	c := domain.Coupon{
		ID:            uuid.New(),
		CafeID:        cafeID,
		Code:          strings.ToUpper(strings.TrimSpace(in.Code)),
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		MinAmount:     in.MinAmount,
		MaxUses:       in.MaxUses,
		ValidFrom:     from,
		ValidUntil:    from.AddDate(0, 0, in.ValidDays),
		IsActive:      true,
	}

	if err := e.store().Coupons().Create(ctx, &c); err != nil {
		return domain.Coupon{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return c, nil
}

func (e *Engine) ListCoupons(ctx context.Context, cafeID uuid.UUID) ([]domain.Coupon, error) {
	const op = "service.pricing.ListCoupons"

	coupons, err := e.store().Coupons().ListByCafe(ctx, cafeID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return coupons, nil
}

// ValidateCoupon looks a code up and checks it is usable at now.
//
// Returns:
//   - domain.Coupon: the usable coupon.
//   - error: domain.ErrInvalidCoupon if the code is unknown or inactive.
//   - error: domain.ErrCouponExpired if now is outside [valid_from, valid_until).
//   - error: domain.ErrCouponLimitReached if max_uses is exhausted.
func (e *Engine) ValidateCoupon(ctx context.Context, cafeID uuid.UUID, code string) (domain.Coupon, error) {
	const op = "service.pricing.ValidateCoupon"

	c, err := e.store().Coupons().GetByCode(ctx, cafeID, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Coupon{}, fmt.Errorf("%s:%w", op, domain.ErrInvalidCoupon)
		}
		return domain.Coupon{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	if err := Usable(c, e.cfg.Now()); err != nil {
		return domain.Coupon{}, fmt.Errorf("%s:%w", op, err)
	}

	return c, nil
}

// Usable checks the coupon invariants at now.
func Usable(c domain.Coupon, now time.Time) error {
	if !c.IsActive {
		return domain.ErrInvalidCoupon
	}

	if now.Before(c.ValidFrom) || !now.Before(c.ValidUntil) {
		return domain.ErrCouponExpired
	}

	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return domain.ErrCouponLimitReached
	}

	return nil
}

// Redeem counts one use of the coupon. The count and the cap are checked in one step.
//
// Returns:
//   - error: domain.ErrCouponLimitReached if max_uses is exhausted.
func (e *Engine) Redeem(ctx context.Context, couponID uuid.UUID) error {
	const op = "service.pricing.Redeem"

	if err := e.store().Coupons().IncrementUsage(ctx, couponID); err != nil {
		if errors.Is(err, repository.ErrLimitReached) {
			return fmt.Errorf("%s:%w", op, domain.ErrCouponLimitReached)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, domain.ErrInvalidCoupon)
		}
		return fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return nil
}

type Quote struct {
	Code        string  `json:"code"`
	Amount      float64 `json:"amount"`
	Discount    float64 `json:"discount"`
	FinalAmount float64 `json:"final_amount"`
	Applicable  bool    `json:"applicable"`
}

// QuoteCoupon previews the discount a valid coupon gives on amount without redeeming it.
func (e *Engine) QuoteCoupon(ctx context.Context, cafeID uuid.UUID, code string, amount float64) (Quote, error) {
	const op = "service.pricing.QuoteCoupon"

	if amount < 0 {
		return Quote{}, fmt.Errorf("%s:%w", op, domain.ErrInvalidAmount)
	}

	c, err := e.ValidateCoupon(ctx, cafeID, code)
	if err != nil {
		return Quote{}, fmt.Errorf("%s:%w", op, err)
	}

	final := RoundMoney(ApplyDiscount(amount, c.DiscountType, c.DiscountValue, c.MinAmount))

	return Quote{
		Code:        c.Code,
		Amount:      amount,
		Discount:    RoundMoney(amount - final),
		FinalAmount: final,
		Applicable:  c.MinAmount == nil || amount >= *c.MinAmount,
	}, nil
}
