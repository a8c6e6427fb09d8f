package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type pricingRepo struct{ h handle }

func (r pricingRepo) Create(_ context.Context, p *domain.PricingRule) error {
	const op = "memory.PricingRepo.Create"

	return r.h.run(func(st *state) error {
		if _, ok := st.cafes.get(p.CafeID); !ok {
			return fail(op, repository.ErrNotFound)
		}

		p.CreatedAt = r.h.now()
		st.rules.insert(p.ID, *p)
		return nil
	})
}

func (r pricingRepo) Get(_ context.Context, id uuid.UUID) (domain.PricingRule, error) {
	const op = "memory.PricingRepo.Get"

	var p domain.PricingRule
	err := r.h.run(func(st *state) error {
		found, ok := st.rules.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		p = found
		return nil
	})
	return p, err
}

func (r pricingRepo) ListByCafe(_ context.Context, cafeID uuid.UUID, activeOnly bool) ([]domain.PricingRule, error) {
	var out []domain.PricingRule
	err := r.h.run(func(st *state) error {
		for _, p := range st.rules.all() {
			if p.CafeID == cafeID && (!activeOnly || p.IsActive) {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (r pricingRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	const op = "memory.PricingRepo.SetActive"

	return r.h.run(func(st *state) error {
		p, ok := st.rules.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		p.IsActive = active
		st.rules.put(id, p)
		return nil
	})
}

type couponRepo struct{ h handle }

func (r couponRepo) Create(_ context.Context, c *domain.Coupon) error {
	const op = "memory.CouponRepo.Create"

	return r.h.run(func(st *state) error {
		if _, ok := st.cafes.get(c.CafeID); !ok {
			return fail(op, repository.ErrNotFound)
		}

		c.Code = strings.ToUpper(c.Code)
		for _, other := range st.coupons.rows {
			if other.CafeID == c.CafeID && other.Code == c.Code {
				return fail(op, fmt.Errorf("%w: coupons_cafe_id_code_key", repository.ErrConflict))
			}
		}

		c.UsedCount = 0
		c.CreatedAt = r.h.now()
		st.coupons.insert(c.ID, *c)
		return nil
	})
}

func (r couponRepo) GetByCode(_ context.Context, cafeID uuid.UUID, code string) (domain.Coupon, error) {
	const op = "memory.CouponRepo.GetByCode"

	code = strings.ToUpper(code)

	var c domain.Coupon
	err := r.h.run(func(st *state) error {
		for _, candidate := range st.coupons.rows {
			if candidate.CafeID == cafeID && candidate.Code == code {
				c = candidate
				return nil
			}
		}
		return fail(op, repository.ErrNotFound)
	})
	return c, err
}

func (r couponRepo) ListByCafe(_ context.Context, cafeID uuid.UUID) ([]domain.Coupon, error) {
	var out []domain.Coupon
	err := r.h.run(func(st *state) error {
		for _, c := range newestFirst(st.coupons, func(c domain.Coupon) time.Time { return c.CreatedAt }) {
			if c.CafeID == cafeID {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (r couponRepo) IncrementUsage(_ context.Context, id uuid.UUID) error {
	const op = "memory.CouponRepo.IncrementUsage"

	return r.h.run(func(st *state) error {
		c, ok := st.coupons.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
			return fail(op, repository.ErrLimitReached)
		}
		c.UsedCount++
		st.coupons.put(id, c)
		return nil
	})
}

type walletRepo struct{ h handle }

func (r walletRepo) Append(_ context.Context, tx *domain.WalletTransaction) error {
	return r.append("memory.WalletRepo.Append", tx, false)
}

func (r walletRepo) AppendCovered(_ context.Context, tx *domain.WalletTransaction) error {
	return r.append("memory.WalletRepo.AppendCovered", tx, true)
}

func (r walletRepo) append(op string, tx *domain.WalletTransaction, covered bool) error {
	return r.h.run(func(st *state) error {
		u, ok := st.users.get(tx.CustomerID)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		if covered && u.WalletBalance+tx.Amount < 0 {
			return fail(op, repository.ErrInsufficientFunds)
		}

		u.WalletBalance += tx.Amount
		st.users.put(u.ID, u)

		tx.CreatedAt = r.h.now()
		st.wallet.insert(tx.ID, *tx)
		return nil
	})
}

func (r walletRepo) Balance(_ context.Context, customerID uuid.UUID) (float64, error) {
	const op = "memory.WalletRepo.Balance"

	var balance float64
	err := r.h.run(func(st *state) error {
		u, ok := st.users.get(customerID)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		balance = u.WalletBalance
		return nil
	})
	return balance, err
}

func (r walletRepo) LedgerSum(_ context.Context, customerID uuid.UUID) (float64, error) {
	var sum float64
	err := r.h.run(func(st *state) error {
		for _, tx := range st.wallet.all() {
			if tx.CustomerID == customerID {
				sum += tx.Amount
			}
		}
		return nil
	})
	return sum, err
}

func (r walletRepo) List(_ context.Context, customerID uuid.UUID, limit int) ([]domain.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	var out []domain.WalletTransaction
	err := r.h.run(func(st *state) error {
		created := func(tx domain.WalletTransaction) time.Time { return tx.CreatedAt }
		for _, tx := range newestFirst(st.wallet, created) {
			if tx.CustomerID == customerID {
				out = append(out, tx)
			}
		}
		out = limited(out, limit)
		return nil
	})
	return out, err
}
