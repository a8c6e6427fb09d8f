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

func fail(op string, err error) error {
	return fmt.Errorf("%s:%w", op, err)
}

type userRepo struct{ h handle }

func (r userRepo) Create(_ context.Context, u *domain.User) error {
	const op = "memory.UserRepo.Create"

	return r.h.run(func(st *state) error {
		if _, ok := st.users.get(u.ID); ok {
			return fail(op, fmt.Errorf("%w: users_pkey", repository.ErrConflict))
		}
		for _, existing := range st.users.rows {
			if existing.Phone == u.Phone {
				return fail(op, fmt.Errorf("%w: users_phone_key", repository.ErrConflict))
			}
			if existing.ReferralCode == u.ReferralCode {
				return fail(op, fmt.Errorf("%w: users_referral_code_key", repository.ErrConflict))
			}
		}

		u.WalletBalance = 0
		u.CreatedAt = r.h.now()
		st.users.insert(u.ID, *u)
		return nil
	})
}

func (r userRepo) Get(_ context.Context, id uuid.UUID) (domain.User, error) {
	const op = "memory.UserRepo.Get"

	var u domain.User
	err := r.h.run(func(st *state) error {
		found, ok := st.users.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		u = found
		return nil
	})
	return u, err
}

func (r userRepo) find(op string, match func(domain.User) bool) (domain.User, error) {
	var u domain.User
	err := r.h.run(func(st *state) error {
		for _, candidate := range st.users.rows {
			if match(candidate) {
				u = candidate
				return nil
			}
		}
		return fail(op, repository.ErrNotFound)
	})
	return u, err
}

func (r userRepo) GetByPhone(_ context.Context, phone string) (domain.User, error) {
	return r.find("memory.UserRepo.GetByPhone", func(u domain.User) bool {
		return u.Phone == phone
	})
}

func (r userRepo) GetByReferralCode(_ context.Context, code string) (domain.User, error) {
	code = strings.ToUpper(code)
	return r.find("memory.UserRepo.GetByReferralCode", func(u domain.User) bool {
		return u.ReferralCode == code
	})
}

func (r userRepo) SetReferredBy(_ context.Context, id, referrerID uuid.UUID) error {
	const op = "memory.UserRepo.SetReferredBy"

	return r.h.run(func(st *state) error {
		u, ok := st.users.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		if _, ok := st.users.get(referrerID); !ok {
			return fail(op, repository.ErrNotFound)
		}
		if u.ReferredBy != nil {
			return fail(op, repository.ErrAlreadySet)
		}

		ref := referrerID
		u.ReferredBy = &ref
		st.users.put(id, u)
		return nil
	})
}

type cafeRepo struct{ h handle }

func (r cafeRepo) Create(_ context.Context, c *domain.Cafe) error {
	const op = "memory.CafeRepo.Create"

	return r.h.run(func(st *state) error {
		if _, ok := st.users.get(c.OwnerID); !ok {
			return fail(op, repository.ErrNotFound)
		}
		if _, ok := st.cafes.get(c.ID); ok {
			return fail(op, fmt.Errorf("%w: cafes_pkey", repository.ErrConflict))
		}

		c.IsActive = true
		c.CreatedAt = r.h.now()
		st.cafes.insert(c.ID, *c)
		return nil
	})
}

func (r cafeRepo) Get(_ context.Context, id uuid.UUID) (domain.Cafe, error) {
	const op = "memory.CafeRepo.Get"

	var c domain.Cafe
	err := r.h.run(func(st *state) error {
		found, ok := st.cafes.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		c = found
		return nil
	})
	return c, err
}

func (r cafeRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.Cafe, error) {
	var out []domain.Cafe
	err := r.h.run(func(st *state) error {
		for _, c := range st.cafes.all() {
			if c.OwnerID == ownerID {
				out = append(out, c)
			}
		}
		return nil
	})
	return out, err
}

func (r cafeRepo) ListActiveIDs(_ context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID
	err := r.h.run(func(st *state) error {
		for _, c := range st.cafes.all() {
			if c.IsActive {
				out = append(out, c.ID)
			}
		}
		return nil
	})
	return out, err
}

type passRepo struct{ h handle }

func (r passRepo) Create(_ context.Context, p *domain.Pass) error {
	const op = "memory.PassRepo.Create"

	return r.h.run(func(st *state) error {
		if _, ok := st.users.get(p.CustomerID); !ok {
			return fail(op, repository.ErrNotFound)
		}
		if _, ok := st.cafes.get(p.CafeID); !ok {
			return fail(op, repository.ErrNotFound)
		}

		p.HoursUsed = 0
		p.IsActive = true
		p.CreatedAt = r.h.now()
		st.passes.insert(p.ID, *p)
		return nil
	})
}

func (r passRepo) ListByCustomer(_ context.Context, customerID uuid.UUID) ([]domain.Pass, error) {
	var out []domain.Pass
	err := r.h.run(func(st *state) error {
		for _, p := range newestFirst(st.passes, func(p domain.Pass) time.Time { return p.CreatedAt }) {
			if p.CustomerID == customerID {
				out = append(out, p)
			}
		}
		out = limited(out, 50)
		return nil
	})
	return out, err
}
