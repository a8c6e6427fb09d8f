// Package membership sells prepaid passes against the wallet and pays referral rewards.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/service/wallet"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

// ReferralReward is credited to both sides of a referral.
const ReferralReward = 100.0

type Plan struct {
	Type  domain.PassType `json:"pass_type"`
	Price float64         `json:"price"`
	Hours float64         `json:"hours_included"`
	Days  int             `json:"validity_days"`
}

var catalog = map[domain.PassType]Plan{
	domain.PassHourly:  {Type: domain.PassHourly, Price: 100, Hours: 1, Days: 1},
	domain.PassDaily:   {Type: domain.PassDaily, Price: 500, Hours: 8, Days: 1},
	domain.PassWeekly:  {Type: domain.PassWeekly, Price: 2500, Hours: 50, Days: 7},
	domain.PassMonthly: {Type: domain.PassMonthly, Price: 8000, Hours: 200, Days: 30},
}

// Catalog lists the purchasable plans from cheapest to most expensive.
func Catalog() []Plan {
	return []Plan{
		catalog[domain.PassHourly],
		catalog[domain.PassDaily],
		catalog[domain.PassWeekly],
		catalog[domain.PassMonthly],
	}
}

type Service struct {
	uow    uow.Runner
	wallet *wallet.Ledger
	now    func() time.Time
}

func New(runner uow.Runner, ledger *wallet.Ledger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{uow: runner, wallet: ledger, now: now}
}

// PurchasePass charges the plan price to the wallet and issues the pass in one unit of work.
//
// Returns:
//   - domain.Pass: the issued pass.
//   - error: domain.ErrValidation for an unknown pass type.
//   - error: domain.ErrInsufficientBalance if the wallet cannot cover the price; no pass is issued.
func (s *Service) PurchasePass(ctx context.Context, customerID, cafeID uuid.UUID, passType domain.PassType) (domain.Pass, error) {
	const op = "service.membership.PurchasePass"

	plan, ok := catalog[domain.PassType(strings.ToUpper(string(passType)))]
	if !ok {
		return domain.Pass{}, fmt.Errorf("%s:%w", op,
			domain.ValidationError{Field: "pass_type", Reason: fmt.Sprintf("unknown pass %q", passType)})
	}

	now := s.now().UTC()

	p := domain.Pass{
		ID:            uuid.New(),
		CustomerID:    customerID,
		CafeID:        cafeID,
		Type:          plan.Type,
		HoursIncluded: plan.Hours,
		Price:         plan.Price,
		ValidFrom:     now,
		ValidUntil:    now.AddDate(0, 0, plan.Days),
		IsActive:      true,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, _ func(uow.AfterCommit)) error {
		if _, err := repos.Cafes().Get(ctx, cafeID); err != nil {
			return err
		}

		ref := p.ID
		_, err := s.wallet.With(repos).Purchase(ctx, customerID, plan.Price,
			fmt.Sprintf("Purchased %s pass", plan.Type), &ref)
		if err != nil {
			return err
		}

		return repos.Passes().Create(ctx, &p)
	})
	if err != nil {
		return domain.Pass{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return p, nil
}

func (s *Service) ListPasses(ctx context.Context, customerID uuid.UUID) ([]domain.Pass, error) {
	const op = "service.membership.ListPasses"

	passes, err := s.uow.Repos().Passes().ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return passes, nil
}

type ReferralResult struct {
	ReferrerID uuid.UUID `json:"referrer_id"`
	Reward     float64   `json:"reward"`
}

// ApplyReferral links the customer to the owner of code and credits both wallets.
//
// Returns:
//   - error: domain.ErrNotFound if no user has the code.
//   - error: domain.ErrValidation for the customer's own code.
//   - error: domain.ErrConflict if the customer was already referred.
func (s *Service) ApplyReferral(ctx context.Context, customerID uuid.UUID, code string) (ReferralResult, error) {
	const op = "service.membership.ApplyReferral"

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ReferralResult{}, fmt.Errorf("%s:%w", op, domain.ValidationError{Field: "referral_code", Reason: "required"})
	}

	var res ReferralResult
	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, _ func(uow.AfterCommit)) error {
		referrer, err := repos.Users().GetByReferralCode(ctx, code)
		if err != nil {
			return err
		}

		if referrer.ID == customerID {
			return domain.ValidationError{Field: "referral_code", Reason: "cannot use your own code"}
		}

		if err := repos.Users().SetReferredBy(ctx, customerID, referrer.ID); err != nil {
			if errors.Is(err, repository.ErrAlreadySet) {
				return fmt.Errorf("%w: referral already applied", domain.ErrConflict)
			}
			return err
		}

		ledger := s.wallet.With(repos)
		for _, e := range []wallet.Entry{
			{CustomerID: customerID, Amount: ReferralReward, Type: domain.TxReward, Description: "Referral welcome bonus"},
			{CustomerID: referrer.ID, Amount: ReferralReward, Type: domain.TxReward, Description: "Referral reward"},
		} {
			if _, err := ledger.Credit(ctx, e); err != nil {
				return err
			}
		}

		res = ReferralResult{ReferrerID: referrer.ID, Reward: ReferralReward}
		return nil
	})
	if err != nil {
		return ReferralResult{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return res, nil
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrUnavailable):
		return domain.Upstream(err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return err
}
