package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

type Config struct {
	// Location is the café time zone rule windows are evaluated in.
	Location *time.Location
	RuleTTL  time.Duration
	Now      func() time.Time
}

// Engine resolves effective hourly rates and administers pricing rules and coupons.
type Engine struct {
	uow   uow.Runner
	repos repository.Repos
	rules *gocache.Cache
	cfg   Config
}

func New(runner uow.Runner, cfg Config) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	if cfg.RuleTTL <= 0 {
		cfg.RuleTTL = 30 * time.Second
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		uow:   runner,
		rules: gocache.New(cfg.RuleTTL, 2*cfg.RuleTTL),
		cfg:   cfg,
	}
}

// With returns an engine that reads through repos, typically the repositories of a
// running unit of work. The rule cache is shared with the parent.
func (e *Engine) With(repos repository.Repos) *Engine {
	cp := *e
	cp.repos = repos
	return &cp
}

func (e *Engine) store() repository.Repos {
	if e.repos != nil {
		return e.repos
	}
	return e.uow.Repos()
}

func (e *Engine) Location() *time.Location {
	return e.cfg.Location
}

func (e *Engine) activeRules(ctx context.Context, cafeID uuid.UUID) ([]domain.PricingRule, error) {
	key := cafeID.String()

	if v, ok := e.rules.Get(key); ok {
		return v.([]domain.PricingRule), nil
	}

	rules, err := e.store().Pricing().ListByCafe(ctx, cafeID, true)
	if err != nil {
		return nil, err
	}

	e.rules.SetDefault(key, rules)

	return rules, nil
}

func (e *Engine) invalidate(cafeID uuid.UUID) {
	e.rules.Delete(cafeID.String())
}

// ResolveRate returns the hourly rate for a device of the café at the given instant.
//
// Parameters:
//   - ctx: request-scoped context.
//   - baseRate: the device hourly rate.
//   - cafeID: café whose active rules apply.
//   - at: the instant to price; it is converted to the café time zone.
//
// Returns:
//   - float64: baseRate times the product of all applicable multipliers.
//   - error: store failures only.
func (e *Engine) ResolveRate(ctx context.Context, baseRate float64, cafeID uuid.UUID, at time.Time) (float64, error) {
	const op = "service.pricing.ResolveRate"

	if baseRate < 0 {
		return 0, fmt.Errorf("%s:%w", op, domain.ValidationError{Field: "base_rate", Reason: "must not be negative"})
	}

	rules, err := e.activeRules(ctx, cafeID)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return EffectiveRate(baseRate, rules, at.In(e.cfg.Location)), nil
}

type RuleInput struct {
	Name       string
	Type       domain.RuleType
	Multiplier float64
	StartTime  string
	EndTime    string
	DaysOfWeek []int
}

func (e *Engine) CreateRule(ctx context.Context, cafeID uuid.UUID, in RuleInput) (domain.PricingRule, error) {
	const op = "service.pricing.CreateRule"

	if err := validateRule(in); err != nil {
		return domain.PricingRule{}, fmt.Errorf("%s:%w", op, err)
	}

	rule := domain.PricingRule{
		ID:         uuid.New(),
		CafeID:     cafeID,
		Name:       strings.TrimSpace(in.Name),
		Type:       in.Type,
		Multiplier: in.Multiplier,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		DaysOfWeek: in.DaysOfWeek,
		IsActive:   true,
	}

	if err := e.store().Pricing().Create(ctx, &rule); err != nil {
		return domain.PricingRule{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	e.invalidate(cafeID)

	return rule, nil
}

func (e *Engine) GetRule(ctx context.Context, ruleID uuid.UUID) (domain.PricingRule, error) {
	const op = "service.pricing.GetRule"

	rule, err := e.store().Pricing().Get(ctx, ruleID)
	if err != nil {
		return domain.PricingRule{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return rule, nil
}

func (e *Engine) ListRules(ctx context.Context, cafeID uuid.UUID) ([]domain.PricingRule, error) {
	const op = "service.pricing.ListRules"

	rules, err := e.store().Pricing().ListByCafe(ctx, cafeID, false)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return rules, nil
}

// SetRuleActive toggles a rule. Rules never expire on their own.
func (e *Engine) SetRuleActive(ctx context.Context, ruleID uuid.UUID, active bool) (domain.PricingRule, error) {
	const op = "service.pricing.SetRuleActive"

	rule, err := e.store().Pricing().Get(ctx, ruleID)
	if err != nil {
		return domain.PricingRule{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	if err := e.store().Pricing().SetActive(ctx, ruleID, active); err != nil {
		return domain.PricingRule{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	e.invalidate(rule.CafeID)
	rule.IsActive = active

	return rule, nil
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
