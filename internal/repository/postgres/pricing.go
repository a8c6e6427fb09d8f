package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type PricingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PricingRepo) With(db DB) *PricingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PricingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const ruleColumns = `id, cafe_id, name, rule_type, multiplier, start_time, end_time, days_of_week, is_active, created_at`

func scanRule(row interface{ Scan(...any) error }) (domain.PricingRule, error) {
	var (
		p     domain.PricingRule
		start *string
		end   *string
		days  []int32
	)

	if err := row.Scan(
		&p.ID, &p.CafeID, &p.Name, &p.Type, &p.Multiplier,
		&start, &end, &days, &p.IsActive, &p.CreatedAt,
	); err != nil {
		return domain.PricingRule{}, err
	}

	if start != nil {
		p.StartTime = *start
	}
	if end != nil {
		p.EndTime = *end
	}
	for _, d := range days {
		p.DaysOfWeek = append(p.DaysOfWeek, int(d))
	}

	return p, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *PricingRepo) Create(ctx context.Context, p *domain.PricingRule) error {
	const op = "postgres.PricingRepo.Create"

	var days []int32
	for _, d := range p.DaysOfWeek {
		days = append(days, int32(d))
	}

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO pricing_rules(id, cafe_id, name, rule_type, multiplier, start_time, end_time, days_of_week, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		p.ID, p.CafeID, p.Name, p.Type, p.Multiplier,
		nullableText(p.StartTime), nullableText(p.EndTime), days, p.IsActive,
	).Scan(&p.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *PricingRepo) Get(ctx context.Context, id uuid.UUID) (domain.PricingRule, error) {
	const op = "postgres.PricingRepo.Get"

	p, err := scanRule(r.handle().QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM pricing_rules WHERE id = $1`, id))
	if err != nil {
		return domain.PricingRule{}, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *PricingRepo) ListByCafe(ctx context.Context, cafeID uuid.UUID, activeOnly bool) ([]domain.PricingRule, error) {
	const op = "postgres.PricingRepo.ListByCafe"

	rows, err := r.handle().Query(ctx,
		`SELECT `+ruleColumns+` FROM pricing_rules
		 WHERE cafe_id = $1 AND (NOT $2 OR is_active)
		 ORDER BY created_at`,
		cafeID, activeOnly,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PricingRule, error) {
		return scanRule(row)
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return rules, nil
}

func (r *PricingRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	const op = "postgres.PricingRepo.SetActive"

	tag, err := r.handle().Exec(ctx,
		`UPDATE pricing_rules SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}
