package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

type HealthLogRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *HealthLogRepo) With(db DB) *HealthLogRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *HealthLogRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Append stores the reading. A zero RecordedAt takes the server clock.
func (r *HealthLogRepo) Append(ctx context.Context, l *domain.DeviceHealthLog) error {
	const op = "postgres.HealthLogRepo.Append"

	var at *time.Time
	if !l.RecordedAt.IsZero() {
		at = &l.RecordedAt
	}

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO device_health_logs(id, device_id, cafe_id, metric, value, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		 RETURNING recorded_at`,
		l.ID, l.DeviceID, l.CafeID, l.Metric, l.Value, at,
	).Scan(&l.RecordedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *HealthLogRepo) ListByDevice(ctx context.Context, deviceID uuid.UUID, limit int) ([]domain.DeviceHealthLog, error) {
	const op = "postgres.HealthLogRepo.ListByDevice"

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.handle().Query(ctx,
		`SELECT id, device_id, cafe_id, metric, value, recorded_at
		 FROM device_health_logs
		 WHERE device_id = $1
		 ORDER BY recorded_at DESC
		 LIMIT $2`, deviceID, limit)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DeviceHealthLog, error) {
		var l domain.DeviceHealthLog
		err := row.Scan(&l.ID, &l.DeviceID, &l.CafeID, &l.Metric, &l.Value, &l.RecordedAt)
		return l, err
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return logs, nil
}
