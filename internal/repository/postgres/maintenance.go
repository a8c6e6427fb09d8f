package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type MaintenanceRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *MaintenanceRepo) With(db DB) *MaintenanceRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *MaintenanceRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const maintenanceColumns = `id, device_id, cafe_id, issue_description, maintenance_type, status,
	scheduled_date, completed_date, cost, notes, created_at`

func scanMaintenance(row interface{ Scan(...any) error }) (domain.MaintenanceRecord, error) {
	var m domain.MaintenanceRecord
	err := row.Scan(
		&m.ID, &m.DeviceID, &m.CafeID, &m.IssueDescription, &m.MaintenanceType, &m.Status,
		&m.ScheduledDate, &m.CompletedDate, &m.Cost, &m.Notes, &m.CreatedAt,
	)
	return m, err
}

func (r *MaintenanceRepo) Create(ctx context.Context, m *domain.MaintenanceRecord) error {
	const op = "postgres.MaintenanceRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO device_maintenance(id, device_id, cafe_id, issue_description, maintenance_type, status, scheduled_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		m.ID, m.DeviceID, m.CafeID, m.IssueDescription, m.MaintenanceType, m.Status, m.ScheduledDate,
	).Scan(&m.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *MaintenanceRepo) Get(ctx context.Context, id uuid.UUID) (domain.MaintenanceRecord, error) {
	const op = "postgres.MaintenanceRepo.Get"

	m, err := scanMaintenance(r.handle().QueryRow(ctx,
		`SELECT `+maintenanceColumns+` FROM device_maintenance WHERE id = $1`, id))
	if err != nil {
		return domain.MaintenanceRecord{}, wrapDBErr(op, err)
	}

	return m, nil
}

func (r *MaintenanceRepo) Complete(
	ctx context.Context,
	id uuid.UUID,
	at time.Time,
	cost *float64,
	notes string,
) error {
	const op = "postgres.MaintenanceRepo.Complete"

	tag, err := r.handle().Exec(ctx,
		`UPDATE device_maintenance
		 SET status = 'COMPLETED', completed_date = $2, cost = $3, notes = $4
		 WHERE id = $1 AND status = 'SCHEDULED'`,
		id, at, cost, notes,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return wrapDBErr(op, err)
		}
		return wrapDBErr(op, repository.ErrStatusMismatch)
	}

	return nil
}

func (r *MaintenanceRepo) ListByCafe(ctx context.Context, cafeID uuid.UUID) ([]domain.MaintenanceRecord, error) {
	const op = "postgres.MaintenanceRepo.ListByCafe"

	rows, err := r.handle().Query(ctx,
		`SELECT `+maintenanceColumns+` FROM device_maintenance
		 WHERE cafe_id = $1
		 ORDER BY scheduled_date DESC
		 LIMIT 100`, cafeID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.MaintenanceRecord, error) {
		return scanMaintenance(row)
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return records, nil
}
