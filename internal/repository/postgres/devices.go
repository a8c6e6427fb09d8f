package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type DeviceRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *DeviceRepo) With(db DB) *DeviceRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *DeviceRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const deviceColumns = `id, cafe_id, name, device_type, specifications, status, hourly_rate, is_active, created_at`

func scanDevice(row interface{ Scan(...any) error }) (domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.ID, &d.CafeID, &d.Name, &d.Type, &d.Specifications,
		&d.Status, &d.HourlyRate, &d.IsActive, &d.CreatedAt,
	)
	return d, err
}

func (r *DeviceRepo) Create(ctx context.Context, d *domain.Device) error {
	const op = "postgres.DeviceRepo.Create"

	if err := r.handle().QueryRow(ctx,
		`INSERT INTO devices(id, cafe_id, name, device_type, specifications, status, hourly_rate)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING is_active, created_at`,
		d.ID, d.CafeID, d.Name, d.Type, d.Specifications, d.Status, d.HourlyRate,
	).Scan(&d.IsActive, &d.CreatedAt); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *DeviceRepo) Get(ctx context.Context, id uuid.UUID) (domain.Device, error) {
	const op = "postgres.DeviceRepo.Get"

	d, err := scanDevice(r.handle().QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = $1`, id))
	if err != nil {
		return domain.Device{}, wrapDBErr(op, err)
	}

	return d, nil
}

func (r *DeviceRepo) ListByCafe(ctx context.Context, cafeID uuid.UUID) ([]domain.Device, error) {
	const op = "postgres.DeviceRepo.ListByCafe"

	rows, err := r.handle().Query(ctx,
		`SELECT `+deviceColumns+` FROM devices
		 WHERE cafe_id = $1
		 ORDER BY name`, cafeID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	devices, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Device, error) {
		return scanDevice(row)
	})
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return devices, nil
}

// SetStatus overwrites the status without looking at the current one.
//
// Returns:
//   - error: repository.ErrNotFound if the device does not exist.
func (r *DeviceRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus) error {
	const op = "postgres.DeviceRepo.SetStatus"

	tag, err := r.handle().Exec(ctx,
		`UPDATE devices SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return nil
}

// CompareAndSetStatus is the single-statement test-and-set used for occupancy.
// Inactive devices never match.
//
// Returns:
//   - error: repository.ErrNotFound if the device does not exist.
//   - error: repository.ErrStatusMismatch if the device is not in status from.
func (r *DeviceRepo) CompareAndSetStatus(
	ctx context.Context,
	id uuid.UUID,
	from, to domain.DeviceStatus,
) error {
	const op = "postgres.DeviceRepo.CompareAndSetStatus"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE devices SET status = $3
		 WHERE id = $1 AND status = $2 AND is_active`,
		id, from, to,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM devices WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return wrapDBErr(op, err)
	}

	if !exists {
		return wrapDBErr(op, repository.ErrNotFound)
	}

	return wrapDBErr(op, repository.ErrStatusMismatch)
}

func (r *DeviceRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.DeviceRepo.Deactivate"

	tag, err := r.handle().Exec(ctx,
		`UPDATE devices SET is_active = false WHERE id = $1 AND status <> 'OCCUPIED'`, id)
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
