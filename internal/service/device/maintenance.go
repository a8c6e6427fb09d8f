package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

type MaintenanceInput struct {
	IssueDescription string
	MaintenanceType  string
	// ScheduledDate defaults to now.
	ScheduledDate *time.Time
}

// ScheduleMaintenance takes an AVAILABLE device out of service and records the job.
//
// Returns:
//   - domain.MaintenanceRecord: the SCHEDULED record.
//   - error: domain.ErrDeviceUnavailable if the device is occupied or already in maintenance.
func (r *Registry) ScheduleMaintenance(ctx context.Context, deviceID uuid.UUID, in MaintenanceInput) (domain.MaintenanceRecord, error) {
	const op = "service.device.ScheduleMaintenance"

	if strings.TrimSpace(in.IssueDescription) == "" {
		return domain.MaintenanceRecord{}, fmt.Errorf("%s:%w", op,
			domain.ValidationError{Field: "issue_description", Reason: "required"})
	}

	if in.MaintenanceType == "" {
		in.MaintenanceType = "repair"
	}

	scheduled := r.cfg.Now().UTC()
	if in.ScheduledDate != nil {
		scheduled = in.ScheduledDate.UTC()
	}

	var rec domain.MaintenanceRecord
	err := r.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
		d, err := r.Tx(repos, after).transition(ctx, deviceID, domain.DeviceAvailable, domain.DeviceMaintenance)
		if err != nil {
			if errors.Is(err, repository.ErrStatusMismatch) {
				return domain.DeviceUnavailableError{DeviceID: deviceID, Status: d.Status}
			}
			return err
		}

		rec = domain.MaintenanceRecord{
			ID:               uuid.New(),
			DeviceID:         d.ID,
			CafeID:           d.CafeID,
			IssueDescription: strings.TrimSpace(in.IssueDescription),
			MaintenanceType:  in.MaintenanceType,
			Status:           domain.MaintenanceScheduled,
			ScheduledDate:    scheduled,
		}

		return repos.Maintenance().Create(ctx, &rec)
	})
	if err != nil {
		return domain.MaintenanceRecord{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return rec, nil
}

// CompleteMaintenance closes the record and returns the device to service if it is
// still in MAINTENANCE.
//
// Returns:
//   - error: domain.ErrInvalidState if the record is already completed.
func (r *Registry) CompleteMaintenance(ctx context.Context, recordID uuid.UUID, cost *float64, notes string) (domain.MaintenanceRecord, error) {
	const op = "service.device.CompleteMaintenance"

	if cost != nil && *cost < 0 {
		return domain.MaintenanceRecord{}, fmt.Errorf("%s:%w", op,
			domain.ValidationError{Field: "cost", Reason: "must not be negative"})
	}

	var rec domain.MaintenanceRecord
	err := r.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
		err := repos.Maintenance().Complete(ctx, recordID, r.cfg.Now().UTC(), cost, strings.TrimSpace(notes))
		if err != nil {
			if errors.Is(err, repository.ErrStatusMismatch) {
				return domain.InvalidStateError{Entity: "maintenance", Status: string(domain.MaintenanceCompleted), Op: "complete"}
			}
			return err
		}

		rec, err = repos.Maintenance().Get(ctx, recordID)
		if err != nil {
			return err
		}

		// Staff may have moved the device out of MAINTENANCE by hand.
		_, err = r.Tx(repos, after).transition(ctx, rec.DeviceID, domain.DeviceMaintenance, domain.DeviceAvailable)
		if err != nil && !errors.Is(err, repository.ErrStatusMismatch) {
			return err
		}

		return nil
	})
	if err != nil {
		return domain.MaintenanceRecord{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return rec, nil
}

func (r *Registry) ListMaintenance(ctx context.Context, cafeID uuid.UUID) ([]domain.MaintenanceRecord, error) {
	const op = "service.device.ListMaintenance"

	recs, err := r.uow.Repos().Maintenance().ListByCafe(ctx, cafeID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return recs, nil
}

func (r *Registry) GetMaintenance(ctx context.Context, recordID uuid.UUID) (domain.MaintenanceRecord, error) {
	const op = "service.device.GetMaintenance"

	rec, err := r.uow.Repos().Maintenance().Get(ctx, recordID)
	if err != nil {
		return domain.MaintenanceRecord{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return rec, nil
}
