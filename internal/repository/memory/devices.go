package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
)

type deviceRepo struct{ h handle }

func (r deviceRepo) Create(_ context.Context, d *domain.Device) error {
	const op = "memory.DeviceRepo.Create"

	return r.h.run(func(st *state) error {
		if _, ok := st.cafes.get(d.CafeID); !ok {
			return fail(op, repository.ErrNotFound)
		}
		if _, ok := st.devices.get(d.ID); ok {
			return fail(op, fmt.Errorf("%w: devices_pkey", repository.ErrConflict))
		}

		d.IsActive = true
		d.CreatedAt = r.h.now()
		st.devices.insert(d.ID, *d)
		return nil
	})
}

func (r deviceRepo) Get(_ context.Context, id uuid.UUID) (domain.Device, error) {
	const op = "memory.DeviceRepo.Get"

	var d domain.Device
	err := r.h.run(func(st *state) error {
		found, ok := st.devices.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		d = found
		return nil
	})
	return d, err
}

func (r deviceRepo) ListByCafe(_ context.Context, cafeID uuid.UUID) ([]domain.Device, error) {
	var out []domain.Device
	err := r.h.run(func(st *state) error {
		for _, d := range st.devices.all() {
			if d.CafeID == cafeID {
				out = append(out, d)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return nil
	})
	return out, err
}

func (r deviceRepo) SetStatus(_ context.Context, id uuid.UUID, status domain.DeviceStatus) error {
	const op = "memory.DeviceRepo.SetStatus"

	return r.h.run(func(st *state) error {
		d, ok := st.devices.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		d.Status = status
		st.devices.put(id, d)
		return nil
	})
}

func (r deviceRepo) CompareAndSetStatus(_ context.Context, id uuid.UUID, from, to domain.DeviceStatus) error {
	const op = "memory.DeviceRepo.CompareAndSetStatus"

	return r.h.run(func(st *state) error {
		d, ok := st.devices.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		if d.Status != from || !d.IsActive {
			return fail(op, repository.ErrStatusMismatch)
		}
		d.Status = to
		st.devices.put(id, d)
		return nil
	})
}

func (r deviceRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	const op = "memory.DeviceRepo.Deactivate"

	return r.h.run(func(st *state) error {
		d, ok := st.devices.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		if d.Status == domain.DeviceOccupied {
			return fail(op, repository.ErrStatusMismatch)
		}
		d.IsActive = false
		st.devices.put(id, d)
		return nil
	})
}

type maintenanceRepo struct{ h handle }

func (r maintenanceRepo) Create(_ context.Context, m *domain.MaintenanceRecord) error {
	const op = "memory.MaintenanceRepo.Create"

	return r.h.run(func(st *state) error {
		if _, ok := st.devices.get(m.DeviceID); !ok {
			return fail(op, repository.ErrNotFound)
		}

		m.CreatedAt = r.h.now()
		st.maintenance.insert(m.ID, *m)
		return nil
	})
}

func (r maintenanceRepo) Get(_ context.Context, id uuid.UUID) (domain.MaintenanceRecord, error) {
	const op = "memory.MaintenanceRepo.Get"

	var m domain.MaintenanceRecord
	err := r.h.run(func(st *state) error {
		found, ok := st.maintenance.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		m = found
		return nil
	})
	return m, err
}

func (r maintenanceRepo) Complete(_ context.Context, id uuid.UUID, at time.Time, cost *float64, notes string) error {
	const op = "memory.MaintenanceRepo.Complete"

	return r.h.run(func(st *state) error {
		m, ok := st.maintenance.get(id)
		if !ok {
			return fail(op, repository.ErrNotFound)
		}
		if m.Status != domain.MaintenanceScheduled {
			return fail(op, repository.ErrStatusMismatch)
		}

		done := at
		m.Status = domain.MaintenanceCompleted
		m.CompletedDate = &done
		m.Cost = cost
		m.Notes = notes
		st.maintenance.put(id, m)
		return nil
	})
}

func (r maintenanceRepo) ListByCafe(_ context.Context, cafeID uuid.UUID) ([]domain.MaintenanceRecord, error) {
	var out []domain.MaintenanceRecord
	err := r.h.run(func(st *state) error {
		for _, m := range st.maintenance.all() {
			if m.CafeID == cafeID {
				out = append(out, m)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].ScheduledDate.After(out[j].ScheduledDate)
		})
		out = limited(out, 100)
		return nil
	})
	return out, err
}

type healthRepo struct{ h handle }

func healthRecorded(l domain.DeviceHealthLog) time.Time { return l.RecordedAt }

func (r healthRepo) Append(_ context.Context, l *domain.DeviceHealthLog) error {
	const op = "memory.HealthLogRepo.Append"

	return r.h.run(func(st *state) error {
		if _, ok := st.devices.get(l.DeviceID); !ok {
			return fail(op, repository.ErrNotFound)
		}

		if l.RecordedAt.IsZero() {
			l.RecordedAt = r.h.now()
		}
		st.health.insert(l.ID, *l)
		return nil
	})
}

func (r healthRepo) ListByDevice(_ context.Context, deviceID uuid.UUID, limit int) ([]domain.DeviceHealthLog, error) {
	var out []domain.DeviceHealthLog
	err := r.h.run(func(st *state) error {
		for _, l := range newestFirst(st.health, healthRecorded) {
			if l.DeviceID == deviceID {
				out = append(out, l)
			}
		}
		out = limited(out, limit)
		return nil
	})
	return out, err
}
