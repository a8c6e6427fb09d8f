package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisx "github.com/kirinyoku/gamecafe/internal/redis"
	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/logger"
	"github.com/kirinyoku/gamecafe/internal/repository"
	redisrepo "github.com/kirinyoku/gamecafe/internal/repository/redis"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

// Publisher announces committed device status changes.
type Publisher interface {
	PublishDeviceStatus(ctx context.Context, cafeID, deviceID uuid.UUID, status domain.DeviceStatus) error
}

type Config struct {
	ListTTL time.Duration
	Now     func() time.Time
}

// Registry is the single owner of device status.
type Registry struct {
	uow       uow.Runner
	cache     *redisrepo.Cache
	publisher Publisher
	log       *zap.Logger
	cfg       Config
}

// New builds a registry. cache and publisher may be nil.
func New(runner uow.Runner, cache *redisrepo.Cache, publisher Publisher, log *zap.Logger, cfg Config) *Registry {
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 30 * time.Second
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Registry{
		uow:       runner,
		cache:     cache,
		publisher: publisher,
		log:       log,
		cfg:       cfg,
	}
}

type Spec struct {
	Name           string
	Type           domain.DeviceType
	Specifications string
	HourlyRate     float64
}

func (s Spec) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return domain.ValidationError{Field: "name", Reason: "required"}
	}
	if !s.Type.Valid() {
		return domain.ValidationError{Field: "device_type", Reason: fmt.Sprintf("unknown type %q", s.Type)}
	}
	if !(s.HourlyRate > 0) {
		return domain.ValidationError{Field: "hourly_rate", Reason: "must be positive"}
	}
	return nil
}

// Create registers an AVAILABLE device in the café.
//
// Returns:
//   - error: domain.ErrValidation on a malformed spec.
//   - error: domain.ErrNotFound if the café does not exist.
func (r *Registry) Create(ctx context.Context, cafeID uuid.UUID, spec Spec) (domain.Device, error) {
	const op = "service.device.Create"

	if err := spec.validate(); err != nil {
		return domain.Device{}, fmt.Errorf("%s:%w", op, err)
	}

	d := domain.Device{
		ID:             uuid.New(),
		CafeID:         cafeID,
		Name:           strings.TrimSpace(spec.Name),
		Type:           spec.Type,
		Specifications: spec.Specifications,
		Status:         domain.DeviceAvailable,
		HourlyRate:     spec.HourlyRate,
	}

	if err := r.uow.Repos().Devices().Create(ctx, &d); err != nil {
		return domain.Device{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	r.invalidate(ctx, cafeID)

	return d, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (domain.Device, error) {
	const op = "service.device.Get"

	d, err := r.uow.Repos().Devices().Get(ctx, id)
	if err != nil {
		return domain.Device{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return d, nil
}

// ListByCafe returns the café's devices, read through the cache when one is configured.
func (r *Registry) ListByCafe(ctx context.Context, cafeID uuid.UUID) ([]domain.Device, error) {
	const op = "service.device.ListByCafe"

	load := func(ctx context.Context) ([]domain.Device, error) {
		return r.uow.Repos().Devices().ListByCafe(ctx, cafeID)
	}

	var (
		devices []domain.Device
		err     error
	)
	if r.cache != nil {
		devices, err = redisrepo.Load(ctx, r.cache, redisx.KeyCafeDevices(cafeID), r.cfg.ListTTL, load)
	} else {
		devices, err = load(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return devices, nil
}

// SetStatus overwrites the status without checking the current one.
//
// Returns:
//   - error: domain.ErrNotFound if the device does not exist.
//   - error: domain.ErrValidation for an unknown status.
func (r *Registry) SetStatus(ctx context.Context, id uuid.UUID, status domain.DeviceStatus) (domain.Device, error) {
	const op = "service.device.SetStatus"

	if !status.Valid() {
		return domain.Device{}, fmt.Errorf("%s:%w", op,
			domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)})
	}

	var d domain.Device
	err := r.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
		if err := repos.Devices().SetStatus(ctx, id, status); err != nil {
			return err
		}

		var err error
		d, err = repos.Devices().Get(ctx, id)
		if err != nil {
			return err
		}

		r.announce(after, d)
		return nil
	})
	if err != nil {
		return domain.Device{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return d, nil
}

// Occupy moves an AVAILABLE device to OCCUPIED in its own unit of work.
func (r *Registry) Occupy(ctx context.Context, id uuid.UUID) (domain.Device, error) {
	var d domain.Device
	err := r.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
		var err error
		d, err = r.Tx(repos, after).Occupy(ctx, id)
		return err
	})
	return d, err
}

// Release moves an OCCUPIED device back to AVAILABLE in its own unit of work.
func (r *Registry) Release(ctx context.Context, id uuid.UUID) (domain.Device, error) {
	var d domain.Device
	err := r.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
		var err error
		d, err = r.Tx(repos, after).Release(ctx, id)
		return err
	})
	return d, err
}

// Deactivate retires a device. Devices are never deleted.
//
// Returns:
//   - error: domain.ErrInvalidState if the device is occupied.
func (r *Registry) Deactivate(ctx context.Context, id uuid.UUID) error {
	const op = "service.device.Deactivate"

	err := r.uow.Do(ctx, func(ctx context.Context, repos repository.Repos, after func(uow.AfterCommit)) error {
		d, err := repos.Devices().Get(ctx, id)
		if err != nil {
			return err
		}

		if err := repos.Devices().Deactivate(ctx, id); err != nil {
			if errors.Is(err, repository.ErrStatusMismatch) {
				return domain.InvalidStateError{Entity: "device", Status: string(domain.DeviceOccupied), Op: "deactivate"}
			}
			return err
		}

		after(func(ctx context.Context) { r.invalidate(ctx, d.CafeID) })
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return nil
}

// Tx binds device transitions to a running unit of work. Status announcements are
// deferred until that unit of work commits.
func (r *Registry) Tx(repos repository.Repos, after func(uow.AfterCommit)) *Tx {
	return &Tx{r: r, repos: repos, after: after}
}

type Tx struct {
	r     *Registry
	repos repository.Repos
	after func(uow.AfterCommit)
}

// Occupy is a compare-and-set AVAILABLE to OCCUPIED.
//
// Returns:
//   - domain.Device: the device after the transition.
//   - error: domain.ErrDeviceUnavailable if the device is not AVAILABLE or not active.
//   - error: domain.ErrNotFound if the device does not exist.
func (t *Tx) Occupy(ctx context.Context, id uuid.UUID) (domain.Device, error) {
	const op = "service.device.Occupy"

	d, err := t.transition(ctx, id, domain.DeviceAvailable, domain.DeviceOccupied)
	if err != nil {
		if errors.Is(err, repository.ErrStatusMismatch) {
			return domain.Device{}, fmt.Errorf("%s:%w", op, domain.DeviceUnavailableError{DeviceID: id, Status: d.Status})
		}
		return domain.Device{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return d, nil
}

// Release is a compare-and-set OCCUPIED to AVAILABLE.
//
// Returns:
//   - error: domain.ErrInvalidState if the device is not OCCUPIED.
func (t *Tx) Release(ctx context.Context, id uuid.UUID) (domain.Device, error) {
	const op = "service.device.Release"

	d, err := t.transition(ctx, id, domain.DeviceOccupied, domain.DeviceAvailable)
	if err != nil {
		if errors.Is(err, repository.ErrStatusMismatch) {
			return d, fmt.Errorf("%s:%w", op, domain.InvalidStateError{Entity: "device", Status: string(d.Status), Op: "release"})
		}
		return domain.Device{}, fmt.Errorf("%s:%w", op, mapRepoErr(err))
	}

	return d, nil
}

// transition returns the device as it was when the compare-and-set failed, or as it is after it succeeded.
func (t *Tx) transition(ctx context.Context, id uuid.UUID, from, to domain.DeviceStatus) (domain.Device, error) {
	if err := t.repos.Devices().CompareAndSetStatus(ctx, id, from, to); err != nil {
		// Any other failure may have aborted the transaction; the unit of work decides on retry.
		if !errors.Is(err, repository.ErrStatusMismatch) {
			return domain.Device{}, err
		}

		d, getErr := t.repos.Devices().Get(ctx, id)
		if getErr != nil {
			return domain.Device{}, getErr
		}
		return d, err
	}

	d, err := t.repos.Devices().Get(ctx, id)
	if err != nil {
		return domain.Device{}, err
	}

	t.r.announce(t.after, d)

	return d, nil
}

func (r *Registry) announce(after func(uow.AfterCommit), d domain.Device) {
	after(func(ctx context.Context) {
		r.invalidate(ctx, d.CafeID)

		if r.publisher == nil {
			return
		}
		if err := r.publisher.PublishDeviceStatus(ctx, d.CafeID, d.ID, d.Status); err != nil {
			r.log.Warn("publish device status",
				zap.String(logger.FieldDeviceID, d.ID.String()),
				zap.Error(err),
			)
		}
	})
}

func (r *Registry) invalidate(ctx context.Context, cafeID uuid.UUID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidateCafe(ctx, cafeID); err != nil {
		r.log.Warn("invalidate cafe cache",
			zap.String(logger.FieldCafeID, cafeID.String()),
			zap.Error(err),
		)
	}
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
