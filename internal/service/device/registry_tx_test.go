package device

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository"
	"github.com/kirinyoku/gamecafe/internal/repository/postgres"
	"github.com/kirinyoku/gamecafe/internal/uow"
)

// abortedDevices fails the compare-and-set with casErr and every later read with
// 25P02, the way an aborted postgres transaction does.
type abortedDevices struct {
	repository.DeviceRepository
	casErr error
	gets   int
}

func (d *abortedDevices) CompareAndSetStatus(context.Context, uuid.UUID, domain.DeviceStatus, domain.DeviceStatus) error {
	return d.casErr
}

func (d *abortedDevices) Get(context.Context, uuid.UUID) (domain.Device, error) {
	d.gets++
	return domain.Device{}, &pgconn.PgError{Code: "25P02"}
}

type devicesOverride struct {
	repository.Repos
	devices repository.DeviceRepository
}

func (r devicesOverride) Devices() repository.DeviceRepository { return r.devices }

func TestTx_TransitionKeepsTransactionErrors(t *testing.T) {
	ctx := context.Background()
	r, pub, _ := newRegistry(t)

	tests := []struct {
		name string
		run  func(tx *Tx, id uuid.UUID) error
	}{
		{name: "occupy", run: func(tx *Tx, id uuid.UUID) error { _, err := tx.Occupy(ctx, id); return err }},
		{name: "release", run: func(tx *Tx, id uuid.UUID) error { _, err := tx.Release(ctx, id); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices := &abortedDevices{casErr: &pgconn.PgError{Code: "40001"}}
			repos := devicesOverride{devices: devices}
			tx := r.Tx(repos, func(uow.AfterCommit) { t.Fatal("announced a failed transition") })

			err := tt.run(tx, uuid.New())
			require.Error(t, err)
			assert.True(t, postgres.IsRetryable(err), "got %v", err)
			assert.Zero(t, devices.gets)
		})
	}

	assert.Empty(t, pub.seen())
}

func TestTx_MismatchReadsCurrentStatus(t *testing.T) {
	ctx := context.Background()
	r, _, cafeID := newRegistry(t)

	d, err := r.Create(ctx, cafeID, Spec{Name: "PC-1", Type: domain.DevicePC, HourlyRate: 100})
	require.NoError(t, err)

	_, err = r.Occupy(ctx, d.ID)
	require.NoError(t, err)

	_, err = r.Occupy(ctx, d.ID)

	var unavailable domain.DeviceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, domain.DeviceOccupied, unavailable.Status)
}
