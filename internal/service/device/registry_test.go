package device

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.DeviceStatus
}

func (p *recordingPublisher) PublishDeviceStatus(_ context.Context, _, _ uuid.UUID, status domain.DeviceStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, status)
	return nil
}

func (p *recordingPublisher) seen() []domain.DeviceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.DeviceStatus(nil), p.events...)
}

func newRegistry(t *testing.T) (*Registry, *recordingPublisher, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	store := memory.New()
	owner := domain.User{ID: uuid.New(), Phone: "+912", Name: "Owner", Role: domain.RoleCafeOwner, ReferralCode: "OWNER002"}
	require.NoError(t, store.Repos().Users().Create(ctx, &owner))
	cafe := domain.Cafe{ID: uuid.New(), OwnerID: owner.ID, Name: "Arena"}
	require.NoError(t, store.Repos().Cafes().Create(ctx, &cafe))

	pub := &recordingPublisher{}
	return New(store, nil, pub, nil, Config{}), pub, cafe.ID
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	r, _, cafeID := newRegistry(t)

	tests := []struct {
		name string
		spec Spec
	}{
		{name: "no name", spec: Spec{Type: domain.DevicePC, HourlyRate: 100}},
		{name: "bad type", spec: Spec{Name: "PC-1", Type: "XBOX", HourlyRate: 100}},
		{name: "zero rate", spec: Spec{Name: "PC-1", Type: domain.DevicePC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(ctx, cafeID, tt.spec)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err := r.Create(ctx, uuid.New(), Spec{Name: "PC-1", Type: domain.DevicePC, HourlyRate: 100})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOccupyRelease(t *testing.T) {
	ctx := context.Background()
	r, pub, cafeID := newRegistry(t)

	d, err := r.Create(ctx, cafeID, Spec{Name: "PC-1", Type: domain.DevicePC, HourlyRate: 100})
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAvailable, d.Status)

	d, err = r.Occupy(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceOccupied, d.Status)

	_, err = r.Occupy(ctx, d.ID)
	var unavailable domain.DeviceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, domain.DeviceOccupied, unavailable.Status)

	assert.ErrorIs(t, r.Deactivate(ctx, d.ID), domain.ErrInvalidState)

	d, err = r.Release(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAvailable, d.Status)

	_, err = r.Release(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	assert.Equal(t, []domain.DeviceStatus{domain.DeviceOccupied, domain.DeviceAvailable}, pub.seen())

	require.NoError(t, r.Deactivate(ctx, d.ID))
	_, err = r.Occupy(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}

func TestOccupy_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	r, _, cafeID := newRegistry(t)

	d, err := r.Create(ctx, cafeID, Spec{Name: "PS5-1", Type: domain.DevicePS5, HourlyRate: 150})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Occupy(ctx, d.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMaintenance(t *testing.T) {
	ctx := context.Background()
	r, _, cafeID := newRegistry(t)

	d, err := r.Create(ctx, cafeID, Spec{Name: "VR-1", Type: domain.DeviceVR, HourlyRate: 200})
	require.NoError(t, err)

	_, err = r.ScheduleMaintenance(ctx, d.ID, MaintenanceInput{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	rec, err := r.ScheduleMaintenance(ctx, d.ID, MaintenanceInput{IssueDescription: "headset flicker"})
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceScheduled, rec.Status)
	assert.Equal(t, cafeID, rec.CafeID)

	got, err := r.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceMaintenance, got.Status)

	_, err = r.Occupy(ctx, d.ID)
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)

	_, err = r.ScheduleMaintenance(ctx, d.ID, MaintenanceInput{IssueDescription: "again"})
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)

	cost := 450.0
	rec, err = r.CompleteMaintenance(ctx, rec.ID, &cost, "replaced cable")
	require.NoError(t, err)
	assert.Equal(t, domain.MaintenanceCompleted, rec.Status)
	require.NotNil(t, rec.CompletedDate)

	got, err = r.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAvailable, got.Status)

	_, err = r.CompleteMaintenance(ctx, rec.ID, nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	recs, err := r.ListMaintenance(ctx, cafeID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	stored, err := r.GetMaintenance(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "replaced cable", stored.Notes)

	_, err = r.GetMaintenance(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	r, pub, cafeID := newRegistry(t)

	d, err := r.Create(ctx, cafeID, Spec{Name: "SIM-1", Type: domain.DeviceSimulator, HourlyRate: 300})
	require.NoError(t, err)

	_, err = r.SetStatus(ctx, d.ID, "BROKEN")
	assert.ErrorIs(t, err, domain.ErrValidation)

	d, err = r.SetStatus(ctx, d.ID, domain.DeviceMaintenance)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceMaintenance, d.Status)
	assert.Equal(t, []domain.DeviceStatus{domain.DeviceMaintenance}, pub.seen())

	list, err := r.ListByCafe(ctx, cafeID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.DeviceMaintenance, list[0].Status)
}
