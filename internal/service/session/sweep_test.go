package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

func TestSweepOverstays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 100)
	cafes := []uuid.UUID{f.cafeID}

	s, err := f.ledger.Start(ctx, f.customer, d.ID)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Hour)
	n, err := f.ledger.SweepOverstays(ctx, cafes)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(2 * time.Hour)
	n, err = f.ledger.SweepOverstays(ctx, cafes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err = f.ledger.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 750.0, s.TotalAmount)
	assert.Equal(t, domain.SessionActive, s.Status)
	assert.True(t, s.OverstayPenalty)
	assert.Nil(t, s.EndTime)

	// same instant: recomputed, not accumulated
	n, err = f.ledger.SweepOverstays(ctx, cafes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err = f.ledger.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 750.0, s.TotalAmount)

	got, err := f.devices.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceOccupied, got.Status)

	// one alert for the first flag only
	assert.Equal(t, []string{"Session overstay"}, f.notifier.titles)

	// ending keeps the surcharge, also for time after the last sweep
	f.clock.Advance(3 * time.Hour)
	s, err = f.ledger.End(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, s.TotalAmount)
}

func TestSweepNoShows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	cafes := []uuid.UUID{f.cafeID}

	absent := f.device(t, 100)
	present := f.device(t, 100)

	noShow, err := f.ledger.Start(ctx, f.customer, absent.ID)
	require.NoError(t, err)
	checkedIn, err := f.ledger.Start(ctx, f.customer, present.ID)
	require.NoError(t, err)
	_, err = f.ledger.CheckIn(ctx, checkedIn.ID)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	n, err := f.ledger.SweepNoShows(ctx, cafes)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(10 * time.Minute)
	n, err = f.ledger.SweepNoShows(ctx, cafes)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err := f.ledger.Get(ctx, noShow.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionNoShow, s.Status)
	assert.NotNil(t, s.EndTime)
	assert.Zero(t, s.TotalAmount)

	got, err := f.devices.Get(ctx, absent.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAvailable, got.Status)

	balance, err := f.wallet.Balance(ctx, f.customer)
	require.NoError(t, err)
	assert.Equal(t, -50.0, balance)

	txs, err := f.wallet.Transactions(ctx, f.customer, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxPenalty, txs[0].Type)
	require.NotNil(t, txs[0].ReferenceID)
	assert.Equal(t, noShow.ID, *txs[0].ReferenceID)

	s, err = f.ledger.Get(ctx, checkedIn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, s.Status)

	n, err = f.ledger.SweepNoShows(ctx, cafes)
	require.NoError(t, err)
	assert.Zero(t, n)

	balance, err = f.wallet.Balance(ctx, f.customer)
	require.NoError(t, err)
	assert.Equal(t, -50.0, balance)

	audit, err := f.wallet.Audit(ctx, f.customer)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
}

func TestSweeps_OtherCafesUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 100)

	_, err := f.ledger.Start(ctx, f.customer, d.ID)
	require.NoError(t, err)

	f.clock.Advance(6 * time.Hour)

	n, err := f.ledger.SweepNoShows(ctx, []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.ledger.SweepOverstays(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepNoShows_ExtendedSessionsExcluded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 100)

	s, err := f.ledger.Start(ctx, f.customer, d.ID)
	require.NoError(t, err)
	_, err = f.ledger.Extend(ctx, s.ID, 1)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	n, err := f.ledger.SweepNoShows(ctx, []uuid.UUID{f.cafeID})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweeps_ReadEveryPage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	f.ledger.cfg.SweepBatch = 2
	cafes := []uuid.UUID{f.cafeID}

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		s, err := f.ledger.Start(ctx, f.customer, f.device(t, 100).ID)
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	f.clock.Advance(5 * time.Hour)

	n, err := f.ledger.SweepOverstays(ctx, cafes)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = f.ledger.SweepNoShows(ctx, cafes)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	for _, id := range ids {
		s, err := f.ledger.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.SessionNoShow, s.Status)
		assert.True(t, s.OverstayPenalty)
	}
}
