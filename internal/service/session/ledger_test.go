package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository/memory"
	"github.com/kirinyoku/gamecafe/internal/service/device"
	"github.com/kirinyoku/gamecafe/internal/service/pricing"
	"github.com/kirinyoku/gamecafe/internal/service/wallet"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) NotifyCustomer(_ context.Context, _ uuid.UUID, title, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

type fixture struct {
	ledger   *Ledger
	devices  *device.Registry
	engine   *pricing.Engine
	wallet   *wallet.Ledger
	clock    *clock
	notifier *recordingNotifier
	store    *memory.Store
	cafeID   uuid.UUID
	customer uuid.UUID
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	ctx := context.Background()

	clk := &clock{t: time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC)}
	store := memory.New(memory.WithClock(clk.Now))

	owner := domain.User{ID: uuid.New(), Phone: "+913", Name: "Owner", Role: domain.RoleCafeOwner, ReferralCode: "OWNER003"}
	require.NoError(t, store.Repos().Users().Create(ctx, &owner))
	customer := domain.User{ID: uuid.New(), Phone: "+914", Name: "Player", Role: domain.RoleCustomer, ReferralCode: "PLAYER04"}
	require.NoError(t, store.Repos().Users().Create(ctx, &customer))
	cafe := domain.Cafe{ID: uuid.New(), OwnerID: owner.ID, Name: "Arena"}
	require.NoError(t, store.Repos().Cafes().Create(ctx, &cafe))

	devices := device.New(store, nil, nil, nil, device.Config{Now: clk.Now})
	engine := pricing.New(store, pricing.Config{Location: time.UTC, Now: clk.Now})
	ledger := wallet.New(store)
	notifier := &recordingNotifier{}

	l := New(store, devices, engine, ledger, notifier, nil, Config{
		NoShowPenalty:    50,
		ExtensionPricing: policy,
		Now:              clk.Now,
	})

	return &fixture{
		ledger:   l,
		devices:  devices,
		engine:   engine,
		wallet:   ledger,
		clock:    clk,
		notifier: notifier,
		store:    store,
		cafeID:   cafe.ID,
		customer: customer.ID,
	}
}

func (f *fixture) device(t *testing.T, rate float64) domain.Device {
	t.Helper()
	d, err := f.devices.Create(context.Background(), f.cafeID, device.Spec{
		Name:       fmt.Sprintf("PC-%s", uuid.NewString()[:6]),
		Type:       domain.DevicePC,
		HourlyRate: rate,
	})
	require.NoError(t, err)
	return d
}

func TestEnd_TwoHoursAtBaseRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 150)

	s, err := f.ledger.Start(ctx, f.customer, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, s.Status)
	assert.Zero(t, s.TotalAmount)

	got, err := f.devices.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceOccupied, got.Status)

	f.clock.Advance(2 * time.Hour)

	s, err = f.ledger.End(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCompleted, s.Status)
	assert.Equal(t, 300.0, s.TotalAmount)
	require.NotNil(t, s.EndTime)
	require.NotNil(t, s.DurationHours)
	assert.Equal(t, 2.0, *s.DurationHours)

	got, err = f.devices.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAvailable, got.Status)

	_, err = f.ledger.End(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.ledger.End(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnd_UsesEffectiveRate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 100)

	_, err := f.engine.CreateRule(ctx, f.cafeID, pricing.RuleInput{Name: "Surge", Type: domain.RulePeak, Multiplier: 1.5})
	require.NoError(t, err)

	s, err := f.ledger.Start(ctx, f.customer, d.ID)
	require.NoError(t, err)

	f.clock.Advance(90 * time.Minute)

	s, err = f.ledger.End(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 225.0, s.TotalAmount)
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 100)

	_, err := f.ledger.Start(ctx, f.customer, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// unknown customer rolls the occupy back
	_, err = f.ledger.Start(ctx, uuid.New(), d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	got, err := f.devices.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceAvailable, got.Status)

	_, err = f.devices.SetStatus(ctx, d.ID, domain.DeviceMaintenance)
	require.NoError(t, err)
	_, err = f.ledger.Start(ctx, f.customer, d.ID)
	assert.ErrorIs(t, err, domain.ErrDeviceUnavailable)
}

func TestStart_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 100)

	const n = 12
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		ok          int
		unavailable int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Start(ctx, f.customer, d.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, domain.ErrDeviceUnavailable):
				unavailable++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, unavailable)

	open, err := f.ledger.ListByCafe(ctx, f.cafeID, nil, 0)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestExtend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 150)

	_, err := f.engine.CreateRule(ctx, f.cafeID, pricing.RuleInput{Name: "Surge", Type: domain.RulePeak, Multiplier: 2})
	require.NoError(t, err)

	s, err := f.ledger.Start(ctx, f.customer, d.ID)
	require.NoError(t, err)

	for _, hours := range []float64{0, -1} {
		_, err = f.ledger.Extend(ctx, s.ID, hours)
		assert.ErrorIs(t, err, domain.ErrValidation)
	}

	s, err = f.ledger.Extend(ctx, s.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionExtended, s.Status)
	assert.Equal(t, 300.0, s.TotalAmount, "base policy ignores pricing rules")

	prev := s.TotalAmount
	s, err = f.ledger.Extend(ctx, s.ID, 0.5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, s.TotalAmount, prev)
	assert.Equal(t, 375.0, s.TotalAmount)

	// ended early: the committed amount stands
	f.clock.Advance(30 * time.Minute)
	s, err = f.ledger.End(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 375.0, s.TotalAmount)

	_, err = f.ledger.Extend(ctx, s.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestExtend_DynamicPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionDynamic)
	d := f.device(t, 150)

	_, err := f.engine.CreateRule(ctx, f.cafeID, pricing.RuleInput{Name: "Surge", Type: domain.RulePeak, Multiplier: 2})
	require.NoError(t, err)

	s, err := f.ledger.Start(ctx, f.customer, d.ID)
	require.NoError(t, err)

	s, err = f.ledger.Extend(ctx, s.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 300.0, s.TotalAmount)
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 100)

	s, err := f.ledger.Start(ctx, f.customer, d.ID)
	require.NoError(t, err)

	s, err = f.ledger.CheckIn(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, s.CheckedInAt)
	first := *s.CheckedInAt

	f.clock.Advance(time.Minute)
	s, err = f.ledger.CheckIn(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first, *s.CheckedInAt)

	_, err = f.ledger.End(ctx, s.ID)
	require.NoError(t, err)

	_, err = f.ledger.CheckIn(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestApplyCoupon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)
	d := f.device(t, 150)

	_, err := f.engine.CreateCoupon(ctx, f.cafeID, pricing.CouponInput{
		Code: "TENOFF", DiscountType: domain.DiscountPercentage, DiscountValue: 10, ValidDays: 30,
	})
	require.NoError(t, err)

	s, err := f.ledger.Start(ctx, f.customer, d.ID)
	require.NoError(t, err)

	_, err = f.ledger.ApplyCoupon(ctx, s.ID, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidCoupon)

	s, err = f.ledger.ApplyCoupon(ctx, s.ID, "tenoff")
	require.NoError(t, err)
	require.NotNil(t, s.CouponCode)
	assert.Equal(t, "TENOFF", *s.CouponCode)

	_, err = f.ledger.ApplyCoupon(ctx, s.ID, "TENOFF")
	assert.ErrorIs(t, err, domain.ErrConflict)

	f.clock.Advance(2 * time.Hour)
	s, err = f.ledger.End(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 270.0, s.TotalAmount)
}

func TestApplyCoupon_UsageCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ExtensionBase)

	maxUses := 3
	_, err := f.engine.CreateCoupon(ctx, f.cafeID, pricing.CouponInput{
		Code: "FIXED50", DiscountType: domain.DiscountFixed, DiscountValue: 50, MaxUses: &maxUses, ValidDays: 1,
	})
	require.NoError(t, err)

	applied := 0
	for i := 0; i < 5; i++ {
		d := f.device(t, 100)
		s, err := f.ledger.Start(ctx, f.customer, d.ID)
		require.NoError(t, err)

		_, err = f.ledger.ApplyCoupon(ctx, s.ID, "fixed50")
		if i < maxUses {
			require.NoError(t, err)
			applied++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrCouponLimitReached)
	}

	assert.Equal(t, maxUses, applied)
}

func TestBill(t *testing.T) {
	percentage := domain.DiscountPercentage
	fixed := domain.DiscountFixed
	ten, eighty, five := 10.0, 80.0, 500.0

	tests := []struct {
		name    string
		hours   float64
		rate    float64
		session domain.Session
		want    float64
	}{
		{name: "elapsed", hours: 2, rate: 150, want: 300},
		{name: "committed wins", hours: 1, rate: 100, session: domain.Session{TotalAmount: 250}, want: 250},
		{name: "overstay keeps surcharge", hours: 8, rate: 100, session: domain.Session{TotalAmount: 750, OverstayPenalty: true}, want: 1200},
		{name: "overstay below committed", hours: 4.5, rate: 100, session: domain.Session{TotalAmount: 750, OverstayPenalty: true}, want: 750},
		{name: "percentage", hours: 2, rate: 150, session: domain.Session{CouponDiscountType: &percentage, CouponDiscount: &ten}, want: 270},
		{name: "fixed clamps", hours: 0.5, rate: 100, session: domain.Session{CouponDiscountType: &fixed, CouponDiscount: &eighty}, want: 0},
		{
			name:    "below minimum",
			hours:   1,
			rate:    100,
			session: domain.Session{CouponDiscountType: &fixed, CouponDiscount: &eighty, CouponMinAmount: &five},
			want:    100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bill(tt.hours, tt.rate, tt.session, 1.5))
		})
	}
}
