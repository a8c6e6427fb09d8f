package membership

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository/memory"
	"github.com/kirinyoku/gamecafe/internal/service/wallet"
)

type fixture struct {
	svc    *Service
	wallet *wallet.Ledger
	cafeID uuid.UUID
	alice  domain.User
	bob    domain.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := memory.New(memory.WithClock(func() time.Time { return now }))

	owner := domain.User{ID: uuid.New(), Phone: "+915", Name: "Owner", Role: domain.RoleCafeOwner, ReferralCode: "OWNER005"}
	alice := domain.User{ID: uuid.New(), Phone: "+916", Name: "Alice", Role: domain.RoleCustomer, ReferralCode: "ALICE006"}
	bob := domain.User{ID: uuid.New(), Phone: "+917", Name: "Bob", Role: domain.RoleCustomer, ReferralCode: "BOB00007"}
	for _, u := range []*domain.User{&owner, &alice, &bob} {
		require.NoError(t, store.Repos().Users().Create(ctx, u))
	}

	cafe := domain.Cafe{ID: uuid.New(), OwnerID: owner.ID, Name: "Arena"}
	require.NoError(t, store.Repos().Cafes().Create(ctx, &cafe))

	ledger := wallet.New(store)
	return fixture{
		svc:    New(store, ledger, func() time.Time { return now }),
		wallet: ledger,
		cafeID: cafe.ID,
		alice:  alice,
		bob:    bob,
	}
}

func TestPurchasePass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.PurchasePass(ctx, f.alice.ID, f.cafeID, domain.PassDaily)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	passes, err := f.svc.ListPasses(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, passes)

	_, err = f.wallet.TopUp(ctx, f.alice.ID, 600)
	require.NoError(t, err)

	p, err := f.svc.PurchasePass(ctx, f.alice.ID, f.cafeID, "daily")
	require.NoError(t, err)
	assert.Equal(t, domain.PassDaily, p.Type)
	assert.Equal(t, 8.0, p.HoursIncluded)
	assert.Equal(t, p.ValidFrom.AddDate(0, 0, 1), p.ValidUntil)

	balance, err := f.wallet.Balance(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, balance)

	_, err = f.svc.PurchasePass(ctx, f.alice.ID, f.cafeID, "YEARLY")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.PurchasePass(ctx, f.alice.ID, uuid.New(), domain.PassHourly)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	balance, err = f.wallet.Balance(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, balance)

	passes, err = f.svc.ListPasses(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, passes, 1)
}

func TestApplyReferral(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ApplyReferral(ctx, f.alice.ID, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.ApplyReferral(ctx, f.alice.ID, "alice006")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.ApplyReferral(ctx, f.alice.ID, "NOBODY")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	res, err := f.svc.ApplyReferral(ctx, f.alice.ID, "bob00007")
	require.NoError(t, err)
	assert.Equal(t, f.bob.ID, res.ReferrerID)

	for _, id := range []uuid.UUID{f.alice.ID, f.bob.ID} {
		audit, err := f.wallet.Audit(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ReferralReward, audit.Balance)
		assert.True(t, audit.Consistent)
	}

	_, err = f.svc.ApplyReferral(ctx, f.alice.ID, "BOB00007")
	assert.ErrorIs(t, err, domain.ErrConflict)

	balance, err := f.wallet.Balance(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, ReferralReward, balance)
}

func TestCatalog(t *testing.T) {
	plans := Catalog()
	require.Len(t, plans, 4)
	for i := 1; i < len(plans); i++ {
		assert.Greater(t, plans[i].Price, plans[i-1].Price)
	}
}
