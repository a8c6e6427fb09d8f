package cafe

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository/memory"
)

func TestCafes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := New(store)

	owner := domain.User{ID: uuid.New(), Phone: "+918", Name: "Owner", Role: domain.RoleCafeOwner, ReferralCode: "OWNER008"}
	other := domain.User{ID: uuid.New(), Phone: "+919", Name: "Other", Role: domain.RoleCafeOwner, ReferralCode: "OTHER009"}
	for _, u := range []*domain.User{&owner, &other} {
		require.NoError(t, store.Repos().Users().Create(ctx, u))
	}

	_, err := svc.Create(ctx, owner.ID, Input{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(ctx, uuid.New(), Input{Name: "Ghost"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	c, err := svc.Create(ctx, owner.ID, Input{Name: "Arena", City: "Pune"})
	require.NoError(t, err)
	assert.True(t, c.IsActive)

	cafes, err := svc.ListByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, cafes, 1)

	staff := domain.User{ID: uuid.New(), Role: domain.RoleStaff, CafeID: &c.ID}
	stranger := domain.User{ID: uuid.New(), Role: domain.RoleStaff}
	admin := domain.User{ID: uuid.New(), Role: domain.RoleSuperAdmin}
	customer := domain.User{ID: owner.ID, Role: domain.RoleCustomer}

	tests := []struct {
		name string
		user domain.User
		ok   bool
	}{
		{name: "owner", user: owner, ok: true},
		{name: "other owner", user: other},
		{name: "staff of cafe", user: staff, ok: true},
		{name: "unattached staff", user: stranger},
		{name: "admin", user: admin, ok: true},
		{name: "customer", user: customer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.EnsureOwner(ctx, c.ID, tt.user)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrForbidden)
		})
	}

	ids, err := svc.ManagedIDs(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{c.ID}, ids)

	ids, err = svc.ManagedIDs(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{c.ID}, ids)
}
