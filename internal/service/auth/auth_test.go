package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/gamecafe/internal/domain"
	"github.com/kirinyoku/gamecafe/internal/repository/memory"
)

type memOTPs struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *memOTPs) Save(_ context.Context, phone, hash string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[phone] = hash
	return nil
}

func (m *memOTPs) Take(_ context.Context, phone string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.codes[phone]
	delete(m.codes, phone)
	return h, ok, nil
}

type countingLimiter struct {
	limit int
	hits  map[string]int
}

func (l *countingLimiter) Allow(_ context.Context, key string) (bool, int64, time.Duration, error) {
	l.hits[key]++
	return l.hits[key] <= l.limit, int64(l.hits[key]), time.Minute, nil
}

type capturingSender struct {
	last string
}

func (s *capturingSender) SendOTP(_ context.Context, _, code string) error {
	s.last = code
	return nil
}

func newService(t *testing.T, echo bool) (*Service, *capturingSender) {
	t.Helper()

	sender := &capturingSender{}
	svc := New(
		memory.New(),
		&memOTPs{codes: map[string]string{}},
		&countingLimiter{limit: 3, hits: map[string]int{}},
		sender,
		NewTokens("test-secret", time.Hour, nil),
		nil,
		Config{OTPLength: 6, Echo: echo},
	)
	return svc, sender
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "+91 98765-43210", want: "+919876543210"},
		{in: "9876543210", want: "9876543210"},
		{in: "12345", wantErr: true},
		{in: "phone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOTPFlow(t *testing.T) {
	ctx := context.Background()
	svc, sender := newService(t, false)

	res, err := svc.RequestOTP(ctx, "+91 9876543210")
	require.NoError(t, err)
	assert.Empty(t, res.Code)
	assert.Len(t, sender.last, 6)

	sess, err := svc.VerifyOTP(ctx, "+919876543210", sender.last)
	require.NoError(t, err)
	assert.True(t, sess.Created)
	assert.Equal(t, domain.RoleCustomer, sess.User.Role)
	assert.Len(t, sess.User.ReferralCode, 8)

	claims, err := svc.Tokens().Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)

	// single use
	_, err = svc.VerifyOTP(ctx, "+919876543210", sender.last)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// returning user is not recreated
	_, err = svc.RequestOTP(ctx, "+919876543210")
	require.NoError(t, err)
	again, err := svc.VerifyOTP(ctx, "+919876543210", sender.last)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, sess.User.ID, again.User.ID)
}

func TestVerifyOTP_WrongCodeBurnsIt(t *testing.T) {
	ctx := context.Background()
	svc, sender := newService(t, true)

	res, err := svc.RequestOTP(ctx, "9876500000")
	require.NoError(t, err)
	assert.Equal(t, sender.last, res.Code)

	wrong := "000000"
	if res.Code == wrong {
		wrong = "111111"
	}
	_, err = svc.VerifyOTP(ctx, "9876500000", wrong)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.VerifyOTP(ctx, "9876500000", res.Code)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRequestOTP_RateLimited(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, false)

	for i := 0; i < 3; i++ {
		_, err := svc.RequestOTP(ctx, "9876511111")
		require.NoError(t, err)
	}

	_, err := svc.RequestOTP(ctx, "9876511111")
	assert.ErrorIs(t, err, domain.ErrRateLimited)

	_, err = svc.RequestOTP(ctx, "9876522222")
	assert.NoError(t, err)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, false)

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{name: "no name", in: RegisterInput{Phone: "9876533333"}, want: domain.ErrValidation},
		{name: "super admin", in: RegisterInput{Phone: "9876533333", Name: "Root", Role: domain.RoleSuperAdmin}, want: domain.ErrValidation},
		{name: "bad role", in: RegisterInput{Phone: "9876533333", Name: "X", Role: "GOD"}, want: domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	sess, err := svc.Register(ctx, RegisterInput{Phone: "9876533333", Name: "Owner", Role: domain.RoleCafeOwner})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCafeOwner, sess.User.Role)

	_, err = svc.Register(ctx, RegisterInput{Phone: "9876533333", Name: "Other"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	me, err := svc.Me(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Owner", me.Name)

	_, err = svc.Me(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTokens(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tokens := NewTokens("secret", 0, clock)
	id := uuid.New()

	raw, exp, err := tokens.Issue(id, domain.RoleStaff)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*24*time.Hour), exp)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, domain.RoleStaff, claims.Role)

	_, err = NewTokens("other", 0, clock).Parse(raw)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	late := NewTokens("secret", 0, func() time.Time { return now.Add(31 * 24 * time.Hour) })
	_, err = late.Parse(raw)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           id,
		Role:             domain.RoleSuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Parse(unsigned)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = tokens.Issue(uuid.Nil, domain.RoleCustomer)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
