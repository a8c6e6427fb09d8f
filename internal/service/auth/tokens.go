package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kirinyoku/gamecafe/internal/domain"
)

// Claims is the bearer token payload.
type Claims struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration, now func() time.Time) *Tokens {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: now}
}

// Issue signs a token for the user that expires after the configured TTL.
func (t *Tokens) Issue(userID uuid.UUID, role domain.Role) (string, time.Time, error) {
	const op = "service.auth.Tokens.Issue"

	if userID == uuid.Nil {
		return "", time.Time{}, fmt.Errorf("%s:%w", op, domain.ValidationError{Field: "user_id", Reason: "required"})
	}

	now := t.now().UTC()
	exp := now.Add(t.ttl)

	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s:%w", op, err)
	}

	return signed, exp, nil
}

// Parse verifies the signature and expiry. Tokens signed with anything but HMAC are rejected.
func (t *Tokens) Parse(raw string) (Claims, error) {
	const op = "service.auth.Tokens.Parse"

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return Claims{}, fmt.Errorf("%s:%w: %w", op, domain.ErrUnauthorized, err)
	}

	if !token.Valid || claims.UserID == uuid.Nil {
		return Claims{}, fmt.Errorf("%s:%w: invalid claims", op, domain.ErrUnauthorized)
	}

	return claims, nil
}
