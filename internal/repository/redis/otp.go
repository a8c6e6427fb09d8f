package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	redisx "github.com/kirinyoku/gamecafe/internal/redis"
)

// OTPStore keeps one expiring code hash per phone number.
type OTPStore struct {
	rdb *redis.Client
}

func NewOTPStore(rdb *redis.Client) *OTPStore {
	return &OTPStore{rdb: rdb}
}

// Save replaces any pending code for phone.
func (s *OTPStore) Save(ctx context.Context, phone, hash string, ttl time.Duration) error {
	return s.rdb.Set(ctx, redisx.KeyOTP(phone), hash, ttl).Err()
}

// Take returns the pending hash and deletes it, so a code can be checked once.
func (s *OTPStore) Take(ctx context.Context, phone string) (string, bool, error) {
	v, err := s.rdb.GetDel(ctx, redisx.KeyOTP(phone)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
