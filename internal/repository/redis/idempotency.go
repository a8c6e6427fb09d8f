package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type idemState string

const (
	idemPending idemState = "pending"
	idemDone    idemState = "done"
)

type idemRecord struct {
	State   idemState       `json:"state"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      int64           `json:"at"`
}

// IdempotencyStore remembers the response to a client-keyed request. A key is pending
// while the first attempt runs and done once its response is saved.
type IdempotencyStore struct {
	rdb *redis.Client
	// ttl is how long a saved response is replayed.
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// AcquireLock marks key pending. It reports false when another attempt holds it or has
// already finished.
func (s *IdempotencyStore) AcquireLock(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	b, _ := json.Marshal(idemRecord{State: idemPending, At: time.Now().Unix()})
	return s.rdb.SetNX(ctx, key, b, lockTTL).Result()
}

// SaveResult stores the response so later attempts with the same key replay it.
func (s *IdempotencyStore) SaveResult(ctx context.Context, key string, jsonPayload string) error {
	if !json.Valid([]byte(jsonPayload)) {
		return errors.New("idempotency: payload is not JSON")
	}

	b, err := json.Marshal(idemRecord{State: idemDone, Payload: json.RawMessage(jsonPayload), At: time.Now().Unix()})
	if err != nil {
		return err
	}

	return s.rdb.Set(ctx, key, b, s.ttl).Err()
}

// GetResult returns the saved response. A pending key reports false.
func (s *IdempotencyStore) GetResult(ctx context.Context, key string) (string, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var rec idemRecord
	if err := json.Unmarshal(b, &rec); err != nil || rec.State != idemDone {
		return "", false, nil
	}

	return string(rec.Payload), true, nil
}

// Release frees a pending key after a failed attempt. A saved response is kept.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	var rec idemRecord
	if json.Unmarshal(b, &rec) == nil && rec.State == idemDone {
		return nil
	}

	return s.rdb.Del(ctx, key).Err()
}
