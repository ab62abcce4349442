package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Z is a member/score pair in a time-ordered set.
type Z struct {
	Member string
	Score  float64
}

// Store is the primitive contract every service in this module depends on:
// get/set with TTL, atomic counters, prefix scanning, plain sets and
// time-ordered sets. Implementations must make Incr and Expire atomic at the
// store so callers never need a local read-modify-write.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// TTL reports the remaining lifetime of key. ok is false when the key
	// does not exist; a zero duration with ok true means no expiry is set.
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool, err error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, cursor uint64, match string, count int64) (keys []string, next uint64, err error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	ZAdd(ctx context.Context, key string, members ...Z) error
	ZCount(ctx context.Context, key string, min, max float64) (int64, error)
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) (int64, error)
}

// GetJSON is the single typed deserialization boundary over Store: a missing
// key yields (nil, nil), a present key is decoded exactly once. Callers never
// re-parse raw values.
func GetJSON[T any](ctx context.Context, s Store, key string) (*T, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("failed to decode value at %s: %w", key, err)
	}
	return &v, nil
}

func SetJSON[T any](ctx context.Context, s Store, key string, v *T, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw), ttl)
}

// SetJSONNX writes the encoded value only if the key does not already exist.
func SetJSONNX[T any](ctx context.Context, s Store, key string, v *T, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to encode value for %s: %w", key, err)
	}
	return s.SetNX(ctx, key, string(raw), ttl)
}
