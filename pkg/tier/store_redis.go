package tier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	usageKeyPrefix   = "euno:usage:"
	usageKeyTTL      = 48 * time.Hour
	maxWatchAttempts = 10
)

// RedisUsageStore shares counters across API replicas. Each Apply runs an
// optimistic WATCH/MULTI transaction on the user's key and retries when
// another replica wrote the key in between.
type RedisUsageStore struct {
	rdb *redis.Client
}

var _ UsageStore = (*RedisUsageStore)(nil)

func NewRedisUsageStore(rdb *redis.Client) *RedisUsageStore {
	return &RedisUsageStore{rdb: rdb}
}

func usageKey(userID string) string {
	return usageKeyPrefix + userID
}

func (s *RedisUsageStore) Apply(ctx context.Context, userID string, fn MutateFunc) (UsageState, error) {
	key := usageKey(userID)
	var result UsageState

	txf := func(tx *redis.Tx) error {
		current, err := readUsage(ctx, tx, key)
		if err != nil {
			return err
		}

		next, commit := fn(current)
		if !commit {
			result = current
			return nil
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal usage: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, usageKeyTTL)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for attempt := 0; attempt < maxWatchAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return UsageState{}, fmt.Errorf("update usage for %s: %w", userID, err)
	}
	return UsageState{}, fmt.Errorf("update usage for %s: too much contention", userID)
}

func (s *RedisUsageStore) Peek(ctx context.Context, userID string) (UsageState, error) {
	return readUsage(ctx, s.rdb, usageKey(userID))
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readUsage(ctx context.Context, c stringGetter, key string) (UsageState, error) {
	var state UsageState
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("read usage: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return UsageState{}, fmt.Errorf("decode usage: %w", err)
	}
	return state, nil
}
