package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockoutPrefix = "academy:lockout:"

type LockoutState struct {
	FailedCount int
	LockedUntil *time.Time
}

func (s LockoutState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// LockoutStore counts failed logins per key.
type LockoutStore interface {
	Get(ctx context.Context, key string) (LockoutState, error)
	RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (LockoutState, error)
	Clear(ctx context.Context, key string) error
}

type RedisLockoutStore struct {
	client *redis.Client
}

func NewRedisLockoutStore(client *redis.Client) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func (s *RedisLockoutStore) Get(ctx context.Context, key string) (LockoutState, error) {
	data, err := s.client.HGetAll(ctx, lockoutPrefix+key).Result()
	if err != nil {
		return LockoutState{}, err
	}
	return parseLockout(data), nil
}

func parseLockout(data map[string]string) LockoutState {
	state := LockoutState{}
	if raw, ok := data["failed_count"]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			state.FailedCount = n
		}
	}
	if raw, ok := data["locked_until"]; ok && raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			t := time.Unix(unix, 0).UTC()
			state.LockedUntil = &t
		}
	}
	return state
}

func (s *RedisLockoutStore) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (LockoutState, error) {
	redisKey := lockoutPrefix + key

	count, err := s.client.HIncrBy(ctx, redisKey, "failed_count", 1).Result()
	if err != nil {
		return LockoutState{}, err
	}

	state := LockoutState{FailedCount: int(count)}
	if int(count) >= threshold {
		lockedUntil := now.Add(window).UTC()
		_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, redisKey, "locked_until", lockedUntil.Unix())
			p.Expire(ctx, redisKey, window)
			return nil
		})
		if err != nil {
			return LockoutState{}, err
		}
		state.LockedUntil = &lockedUntil
		return state, nil
	}

	_ = s.client.Expire(ctx, redisKey, 24*time.Hour).Err()
	return state, nil
}

func (s *RedisLockoutStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, lockoutPrefix+key).Err()
}

type MemoryLockoutStore struct {
	mu      sync.Mutex
	entries map[string]LockoutState
}

func NewMemoryLockoutStore() *MemoryLockoutStore {
	return &MemoryLockoutStore{entries: map[string]LockoutState{}}
}

func (s *MemoryLockoutStore) Get(_ context.Context, key string) (LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key], nil
}

func (s *MemoryLockoutStore) RecordFailure(_ context.Context, key string, now time.Time, threshold int, window time.Duration) (LockoutState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.entries[key]
	// An expired lock starts a fresh count, matching the Redis key TTL.
	if state.LockedUntil != nil && !now.Before(*state.LockedUntil) {
		state = LockoutState{}
	}
	state.FailedCount++
	if state.FailedCount >= threshold {
		until := now.Add(window).UTC()
		state.LockedUntil = &until
	}
	s.entries[key] = state
	return state, nil
}

func (s *MemoryLockoutStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
