package tier

import (
	"context"
	"sync"
)

// MutateFunc receives the current usage and returns the next state plus
// whether it should be persisted. It may be invoked more than once when a
// store retries on contention, so it must not have side effects.
type MutateFunc func(current UsageState) (next UsageState, commit bool)

// UsageStore holds per-user usage counters. Apply must be atomic with
// respect to concurrent calls for the same user.
type UsageStore interface {
	Apply(ctx context.Context, userID string, fn MutateFunc) (UsageState, error)
	Peek(ctx context.Context, userID string) (UsageState, error)
}

// MemoryUsageStore keeps counters in process with one lock per user
type MemoryUsageStore struct {
	mu    sync.Mutex
	users map[string]*userUsage
}

type userUsage struct {
	mu    sync.Mutex
	state UsageState
}

var _ UsageStore = (*MemoryUsageStore)(nil)

func NewMemoryUsageStore() *MemoryUsageStore {
	return &MemoryUsageStore{users: make(map[string]*userUsage)}
}

func (s *MemoryUsageStore) entry(userID string) *userUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = &userUsage{}
		s.users[userID] = u
	}
	return u
}

func (s *MemoryUsageStore) Apply(ctx context.Context, userID string, fn MutateFunc) (UsageState, error) {
	if err := ctx.Err(); err != nil {
		return UsageState{}, err
	}
	u := s.entry(userID)
	u.mu.Lock()
	defer u.mu.Unlock()

	next, commit := fn(u.state)
	if !commit {
		return u.state, nil
	}
	u.state = next
	return next, nil
}

func (s *MemoryUsageStore) Peek(ctx context.Context, userID string) (UsageState, error) {
	u := s.entry(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state, nil
}
