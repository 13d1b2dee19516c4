package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrTurnInProgress rejects a second concurrent turn on the same conversation
var ErrTurnInProgress = errors.New("a turn is already in progress for this conversation")

// DefaultTurnTTL bounds how long a crashed turn can hold a conversation
const DefaultTurnTTL = 2 * time.Minute

// TurnGate grants at most one in-flight turn per conversation. A second
// Acquire for a held conversation fails with ErrTurnInProgress instead of
// queueing. Conversations never block each other.
type TurnGate interface {
	Acquire(ctx context.Context, conversationID string) (release func(), err error)
}

// MemoryTurnGate holds tokens in a go-cache map with expiry, for single-replica deployments
type MemoryTurnGate struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

var _ TurnGate = (*MemoryTurnGate)(nil)

func NewMemoryTurnGate(ttl time.Duration) *MemoryTurnGate {
	if ttl <= 0 {
		ttl = DefaultTurnTTL
	}
	return &MemoryTurnGate{
		cache: cache.New(ttl, ttl),
		ttl:   ttl,
	}
}

func (g *MemoryTurnGate) Acquire(ctx context.Context, conversationID string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	token := uuid.NewString()

	g.mu.Lock()
	err := g.cache.Add(conversationID, token, g.ttl)
	g.mu.Unlock()
	if err != nil {
		return nil, ErrTurnInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			// the token may have expired and been taken by a newer turn
			if held, ok := g.cache.Get(conversationID); ok && held == token {
				g.cache.Delete(conversationID)
			}
		})
	}, nil
}

const turnKeyPrefix = "euno:turn:"

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTurnGate shares turn tokens across API replicas using SET NX
type RedisTurnGate struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ TurnGate = (*RedisTurnGate)(nil)

func NewRedisTurnGate(rdb *redis.Client, ttl time.Duration) *RedisTurnGate {
	if ttl <= 0 {
		ttl = DefaultTurnTTL
	}
	return &RedisTurnGate{rdb: rdb, ttl: ttl}
}

func (g *RedisTurnGate) Acquire(ctx context.Context, conversationID string) (func(), error) {
	key := turnKeyPrefix + conversationID
	token := uuid.NewString()

	ok, err := g.rdb.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire turn: %w", err)
	}
	if !ok {
		return nil, ErrTurnInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// detached so a cancelled request still frees the conversation
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			releaseScript.Run(ctx, g.rdb, []string{key}, token)
		})
	}, nil
}
