package tier

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"euno-analytics-be/internal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newEngine(t *testing.T, store UsageStore, limit int) (*Engine, *clock) {
	t.Helper()
	table := DefaultPolicies()
	p := table[Starter]
	p.MaxQueriesPerWindow = limit
	table[Starter] = p

	c := &clock{now: t0}
	return NewEngine(table, store, logger.NewNopLogger(), WithClock(c.Now)), c
}

func TestEngine_DenialDoesNotConsumeQuota(t *testing.T) {
	store := NewMemoryUsageStore()
	e, c := newEngine(t, store, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := e.Admit(ctx, "u1", Starter, StatusActive, ActionQuery)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		c.Advance(time.Second)
	}

	for i := 0; i < 3; i++ {
		d, err := e.Admit(ctx, "u1", Starter, StatusActive, ActionQuery)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonRateLimited, d.Reason)
	}

	usage, err := store.Peek(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, usage.QueryCountInWindow)

	// other users are unaffected
	d, err := e.Admit(ctx, "u2", Starter, StatusActive, ActionQuery)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEngine_FeatureActionsDoNotTouchUsage(t *testing.T) {
	store := NewMemoryUsageStore()
	e, _ := newEngine(t, store, 5)
	ctx := context.Background()

	d, err := e.Admit(ctx, "u1", Starter, StatusActive, ActionChart)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonFeatureNotInTier, d.Reason)

	d, err = e.Admit(ctx, "u1", Professional, StatusActive, ActionChart)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	usage, _ := store.Peek(ctx, "u1")
	assert.Zero(t, usage.QueryCountInWindow)
}

func TestEngine_LapsedSubscriptionUsesStarter(t *testing.T) {
	e, _ := newEngine(t, NewMemoryUsageStore(), 5)
	d, err := e.Admit(context.Background(), "u1", Professional, StatusCanceled, ActionChart)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func runConcurrentAdmits(t *testing.T, e *Engine, n int) int {
	t.Helper()
	var allowed int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := e.Admit(context.Background(), "busy", Starter, StatusActive, ActionQuery)
			if assert.NoError(t, err) && d.Allowed {
				atomic.AddInt32(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	return int(allowed)
}

func TestEngine_ConcurrentAdmitsMemory(t *testing.T) {
	e, _ := newEngine(t, NewMemoryUsageStore(), 20)
	assert.Equal(t, 20, runConcurrentAdmits(t, e, 100))
}

func newRedisStore(t *testing.T) (*RedisUsageStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisUsageStore(rdb), mr
}

func TestEngine_ConcurrentAdmitsRedis(t *testing.T) {
	store, _ := newRedisStore(t)
	e, _ := newEngine(t, store, 5)
	assert.Equal(t, 5, runConcurrentAdmits(t, e, 20))

	usage, err := store.Peek(context.Background(), "busy")
	require.NoError(t, err)
	assert.Equal(t, 5, usage.QueryCountInWindow)
}

func TestRedisUsageStore_PersistsWithTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	state, err := store.Apply(ctx, "u1", func(cur UsageState) (UsageState, bool) {
		cur.QueryCountInWindow++
		cur.WindowStartedAt = t0
		return cur, true
	})
	require.NoError(t, err)
	assert.Equal(t, 1, state.QueryCountInWindow)

	assert.True(t, mr.Exists("euno:usage:u1"))
	assert.Greater(t, mr.TTL("euno:usage:u1"), time.Duration(0))

	peeked, err := store.Peek(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, peeked.QueryCountInWindow)
	assert.True(t, peeked.WindowStartedAt.Equal(t0))

	// rejected mutations leave the key alone
	_, err = store.Apply(ctx, "u1", func(cur UsageState) (UsageState, bool) {
		cur.QueryCountInWindow = 99
		return cur, false
	})
	require.NoError(t, err)
	peeked, _ = store.Peek(ctx, "u1")
	assert.Equal(t, 1, peeked.QueryCountInWindow)
}

func TestEngine_Quota(t *testing.T) {
	e, c := newEngine(t, NewMemoryUsageStore(), 5)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := e.Admit(ctx, "u1", Starter, StatusActive, ActionQuery)
		require.NoError(t, err)
	}
	c.Advance(time.Minute)

	q, err := e.Quota(ctx, "u1", Starter, StatusActive)
	require.NoError(t, err)
	assert.Equal(t, Starter, q.Tier)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, 2, q.Used)
	assert.Equal(t, 3, q.Remaining)
	assert.Equal(t, t0.Add(time.Hour), q.ResetsAt)
}

func TestEngine_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("fixed window", func(t *testing.T) {
		store := NewMemoryUsageStore()
		e, c := newEngine(t, store, 5)

		first, err := e.Admit(ctx, "u1", Starter, StatusActive, ActionQuery)
		require.NoError(t, err)
		c.Advance(time.Second)
		second, err := e.Admit(ctx, "u1", Starter, StatusActive, ActionQuery)
		require.NoError(t, err)
		assert.Equal(t, t0.Add(time.Second), second.AdmittedAt)

		require.NoError(t, e.Refund(ctx, "u1", Starter, StatusActive, second.AdmittedAt))
		usage, err := store.Peek(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, usage.QueryCountInWindow)
		assert.Equal(t, first.AdmittedAt, usage.WindowStartedAt)

		// a query from a closed window is not given back to the new one
		c.Advance(time.Hour)
		_, err = e.Admit(ctx, "u1", Starter, StatusActive, ActionQuery)
		require.NoError(t, err)
		require.NoError(t, e.Refund(ctx, "u1", Starter, StatusActive, first.AdmittedAt))
		usage, err = store.Peek(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, usage.QueryCountInWindow)
	})

	t.Run("spam guard on redis", func(t *testing.T) {
		store, _ := newRedisStore(t)
		e, c := newEngine(t, store, 5)

		var last Decision
		for i := 0; i < 3; i++ {
			d, err := e.Admit(ctx, "u1", Enterprise, StatusActive, ActionQuery)
			require.NoError(t, err)
			require.True(t, d.Allowed)
			last = d
			c.Advance(time.Second)
		}

		require.NoError(t, e.Refund(ctx, "u1", Enterprise, StatusActive, last.AdmittedAt))
		usage, err := store.Peek(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, usage.RecentRequests, 2)
		assert.True(t, usage.RecentRequests[1].Equal(t0.Add(time.Second)))
	})
}

func TestLoadPolicies(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		table, err := LoadPolicies("")
		require.NoError(t, err)
		assert.Equal(t, DefaultPolicies(), table)
	})

	t.Run("overlays only given fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tiers.yaml")
		yml := "professional:\n  max_queries_per_window: 150\n  allow_forecast: true\n"
		require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

		table, err := LoadPolicies(path)
		require.NoError(t, err)
		assert.Equal(t, 150, table[Professional].MaxQueriesPerWindow)
		assert.True(t, table[Professional].AllowForecast)
		assert.Equal(t, 180, table[Professional].MaxResponseWords)
		assert.Equal(t, DefaultPolicies()[Starter], table[Starter])
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tiers.yaml")
		require.NoError(t, os.WriteFile(path, []byte("gold:\n  allow_charts: true\n"), 0o600))
		_, err := LoadPolicies(path)
		assert.ErrorContains(t, err, "unknown tier")
	})

	t.Run("rejects capability inversion", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tiers.yaml")
		require.NoError(t, os.WriteFile(path, []byte("starter:\n  allow_forecast: true\n"), 0o600))
		_, err := LoadPolicies(path)
		assert.ErrorContains(t, err, "professional lacks forecast")
	})
}

func TestValidatePolicies(t *testing.T) {
	require.NoError(t, ValidatePolicies(DefaultPolicies()))

	table := DefaultPolicies()
	delete(table, Enterprise)
	assert.ErrorContains(t, ValidatePolicies(table), "enterprise is not defined")

	table = DefaultPolicies()
	p := table[Professional]
	p.MaxQueriesPerWindow = 10
	table[Professional] = p
	assert.ErrorContains(t, ValidatePolicies(table), "fewer queries per hour")
}
