package conversation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gates(t *testing.T) map[string]TurnGate {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return map[string]TurnGate{
		"memory": NewMemoryTurnGate(time.Minute),
		"redis":  NewRedisTurnGate(rdb, time.Minute),
	}
}

func TestTurnGate_RejectsSecondTurn(t *testing.T) {
	for name, gate := range gates(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			release, err := gate.Acquire(ctx, "conv-1")
			require.NoError(t, err)

			_, err = gate.Acquire(ctx, "conv-1")
			assert.ErrorIs(t, err, ErrTurnInProgress)

			// other conversations are independent
			releaseOther, err := gate.Acquire(ctx, "conv-2")
			require.NoError(t, err)
			releaseOther()

			release()
			release() // idempotent

			again, err := gate.Acquire(ctx, "conv-1")
			require.NoError(t, err)
			again()
		})
	}
}

func TestTurnGate_OneWinnerUnderContention(t *testing.T) {
	for name, gate := range gates(t) {
		t.Run(name, func(t *testing.T) {
			var winners int32
			var wg sync.WaitGroup
			start := make(chan struct{})
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if _, err := gate.Acquire(context.Background(), "hot"); err == nil {
						atomic.AddInt32(&winners, 1)
					}
				}()
			}
			close(start)
			wg.Wait()
			assert.Equal(t, int32(1), winners)
		})
	}
}

func TestRedisTurnGate_StaleReleaseKeepsNewHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	gate := NewRedisTurnGate(rdb, time.Second)
	ctx := context.Background()

	stale, err := gate.Acquire(ctx, "conv")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := gate.Acquire(ctx, "conv")
	require.NoError(t, err)

	stale()
	_, err = gate.Acquire(ctx, "conv")
	assert.ErrorIs(t, err, ErrTurnInProgress)

	fresh()
	_, err = gate.Acquire(ctx, "conv")
	assert.NoError(t, err)
}
