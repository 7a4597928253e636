package fetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/corpus-crawler/pkg/config"
)

func newTestGate(global, perHost int, delay time.Duration) *Gate {
	return NewGate(&config.AppConfig{
		MaxRequests:             global,
		MaxRequestsPerHost:      perHost,
		DelayPerHost:            delay,
		SemaphoreAcquireTimeout: 50 * time.Millisecond,
	}, testLogger())
}

func TestGate_PerHostLimit(t *testing.T) {
	g := newTestGate(10, 2, 0)
	ctx := context.Background()

	leaveA, err := g.Enter(ctx, "a.uci.edu")
	require.NoError(t, err)
	leaveB, err := g.Enter(ctx, "a.uci.edu")
	require.NoError(t, err)

	_, err = g.Enter(ctx, "a.uci.edu")
	require.ErrorIs(t, err, ErrGateClosed, "third request to a full host times out")

	leaveOther, err := g.Enter(ctx, "b.uci.edu")
	require.NoError(t, err, "other hosts are unaffected")
	leaveOther()

	leaveA()
	leaveAgain, err := g.Enter(ctx, "a.uci.edu")
	require.NoError(t, err)

	leaveB()
	leaveAgain()
	assert.Equal(t, 2, g.Hosts())
}

func TestGate_GlobalLimit(t *testing.T) {
	g := newTestGate(1, 5, 0)
	ctx := context.Background()

	leave, err := g.Enter(ctx, "a.uci.edu")
	require.NoError(t, err)

	_, err = g.Enter(ctx, "b.uci.edu")
	require.ErrorIs(t, err, ErrGateClosed)
	assert.ErrorContains(t, err, "crawl-wide")

	leave()
	leave() // second call is a no-op
	leave, err = g.Enter(ctx, "b.uci.edu")
	require.NoError(t, err)
	leave()
}

func TestGate_FailedEnterReleasesGlobalSlot(t *testing.T) {
	g := newTestGate(2, 1, 0)
	ctx := context.Background()

	hold, err := g.Enter(ctx, "busy.uci.edu")
	require.NoError(t, err)
	defer hold()

	for range 3 {
		_, err := g.Enter(ctx, "busy.uci.edu")
		require.ErrorIs(t, err, ErrGateClosed)
	}

	leave, err := g.Enter(ctx, "free.uci.edu")
	require.NoError(t, err, "timed-out host waits must not leak crawl-wide slots")
	leave()
}

func TestGate_SpacesRequestsToSameHost(t *testing.T) {
	g := newTestGate(4, 4, 80*time.Millisecond)
	ctx := context.Background()

	leave, err := g.Enter(ctx, "a.uci.edu")
	require.NoError(t, err)
	leave()

	start := time.Now()
	leave, err = g.Enter(ctx, "a.uci.edu")
	require.NoError(t, err)
	leave()
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)

	start = time.Now()
	leave, err = g.Enter(ctx, "b.uci.edu")
	require.NoError(t, err)
	leave()
	assert.Less(t, time.Since(start), 40*time.Millisecond, "first request to a host never waits")
}

func TestGate_CancelledWhileSpacing(t *testing.T) {
	g := newTestGate(1, 1, 5*time.Second)

	leave, err := g.Enter(context.Background(), "a.uci.edu")
	require.NoError(t, err)
	leave()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = g.Enter(ctx, "a.uci.edu")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// both slots were returned
	leave, err = g.Enter(context.Background(), "b.uci.edu")
	require.NoError(t, err)
	leave()
}

func TestGate_ConcurrentCallersRespectLimit(t *testing.T) {
	g := NewGate(&config.AppConfig{MaxRequests: 8, MaxRequestsPerHost: 3}, testLogger())

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			leave, err := g.Enter(context.Background(), "a.uci.edu")
			if !assert.NoError(t, err) {
				return
			}
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			leave()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestGate_EvictIdle(t *testing.T) {
	g := newTestGate(4, 1, 0)
	ctx := context.Background()

	for _, host := range []string{"a.uci.edu", "b.uci.edu", "c.uci.edu"} {
		leave, err := g.Enter(ctx, host)
		require.NoError(t, err)
		leave()
	}
	busy, err := g.Enter(ctx, "d.uci.edu")
	require.NoError(t, err)

	assert.Zero(t, g.evictIdle(time.Hour), "recently used lanes stay")
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 3, g.evictIdle(time.Millisecond), "busy lane is kept")
	assert.Equal(t, 1, g.Hosts())

	busy()
	leave, err := g.Enter(ctx, "a.uci.edu")
	require.NoError(t, err, "evicted host gets a fresh lane")
	leave()
}

func TestGate_RunEvictionStopsOnCancel(t *testing.T) {
	g := newTestGate(1, 1, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		g.RunEviction(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEviction did not return after cancel")
	}
}

func TestNewGate_DefaultsPerHost(t *testing.T) {
	g := NewGate(&config.AppConfig{}, testLogger())
	assert.Equal(t, int64(defaultPerHost), g.perHost)
}
