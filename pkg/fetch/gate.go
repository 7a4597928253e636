package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/corpus-crawler/pkg/config"
)

// ErrGateClosed is returned by Enter when a slot could not be obtained before the
// acquire timeout or the context ended.
var ErrGateClosed = errors.New("politeness gate unavailable")

const (
	defaultPerHost      = 2
	defaultEvictionTick = 5 * time.Minute
)

// hostLane is the per-host part of the gate
type hostLane struct {
	slots   *semaphore.Weighted
	waiting int       // callers holding or queued for a slot
	idle    time.Time // last time the lane emptied; zero while never used
}

// Gate is the single point every request to a crawled server passes through. Entering takes a
// crawl-wide slot (max_requests), then a slot on the target host (max_requests_per_host), then
// waits out delay_per_host since the previous request to that host.
type Gate struct {
	global  *semaphore.Weighted
	perHost int64
	timeout time.Duration
	delay   time.Duration
	spacing *RateLimiter

	mu    sync.Mutex
	lanes map[string]*hostLane
	log   *logrus.Entry
}

// NewGate builds a Gate from the crawl limits in cfg.
func NewGate(cfg *config.AppConfig, log *logrus.Entry) *Gate {
	gateLog := log.WithField("component", "gate")
	perHost := int64(cfg.MaxRequestsPerHost)
	if perHost <= 0 {
		perHost = defaultPerHost
		gateLog.Warnf("max_requests_per_host invalid or zero, defaulting to %d", perHost)
	}
	return &Gate{
		global:  semaphore.NewWeighted(int64(max(cfg.MaxRequests, 1))),
		perHost: perHost,
		timeout: cfg.SemaphoreAcquireTimeout,
		delay:   cfg.DelayPerHost,
		spacing: NewRateLimiter(cfg.DelayPerHost, gateLog),
		lanes:   make(map[string]*hostLane),
		log:     gateLog,
	}
}

// Enter blocks until a request to host may be sent. On success the returned leave func must be
// called once the request is finished; it stamps the host's last request time and frees both slots.
func (g *Gate) Enter(ctx context.Context, host string) (leave func(), err error) {
	if err := g.acquire(ctx, g.global); err != nil {
		return nil, fmt.Errorf("%w: crawl-wide slot: %w", ErrGateClosed, err)
	}

	lane := g.join(host)
	if err := g.acquire(ctx, lane.slots); err != nil {
		g.part(host, lane)
		g.global.Release(1)
		return nil, fmt.Errorf("%w: slot for %s: %w", ErrGateClosed, host, err)
	}

	g.spacing.ApplyDelay(ctx, host, g.delay)
	if ctx.Err() != nil {
		g.part(host, lane)
		lane.slots.Release(1)
		g.global.Release(1)
		return nil, fmt.Errorf("%w: waiting on %s: %w", ErrGateClosed, host, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.spacing.UpdateLastRequestTime(host)
			g.part(host, lane)
			lane.slots.Release(1)
			g.global.Release(1)
		})
	}, nil
}

// acquire takes one slot from sem, giving up after the gate's timeout when it is positive.
func (g *Gate) acquire(ctx context.Context, sem *semaphore.Weighted) error {
	if g.timeout <= 0 {
		return sem.Acquire(ctx, 1)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return sem.Acquire(ctx, 1)
}

func (g *Gate) join(host string) *hostLane {
	g.mu.Lock()
	defer g.mu.Unlock()
	lane, ok := g.lanes[host]
	if !ok {
		lane = &hostLane{slots: semaphore.NewWeighted(g.perHost)}
		g.lanes[host] = lane
		g.log.WithFields(logrus.Fields{"host": host, "limit": g.perHost}).Debug("Opened host lane")
	}
	lane.waiting++
	return lane
}

func (g *Gate) part(host string, lane *hostLane) {
	g.mu.Lock()
	defer g.mu.Unlock()
	lane.waiting--
	if lane.waiting == 0 {
		lane.idle = time.Now()
	}
	if g.lanes[host] != lane {
		g.log.Errorf("Host lane for %s replaced while in use", host)
	}
}

// RunEviction drops lanes idle for at least interval, every interval, until ctx is done.
func (g *Gate) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultEvictionTick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.evictIdle(interval)
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gate) evictIdle(maxIdle time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	evicted := 0
	for host, lane := range g.lanes {
		if lane.waiting == 0 && !lane.idle.IsZero() && time.Since(lane.idle) >= maxIdle {
			delete(g.lanes, host)
			evicted++
		}
	}
	if evicted > 0 {
		g.log.Debugf("Evicted %d idle host lanes, %d remain", evicted, len(g.lanes))
	}
	return evicted
}

// Hosts returns the number of hosts with an open lane.
func (g *Gate) Hosts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lanes)
}
