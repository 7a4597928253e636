package fetch

import (
	"context"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// RobotsHandler fetches, caches and checks robots.txt per host.
// A host whose robots.txt cannot be fetched or parsed is treated as allowing everything.
type RobotsHandler struct {
	fetcher   *Fetcher
	gate      *Gate
	userAgent string

	cache   map[string]*robotstxt.RobotsData // host -> parsed data, nil when unavailable
	cacheMu sync.RWMutex
	group   singleflight.Group
	log     *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler. Each robots.txt fetch passes through gate like a page fetch.
func NewRobotsHandler(fetcher *Fetcher, gate *Gate, userAgent string, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:   fetcher,
		gate:      gate,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log.WithField("component", "robots"),
	}
}

// Allowed reports whether the handler's user agent may fetch rawURL.
func (rh *RobotsHandler) Allowed(ctx context.Context, rawURL string) bool {
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return true
	}
	data := rh.robotsData(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), rh.userAgent)
}

// robotsData returns the cached robots.txt for target's host, fetching it once on a miss.
// Concurrent misses for the same host share one fetch.
func (rh *RobotsHandler) robotsData(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Host

	rh.cacheMu.RLock()
	data, found := rh.cache[host]
	rh.cacheMu.RUnlock()
	if found {
		return data
	}

	v, _, _ := rh.group.Do(host, func() (any, error) {
		rh.cacheMu.RLock()
		cached, ok := rh.cache[host]
		rh.cacheMu.RUnlock()
		if ok {
			return cached, nil
		}

		fetched := rh.fetch(ctx, target)
		if ctx.Err() == nil {
			rh.cacheMu.Lock()
			rh.cache[host] = fetched
			rh.cacheMu.Unlock()
		}
		return fetched, nil
	})
	data, _ = v.(*robotstxt.RobotsData)
	return data
}

func (rh *RobotsHandler) fetch(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	scheme := target.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	robotsURL := (&url.URL{Scheme: scheme, Host: target.Host, Path: "/robots.txt"}).String()
	robotsLog := rh.log.WithField("robots_url", robotsURL)
	robotsLog.Info("Fetching robots.txt...")

	leave, err := rh.gate.Enter(ctx, target.Hostname())
	if err != nil {
		robotsLog.Warnf("Could not pass politeness gate: %v", err)
		return nil
	}
	result := rh.fetcher.Download(ctx, robotsURL, rh.userAgent)
	leave()

	if !result.Succeeded() {
		robotsLog.WithFields(logrus.Fields{"status": result.StatusCode, "error": result.ErrorMessage}).
			Info("robots.txt unavailable, allowing all paths")
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(result.StatusCode, result.Body)
	if err != nil {
		robotsLog.Warnf("Error parsing robots.txt: %v", err)
		return nil
	}
	robotsLog.Info("Successfully fetched and parsed robots.txt")
	return data
}
