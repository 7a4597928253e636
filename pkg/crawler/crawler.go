package crawler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/corpus-crawler/pkg/analytics"
	"github.com/Sriram-PR/corpus-crawler/pkg/config"
	"github.com/Sriram-PR/corpus-crawler/pkg/fetch"
	"github.com/Sriram-PR/corpus-crawler/pkg/models"
	"github.com/Sriram-PR/corpus-crawler/pkg/parse"
	"github.com/Sriram-PR/corpus-crawler/pkg/process"
	"github.com/Sriram-PR/corpus-crawler/pkg/queue"
	"github.com/Sriram-PR/corpus-crawler/pkg/report"
	"github.com/Sriram-PR/corpus-crawler/pkg/scope"
	"github.com/Sriram-PR/corpus-crawler/pkg/storage"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// DefaultProgressInterval is how often Run logs crawl progress
const DefaultProgressInterval = 30 * time.Second

// Downloader fetches a single URL. *fetch.Fetcher implements it.
type Downloader interface {
	Download(ctx context.Context, rawURL, userAgent string) models.FetchResult
}

// RobotsChecker answers robots.txt questions. *fetch.RobotsHandler implements it.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Deps are the collaborators a Crawler drives. Gate is created from the config when nil. Robots, Reports and ErrorLog are optional.
type Deps struct {
	CrawlID     string
	Fetcher     Downloader
	Robots      RobotsChecker
	Gate        *fetch.Gate
	Scope       *scope.Filter
	Store       storage.FrontierStore
	Aggregator  *analytics.Aggregator
	Pages       *process.PageProcessor
	Links       *process.LinkFilter
	Reports     *report.Writer
	ErrorLog    *report.ErrorLog
	Log         *logrus.Entry
}

// Progress is a point-in-time view of a running crawl
type Progress struct {
	CrawlID       string
	PagesFetched  int64
	UniquePages   int
	Queued        int
	FrontierLen   int
	InFlight      int
	RobotsSkipped int64
}

// Crawler drives one crawl: it seeds the frontier, runs the worker pool and flushes reports.
type Crawler struct {
	cfg     *config.AppConfig
	crawlID string
	log     *logrus.Entry

	fetcher     Downloader
	robots      RobotsChecker
	gate        *fetch.Gate
	scope       *scope.Filter
	store       storage.FrontierStore
	agg         *analytics.Aggregator
	pages       *process.PageProcessor
	links       *process.LinkFilter
	reports     *report.Writer
	errLog      *report.ErrorLog

	frontier *queue.Frontier

	fetched          atomic.Int64 // fetch attempts started, bounded by MaxPages
	robotsSkipped    atomic.Int64
	progressInterval time.Duration
	flushMu          sync.Mutex
}

// New assembles a Crawler from already-built collaborators. cfg must have been validated.
func New(cfg *config.AppConfig, deps Deps) (*Crawler, error) {
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("%w: nil config", utils.ErrConfigValidation)
	case deps.Fetcher == nil, deps.Scope == nil, deps.Store == nil,
		deps.Aggregator == nil, deps.Pages == nil, deps.Links == nil:
		return nil, fmt.Errorf("%w: crawler is missing a required collaborator", utils.ErrConfigValidation)
	}

	crawlID := deps.CrawlID
	if crawlID == "" {
		crawlID = uuid.NewString()
	}
	logger := deps.Log
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("crawl_id", crawlID)

	c := &Crawler{
		cfg:              cfg,
		crawlID:          crawlID,
		log:              logger,
		fetcher:          deps.Fetcher,
		robots:           deps.Robots,
		gate:             deps.Gate,
		scope:            deps.Scope,
		store:            deps.Store,
		agg:              deps.Aggregator,
		pages:            deps.Pages,
		links:            deps.Links,
		reports:          deps.Reports,
		errLog:           deps.ErrorLog,
		frontier:         queue.NewFrontier(logger.WithField("component", "frontier")),
		progressInterval: DefaultProgressInterval,
	}
	if c.gate == nil {
		c.gate = fetch.NewGate(cfg, logger)
	}
	return c, nil
}

// NewFromConfig builds every collaborator from cfg and returns a ready Crawler.
// The caller owns the returned Crawler and must Close it.
func NewFromConfig(ctx context.Context, cfg *config.AppConfig, stopwords process.StopwordSet, log *logrus.Entry) (*Crawler, error) {
	crawlID := uuid.NewString()
	clog := log.WithField("crawl_id", crawlID)

	filter, err := scope.NewFilter(cfg.Scope)
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(cfg.HTTPClientSettings, clog)
	fetcher := fetch.NewFetcher(client, cfg, clog)
	gate := fetch.NewGate(cfg, clog)

	var robots RobotsChecker
	if config.GetEffectiveRespectRobots(*cfg) {
		robots = fetch.NewRobotsHandler(fetcher, gate, cfg.UserAgent, clog)
	} else {
		clog.Warn("robots.txt checks disabled by configuration")
	}

	store, err := storage.NewBadgerStore(ctx, clog)
	if err != nil {
		return nil, err
	}

	errLogPath := config.GetEffectiveReportPath(cfg.Reports, cfg.Reports.ErrorLogFile, config.DefaultErrorLogFile)
	errLog, err := report.OpenErrorLog(errLogPath, clog)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	agg := analytics.NewAggregator(analytics.ParsePolicy(cfg.Analytics.LongestPageMetric), errLog, clog)
	pages := process.NewPageProcessor(agg, process.NewHTMLExtractor(), stopwords, cfg.Analytics.StatusClassifier(), clog)

	return New(cfg, Deps{
		CrawlID:     crawlID,
		Fetcher:     fetcher,
		Robots:      robots,
		Gate:        gate,
		Scope:       filter,
		Store:       store,
		Aggregator:  agg,
		Pages:       pages,
		Links:       process.NewLinkFilter(filter, clog),
		Reports:     report.NewWriter(cfg.Reports, crawlID, errLog, clog),
		ErrorLog:    errLog,
		Log:         log,
	})
}

// CrawlID returns the identifier stamped on this run's logs and summary report
func (c *Crawler) CrawlID() string { return c.crawlID }

// Aggregator exposes the shared analytics state, mainly for reporting and tests
func (c *Crawler) Aggregator() *analytics.Aggregator { return c.agg }

// GetProgress returns current crawl counters
func (c *Crawler) GetProgress() Progress {
	return Progress{
		CrawlID:       c.crawlID,
		PagesFetched:  c.fetched.Load(),
		UniquePages:   c.agg.UniqueCount(),
		Queued:        c.store.QueuedCount(),
		FrontierLen:   c.frontier.Len(),
		InFlight:      c.frontier.InFlight(),
		RobotsSkipped: c.robotsSkipped.Load(),
	}
}

// Run crawls until the frontier drains, MaxPages is reached, the global timeout fires or ctx is
// cancelled. Reports are flushed on every exit path. A cancelled or timed-out crawl returns the
// context error; a completed one returns the final flush error, if any.
func (c *Crawler) Run(ctx context.Context) error {
	runLog := c.log.WithField("workers", c.cfg.NumWorkers)
	startTime := time.Now()

	var cancel context.CancelFunc
	if c.cfg.GlobalCrawlTimeout > 0 {
		runLog.Infof("Setting global crawl timeout: %v", c.cfg.GlobalCrawlTimeout)
		ctx, cancel = context.WithTimeout(ctx, c.cfg.GlobalCrawlTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	seeded := c.seed()
	if seeded == 0 {
		c.frontier.Close()
		flushErr := c.Flush()
		return errors.Join(fmt.Errorf("%w: none of the %d start URLs is crawlable", utils.ErrConfigValidation, len(c.cfg.StartURLs)), flushErr)
	}
	runLog.Infof("Seeded frontier with %d start URL(s)", seeded)

	stopDrain := context.AfterFunc(ctx, func() {
		dropped := c.frontier.Drain()
		c.log.Warnf("Crawl context done (%v), dropped %d queued URL(s)", context.Cause(ctx), dropped)
	})
	defer stopDrain()

	bgCtx, stopBackground := context.WithCancel(ctx)
	var bg sync.WaitGroup
	bg.Add(3)
	go func() { defer bg.Done(); c.reportProgress(bgCtx) }()
	go func() { defer bg.Done(); c.flushPeriodically(bgCtx) }()
	go func() { defer bg.Done(); c.gate.RunEviction(bgCtx, 5*time.Minute) }()

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= max(c.cfg.NumWorkers, 1); i++ {
		workerLog := c.log.WithField("worker_id", i)
		g.Go(func() error {
			c.worker(gctx, workerLog)
			return nil
		})
	}
	_ = g.Wait()

	stopBackground()
	bg.Wait()

	crawlErr := ctx.Err()
	flushErr := c.Flush()

	p := c.GetProgress()
	summaryLog := c.log.WithFields(logrus.Fields{
		"duration":       time.Since(startTime).String(),
		"pages_fetched":  p.PagesFetched,
		"unique_pages":   p.UniquePages,
		"queued":         p.Queued,
		"robots_skipped": p.RobotsSkipped,
	})
	if crawlErr != nil {
		summaryLog.Warnf("CRAWL STOPPED: %v", crawlErr)
		return errors.Join(crawlErr, flushErr)
	}
	summaryLog.Info("CRAWL FINISHED")
	return flushErr
}

// seed canonicalizes, scope-checks and queues the configured start URLs at depth 0.
func (c *Crawler) seed() int {
	seeded := 0
	for i, raw := range c.cfg.StartURLs {
		seedLog := c.log.WithFields(logrus.Fields{"index": i, "url": raw})

		canonical, err := parse.CanonicalizeURL(raw)
		if err != nil {
			seedLog.Warnf("Invalid start URL, skipping: %v", err)
			continue
		}
		if err := c.scope.Check(canonical); err != nil {
			seedLog.Warnf("Start URL out of scope, skipping: %v", err)
			continue
		}
		if c.enqueue(canonical, 0, seedLog) {
			seeded++
		}
	}
	return seeded
}

// enqueue records url in the frontier store and pushes it when it has not been queued before.
func (c *Crawler) enqueue(url string, depth int, log *logrus.Entry) bool {
	isNew, err := c.store.MarkQueued(url, depth)
	if err != nil {
		log.WithField("category", utils.CategorizeError(err)).Warnf("Could not record queued URL %s: %v", url, err)
		return false
	}
	if !isNew {
		return false
	}
	return c.frontier.Push(models.WorkItem{URL: url, Depth: depth})
}

// worker pops work items until the frontier closes.
func (c *Crawler) worker(ctx context.Context, workerLog *logrus.Entry) {
	workerLog.Debug("Worker starting")
	defer workerLog.Debug("Worker finished")

	for {
		item, ok := c.frontier.Pop()
		if !ok {
			return
		}
		c.processItem(ctx, item, workerLog)
		c.frontier.Done()
	}
}

// processItem runs the fetch, process and enqueue pipeline for one URL. Nothing escapes it:
// failures are logged and the crawl moves on.
func (c *Crawler) processItem(ctx context.Context, item models.WorkItem, workerLog *logrus.Entry) {
	taskLog := workerLog.WithFields(logrus.Fields{"url": item.URL, "depth": item.Depth})
	startTime := time.Now()

	defer func() {
		if r := recover(); r != nil {
			taskLog.WithFields(logrus.Fields{
				"panic_info":  r,
				"duration":    time.Since(startTime).String(),
				"stack_trace": string(debug.Stack()),
			}).Error("PANIC recovered while processing page")
		}
	}()

	if ctx.Err() != nil {
		return
	}

	if c.robots != nil && !c.robots.Allowed(ctx, item.URL) {
		c.robotsSkipped.Add(1)
		taskLog.WithField("category", utils.CategorizeError(utils.ErrRobotsDisallowed)).Debug("Skipping URL disallowed by robots.txt")
		return
	}

	if n := c.fetched.Add(1); c.cfg.MaxPages > 0 && n > int64(c.cfg.MaxPages) {
		c.fetched.Add(-1)
		if dropped := c.frontier.Drain(); dropped > 0 {
			taskLog.Infof("max_pages (%d) reached, dropped %d queued URL(s)", c.cfg.MaxPages, dropped)
		}
		return
	}

	result, ok := c.fetch(ctx, item.URL, taskLog)
	if !ok {
		return
	}

	hrefs := c.pages.Process(result)
	if len(hrefs) == 0 {
		return
	}

	childDepth := item.Depth + 1
	if c.cfg.MaxDepth > 0 && childDepth > c.cfg.MaxDepth {
		taskLog.Debugf("Max depth %d reached, not following %d link(s)", c.cfg.MaxDepth, len(hrefs))
		return
	}

	added := 0
	for _, link := range c.links.Filter(result.PageURL(), hrefs) {
		if c.agg.IsSeen(link) {
			continue
		}
		if c.enqueue(link, childDepth, taskLog) {
			added++
		}
	}
	taskLog.WithFields(logrus.Fields{
		"status":   result.StatusCode,
		"links":    added,
		"duration": time.Since(startTime).String(),
	}).Debug("Page done")
}

// fetch downloads url while holding the global and per-host permits and honouring the
// per-host delay. ok is false when the fetch never ran.
func (c *Crawler) fetch(ctx context.Context, url string, taskLog *logrus.Entry) (models.FetchResult, bool) {
	leave, err := c.gate.Enter(ctx, parse.Hostname(url))
	if err != nil {
		taskLog.Warnf("Could not pass politeness gate: %v", err)
		return models.FetchResult{}, false
	}
	result := c.fetcher.Download(ctx, url, c.cfg.UserAgent)
	leave()

	if !result.HasStatus && ctx.Err() != nil {
		return result, false
	}
	return result, true
}

// Flush writes the current analytics snapshot to the report files. Safe to call concurrently with a running crawl.
func (c *Crawler) Flush() error {
	if c.reports == nil {
		return nil
	}
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	stats := c.agg.Snapshot()
	top := c.agg.TopWords(c.cfg.Analytics.TopWords)
	if err := c.reports.WriteAll(stats, top); err != nil {
		c.log.WithField("category", utils.CategorizeError(err)).Errorf("Report flush failed: %v", err)
		return err
	}
	c.log.WithField("unique_pages", len(stats.UniquePages)).Debug("Reports flushed")
	return nil
}

// WriteQueuedLog writes every URL ever queued, with its depth, to the configured queued-URL log.
func (c *Crawler) WriteQueuedLog() (string, error) {
	path := config.GetEffectiveReportPath(c.cfg.Reports, c.cfg.Reports.QueuedLogFile, config.DefaultQueuedLogFile)
	return path, c.store.WriteQueuedLog(path)
}

// Close releases the frontier store and the error log.
func (c *Crawler) Close() error {
	var errs []error
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if c.errLog != nil {
		if err := c.errLog.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Crawler) reportProgress(ctx context.Context) {
	ticker := time.NewTicker(c.progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p := c.GetProgress()
			c.log.WithFields(logrus.Fields{
				"pages_fetched":  p.PagesFetched,
				"unique_pages":   p.UniquePages,
				"queued":         p.Queued,
				"frontier_len":   p.FrontierLen,
				"in_flight":      p.InFlight,
				"robots_skipped": p.RobotsSkipped,
			}).Info("Crawl Progress")
		}
	}
}

func (c *Crawler) flushPeriodically(ctx context.Context) {
	interval := c.cfg.Reports.FlushInterval
	if interval <= 0 || c.reports == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Flush()
		}
	}
}
