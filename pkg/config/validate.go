package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Sriram-PR/corpus-crawler/pkg/models"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Required: StartURLs
	if len(c.StartURLs) == 0 {
		return nil, fmt.Errorf("%w: no start_urls configured", utils.ErrConfigValidation)
	}

	// UserAgent
	if c.UserAgent == "" {
		warnings = append(warnings, "user_agent is empty, defaulting to 'corpus-crawler/1.0'")
		c.UserAgent = "corpus-crawler/1.0"
	}

	// NumWorkers
	if c.NumWorkers <= 0 {
		warnings = append(warnings, "num_workers should be > 0, defaulting to 4")
		c.NumWorkers = 4
	}

	// MaxRequests
	if c.MaxRequests <= 0 {
		warnings = append(warnings, "max_requests should be > 0, defaulting to 10")
		c.MaxRequests = 10
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, "max_requests_per_host should be > 0, defaulting to 2")
		c.MaxRequestsPerHost = 2
	}

	// DelayPerHost
	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, setting to 0")
		c.DelayPerHost = 0
	}

	// MaxDepth / MaxPages
	if c.MaxDepth < 0 {
		warnings = append(warnings, "max_depth cannot be negative, setting to 0 (unlimited)")
		c.MaxDepth = 0
	}
	if c.MaxPages < 0 {
		warnings = append(warnings, "max_pages cannot be negative, setting to 0 (unlimited)")
		c.MaxPages = 0
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes <= 0 {
		c.MaxPageSizeBytes = 10 * 1024 * 1024
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 3
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// SemaphoreAcquireTimeout
	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}

	// GlobalCrawlTimeout
	if c.GlobalCrawlTimeout < 0 {
		warnings = append(warnings, "global_crawl_timeout cannot be negative, disabling timeout")
		c.GlobalCrawlTimeout = 0
	}

	c.validateHTTPClientSettings()

	scopeWarnings, err := c.Scope.Validate()
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, scopeWarnings...)

	analyticsWarnings, err := c.Analytics.Validate()
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, analyticsWarnings...)

	warnings = append(warnings, c.Reports.Validate()...)

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
	if h.MaxRedirects <= 0 {
		h.MaxRedirects = 10
	}
}

// Validate checks ScopeConfig fields and applies defaults.
// Domains and restricted hosts are lower-cased; path prefixes get a leading slash.
func (s *ScopeConfig) Validate() (warnings []string, err error) {
	// Required: AllowedDomains
	domains := make([]string, 0, len(s.AllowedDomains))
	for _, d := range s.AllowedDomains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: scope needs at least one allowed_domains entry", utils.ErrConfigValidation)
	}
	s.AllowedDomains = domains

	if len(s.RestrictedPaths) > 0 {
		normalized := make(map[string]string, len(s.RestrictedPaths))
		for host, prefix := range s.RestrictedPaths {
			if prefix == "" {
				prefix = "/"
			} else if prefix[0] != '/' {
				prefix = "/" + prefix
			}
			normalized[strings.ToLower(strings.TrimSpace(host))] = strings.ToLower(prefix)
		}
		s.RestrictedPaths = normalized
	}

	if s.TrapPattern == "" {
		s.TrapPattern = DefaultTrapPattern
	}
	if _, errRe := regexp.Compile(s.TrapPattern); errRe != nil {
		return nil, fmt.Errorf("%w: invalid trap_pattern '%s': %v", utils.ErrConfigValidation, s.TrapPattern, errRe)
	}

	if s.ExcludedSubstrings == nil {
		s.ExcludedSubstrings = DefaultExcludedSubstrings()
	}

	if len(s.BlacklistedExtensions) == 0 {
		s.BlacklistedExtensions = DefaultBlacklistedExtensions()
	} else {
		for i, ext := range s.BlacklistedExtensions {
			s.BlacklistedExtensions[i] = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		}
	}

	if _, errRe := utils.CompileRegexPatterns(s.DisallowedPathPatterns); errRe != nil {
		return nil, errRe
	}

	return warnings, nil
}

// Validate checks AnalyticsConfig fields and applies defaults.
func (a *AnalyticsConfig) Validate() (warnings []string, err error) {
	if a.StopwordsFile == "" {
		a.StopwordsFile = "stopwords.txt"
	}

	switch strings.ToLower(a.LongestPageMetric) {
	case "":
		a.LongestPageMetric = LongestPageCumulative
	case LongestPageCumulative, LongestPagePerPage:
		a.LongestPageMetric = strings.ToLower(a.LongestPageMetric)
	default:
		warnings = append(warnings, fmt.Sprintf(
			"unknown longest_page_metric '%s', defaulting to '%s'", a.LongestPageMetric, LongestPageCumulative))
		a.LongestPageMetric = LongestPageCumulative
	}

	if a.ErrorStatusMin == 0 && a.ErrorStatusMax == 0 {
		def := models.DefaultStatusClassifier()
		a.ErrorStatusMin, a.ErrorStatusMax = def.ErrorMin, def.ErrorMax
	}
	if errRange := a.StatusClassifier().Validate(); errRange != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrConfigValidation, errRange)
	}

	if a.TopWords <= 0 {
		a.TopWords = 50
	}
	return warnings, nil
}

// Validate applies default report locations.
func (r *ReportsConfig) Validate() (warnings []string) {
	if r.Dir == "" {
		warnings = append(warnings, "reports.dir is empty, defaulting to './reports'")
		r.Dir = "./reports"
	}
	if r.FlushInterval < 0 {
		warnings = append(warnings, "reports.flush_interval cannot be negative, flushing only at crawl end")
		r.FlushInterval = 0
	}
	return warnings
}
