package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/corpus-crawler/pkg/models"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

// Default report file names, written under ReportsConfig.Dir
const (
	DefaultUniquePagesFile = "unique_pages.txt"
	DefaultWordCountFile   = "word_count.txt"
	DefaultCommonWordsFile = "common_words.txt"
	DefaultSubdomainsFile  = "subdomains.txt"
	DefaultErrorLogFile    = "error_log.txt"
	DefaultSummaryFile     = "summary.md"
	DefaultQueuedLogFile   = "queued_urls.txt"
)

// Longest-page metric names accepted by analytics.longest_page_metric
const (
	LongestPageCumulative = "cumulative"
	LongestPagePerPage    = "per_page"
)

// DefaultTrapPattern matches calendar/event listings and date-stamped paths
const DefaultTrapPattern = `calendar|event|\d{4}-\d{2}-\d{2}`

// DefaultExcludedSubstrings returns the path substrings rejected by default
func DefaultExcludedSubstrings() []string {
	return []string{"download", "attachment"}
}

// DefaultBlacklistedExtensions returns the non-HTML asset extensions rejected by default
func DefaultBlacklistedExtensions() []string {
	return []string{
		"css", "js", "bmp", "gif", "jpg", "jpeg", "ico",
		"png", "tif", "tiff", "mid", "mp2", "mp3", "mp4",
		"wav", "avi", "mov", "mpeg", "ram", "m4v", "mkv", "ogg", "ogv", "pdf",
		"ps", "eps", "tex", "ppt", "pptx", "doc", "docx", "xls", "xlsx", "names",
		"data", "dat", "exe", "bz2", "tar", "msi", "bin", "7z", "psd", "dmg", "iso",
		"epub", "dll", "cnf", "tgz", "sha1",
		"thmx", "mso", "arff", "rtf", "jar", "csv",
		"rm", "smil", "wmv", "swf", "wma", "zip", "rar", "gz",
	}
}

// ScopeConfig holds the crawl-eligibility policy
type ScopeConfig struct {
	AllowedDomains         []string          `yaml:"allowed_domains"`
	RestrictedPaths        map[string]string `yaml:"restricted_paths,omitempty"` // host -> required path prefix
	TrapPattern            string            `yaml:"trap_pattern,omitempty"`
	ExcludedSubstrings     []string          `yaml:"excluded_substrings,omitempty"`
	BlacklistedExtensions  []string          `yaml:"blacklisted_extensions,omitempty"`
	DisallowedPathPatterns []string          `yaml:"disallowed_path_patterns,omitempty"` // Extra regex patterns for paths to exclude
}

// AnalyticsConfig holds settings for corpus analytics
type AnalyticsConfig struct {
	StopwordsFile     string `yaml:"stopwords_file,omitempty"`
	LongestPageMetric string `yaml:"longest_page_metric,omitempty"` // cumulative | per_page
	ErrorStatusMin    int    `yaml:"error_status_min,omitempty"`
	ErrorStatusMax    int    `yaml:"error_status_max,omitempty"`
	TopWords          int    `yaml:"top_words,omitempty"`
}

// ReportsConfig holds locations of the report artifacts
type ReportsConfig struct {
	Dir             string        `yaml:"dir,omitempty"`
	UniquePagesFile string        `yaml:"unique_pages_file,omitempty"`
	WordCountFile   string        `yaml:"word_count_file,omitempty"`
	CommonWordsFile string        `yaml:"common_words_file,omitempty"`
	SubdomainsFile  string        `yaml:"subdomains_file,omitempty"`
	ErrorLogFile    string        `yaml:"error_log_file,omitempty"`
	SummaryFile     string        `yaml:"summary_file,omitempty"`
	QueuedLogFile   string        `yaml:"queued_log_file,omitempty"`
	EnableSummary   *bool         `yaml:"enable_summary,omitempty"`
	FlushInterval   time.Duration `yaml:"flush_interval,omitempty"` // 0 = only flush at crawl end
}

// AppConfig holds the global application configuration
type AppConfig struct {
	StartURLs               []string         `yaml:"start_urls"`
	UserAgent               string           `yaml:"user_agent"`
	NumWorkers              int              `yaml:"num_workers"`
	MaxRequests             int              `yaml:"max_requests"`
	MaxRequestsPerHost      int              `yaml:"max_requests_per_host"`
	DelayPerHost            time.Duration    `yaml:"delay_per_host"`
	MaxDepth                int              `yaml:"max_depth"`           // 0 = unlimited
	MaxPages                int              `yaml:"max_pages,omitempty"` // 0 = unlimited
	MaxPageSizeBytes        int64            `yaml:"max_page_size_bytes,omitempty"`
	MaxRetries              int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay       time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration    `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout time.Duration    `yaml:"semaphore_acquire_timeout,omitempty"`
	GlobalCrawlTimeout      time.Duration    `yaml:"global_crawl_timeout,omitempty"`
	RespectRobots           *bool            `yaml:"respect_robots,omitempty"`
	HTTPClientSettings      HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Scope                   ScopeConfig      `yaml:"scope"`
	Analytics               AnalyticsConfig  `yaml:"analytics,omitempty"`
	Reports                 ReportsConfig    `yaml:"reports,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
	MaxRedirects          int           `yaml:"max_redirects,omitempty"`
}

// Load reads and parses a YAML configuration file. Validation is left to the caller.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading '%s': %w", utils.ErrConfigLoad, path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing '%s': %w", utils.ErrConfigLoad, path, err)
	}
	return &cfg, nil
}

// GetEffectiveRespectRobots defaults to true when unset
func GetEffectiveRespectRobots(appCfg AppConfig) bool {
	if appCfg.RespectRobots != nil {
		return *appCfg.RespectRobots
	}
	return true
}

// GetEffectiveEnableSummary defaults to true when unset
func GetEffectiveEnableSummary(r ReportsConfig) bool {
	if r.EnableSummary != nil {
		return *r.EnableSummary
	}
	return true
}

// GetEffectiveReportPath joins a report file name onto the reports dir.
// An empty name falls back to fallback.
func GetEffectiveReportPath(r ReportsConfig, name, fallback string) string {
	if name == "" {
		name = fallback
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(r.Dir, name)
}

// StatusClassifier builds the error-log classifier from the analytics settings
func (a AnalyticsConfig) StatusClassifier() models.StatusClassifier {
	return models.StatusClassifier{ErrorMin: a.ErrorStatusMin, ErrorMax: a.ErrorStatusMax}
}
