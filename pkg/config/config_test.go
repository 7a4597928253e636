package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sriram-PR/corpus-crawler/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool {
	return &b
}

const sampleYAML = `
start_urls:
  - https://www.ics.uci.edu
  - https://www.stat.uci.edu
user_agent: "IR UW26 crawler"
num_workers: 6
delay_per_host: 500ms
max_depth: 12
respect_robots: false
scope:
  allowed_domains: [ics.uci.edu, cs.uci.edu, informatics.uci.edu, stat.uci.edu]
  restricted_paths:
    today.uci.edu: /department/information_computer_sciences
  disallowed_path_patterns:
    - "/~eppstein/pix/"
analytics:
  stopwords_file: ./stopwords.txt
  longest_page_metric: per_page
  error_status_min: 500
  error_status_max: 606
reports:
  dir: ./out
  flush_interval: 2m
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, cfg.StartURLs, 2)
	assert.Equal(t, "IR UW26 crawler", cfg.UserAgent)
	assert.Equal(t, 6, cfg.NumWorkers)
	assert.Equal(t, 500*time.Millisecond, cfg.DelayPerHost)
	assert.Equal(t, 12, cfg.MaxDepth)
	require.NotNil(t, cfg.RespectRobots)
	assert.False(t, *cfg.RespectRobots)
	assert.Equal(t, []string{"ics.uci.edu", "cs.uci.edu", "informatics.uci.edu", "stat.uci.edu"}, cfg.Scope.AllowedDomains)
	assert.Equal(t, "/department/information_computer_sciences", cfg.Scope.RestrictedPaths["today.uci.edu"])
	assert.Equal(t, LongestPagePerPage, cfg.Analytics.LongestPageMetric)
	assert.Equal(t, 500, cfg.Analytics.ErrorStatusMin)
	assert.Equal(t, 2*time.Minute, cfg.Reports.FlushInterval)

	_, err = cfg.Validate()
	require.NoError(t, err)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConfigLoad))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("start_urls: [unterminated"), 0644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConfigLoad))
}

func TestGetEffectiveRespectRobots(t *testing.T) {
	assert.True(t, GetEffectiveRespectRobots(AppConfig{}))
	assert.True(t, GetEffectiveRespectRobots(AppConfig{RespectRobots: boolPtr(true)}))
	assert.False(t, GetEffectiveRespectRobots(AppConfig{RespectRobots: boolPtr(false)}))
}

func TestGetEffectiveEnableSummary(t *testing.T) {
	assert.True(t, GetEffectiveEnableSummary(ReportsConfig{}))
	assert.False(t, GetEffectiveEnableSummary(ReportsConfig{EnableSummary: boolPtr(false)}))
}

func TestGetEffectiveReportPath(t *testing.T) {
	tests := []struct {
		name     string
		reports  ReportsConfig
		file     string
		fallback string
		expected string
	}{
		{
			name:     "configured name joins dir",
			reports:  ReportsConfig{Dir: "out"},
			file:     "pages.txt",
			fallback: DefaultUniquePagesFile,
			expected: filepath.Join("out", "pages.txt"),
		},
		{
			name:     "empty name uses fallback",
			reports:  ReportsConfig{Dir: "out"},
			file:     "",
			fallback: DefaultSubdomainsFile,
			expected: filepath.Join("out", "subdomains.txt"),
		},
		{
			name:     "absolute name ignores dir",
			reports:  ReportsConfig{Dir: "out"},
			file:     "/var/log/errors.txt",
			fallback: DefaultErrorLogFile,
			expected: "/var/log/errors.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetEffectiveReportPath(tt.reports, tt.file, tt.fallback))
		})
	}
}
