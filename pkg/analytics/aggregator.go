package analytics

import (
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// LongestPagePolicy selects the metric compared when updating the longest-page record.
type LongestPagePolicy int

const (
	// PolicyCumulative compares the corpus-wide running word total after merging the page.
	// The latest page to push the total past the stored maximum wins.
	PolicyCumulative LongestPagePolicy = iota
	// PolicyPerPage compares the page's own word count.
	PolicyPerPage
)

// String implements fmt.Stringer for logging
func (p LongestPagePolicy) String() string {
	if p == PolicyPerPage {
		return "per_page"
	}
	return "cumulative"
}

// ParsePolicy maps a config value onto a policy. Unknown values fall back to PolicyCumulative.
func ParsePolicy(s string) LongestPagePolicy {
	if strings.EqualFold(s, "per_page") {
		return PolicyPerPage
	}
	return PolicyCumulative
}

// ErrorRecorder receives fetch failures in the reportable status class.
type ErrorRecorder interface {
	RecordError(url string, status int, message string) error
}

// LongestPage is the current longest-page record.
type LongestPage struct {
	URL       string
	WordCount int
}

// Aggregator holds crawl-wide analytics. All mutating operations run under one mutex so that
// the seen-set, word table, longest page and subdomain sets always change together.
type Aggregator struct {
	mu             sync.Mutex
	uniquePages    map[string]struct{}
	recorded       map[string]struct{}
	wordFrequency  map[string]int
	totalWords     int
	longestPage    LongestPage
	subdomainPages map[string]map[string]struct{}

	policy LongestPagePolicy
	errs   ErrorRecorder
	log    *logrus.Entry
}

// NewAggregator creates an empty aggregator. errs may be nil, in which case errors are only logged.
func NewAggregator(policy LongestPagePolicy, errs ErrorRecorder, log *logrus.Entry) *Aggregator {
	return &Aggregator{
		uniquePages:    make(map[string]struct{}),
		recorded:       make(map[string]struct{}),
		wordFrequency:  make(map[string]int),
		subdomainPages: make(map[string]map[string]struct{}),
		policy:         policy,
		errs:           errs,
		log:            log.WithField("component", "analytics"),
	}
}

// MarkSeen atomically inserts canonical into the unique-page set.
// It returns true only for the first caller for a given URL.
func (a *Aggregator) MarkSeen(canonical string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.uniquePages[canonical]; exists {
		return false
	}
	a.uniquePages[canonical] = struct{}{}
	return true
}

// IsSeen reports whether canonical has been marked seen.
func (a *Aggregator) IsSeen(canonical string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, exists := a.uniquePages[canonical]
	return exists
}

// RecordPage merges a processed page into the analytics. A second call for the same URL is a no-op.
func (a *Aggregator) RecordPage(canonical, host string, counts map[string]int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, done := a.recorded[canonical]; done {
		a.log.WithField("url", canonical).Debug("Page already recorded, skipping")
		return
	}
	a.recorded[canonical] = struct{}{}
	a.uniquePages[canonical] = struct{}{}

	pageWords := 0
	for word, n := range counts {
		if n <= 0 {
			continue
		}
		a.wordFrequency[word] += n
		pageWords += n
	}
	a.totalWords += pageWords

	metric := a.totalWords
	if a.policy == PolicyPerPage {
		metric = pageWords
	}
	if metric > a.longestPage.WordCount {
		a.longestPage = LongestPage{URL: canonical, WordCount: metric}
	}

	host = strings.ToLower(host)
	pages, ok := a.subdomainPages[host]
	if !ok {
		pages = make(map[string]struct{})
		a.subdomainPages[host] = pages
	}
	pages[canonical] = struct{}{}
}

// RecordError forwards a reportable fetch failure to the error recorder.
// Recorder failures are logged and swallowed.
func (a *Aggregator) RecordError(url string, status int, message string) {
	entry := a.log.WithFields(logrus.Fields{"url": url, "status": status})
	if a.errs == nil {
		entry.Warnf("Fetch failure: %s", message)
		return
	}
	if err := a.errs.RecordError(url, status, message); err != nil {
		entry.Errorf("Failed to record fetch error: %v", err)
	}
}

// UniqueCount returns the number of unique pages seen so far.
func (a *Aggregator) UniqueCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.uniquePages)
}

// WordCount pairs a word with its corpus-wide frequency.
type WordCount struct {
	Word  string
	Count int
}

// SubdomainCount pairs a host with its number of unique pages.
type SubdomainCount struct {
	Host  string
	Pages int
}

// Stats is a point-in-time copy of the analytics, safe to use outside the lock.
type Stats struct {
	UniquePages []string // Sorted
	LongestPage LongestPage
	Subdomains  []SubdomainCount // Sorted by host
	TotalWords  int
	Policy      LongestPagePolicy
}

// Snapshot returns a deep copy of the current analytics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.Lock()
	pages := make([]string, 0, len(a.uniquePages))
	for u := range a.uniquePages {
		pages = append(pages, u)
	}
	subs := make([]SubdomainCount, 0, len(a.subdomainPages))
	for host, set := range a.subdomainPages {
		subs = append(subs, SubdomainCount{Host: host, Pages: len(set)})
	}
	stats := Stats{
		LongestPage: a.longestPage,
		TotalWords:  a.totalWords,
		Policy:      a.policy,
	}
	a.mu.Unlock()

	sort.Strings(pages)
	sort.Slice(subs, func(i, j int) bool { return subs[i].Host < subs[j].Host })
	stats.UniquePages = pages
	stats.Subdomains = subs
	return stats
}

// TopWords returns up to n words ordered by count descending, ties broken alphabetically.
func (a *Aggregator) TopWords(n int) []WordCount {
	a.mu.Lock()
	words := make([]WordCount, 0, len(a.wordFrequency))
	for w, c := range a.wordFrequency {
		words = append(words, WordCount{Word: w, Count: c})
	}
	a.mu.Unlock()

	sort.Slice(words, func(i, j int) bool {
		if words[i].Count != words[j].Count {
			return words[i].Count > words[j].Count
		}
		return words[i].Word < words[j].Word
	})
	if n >= 0 && len(words) > n {
		words = words[:n]
	}
	return words
}
