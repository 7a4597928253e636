package process

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/corpus-crawler/pkg/analytics"
	"github.com/Sriram-PR/corpus-crawler/pkg/log"
	"github.com/Sriram-PR/corpus-crawler/pkg/models"
)

type recordedError struct {
	url     string
	status  int
	message string
}

type memRecorder struct {
	mu      sync.Mutex
	entries []recordedError
}

func (m *memRecorder) RecordError(url string, status int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, recordedError{url: url, status: status, message: message})
	return nil
}

type stubExtractor struct {
	hrefs       []string
	text        string
	err         error
	panicMsg    string
	mu          sync.Mutex
	contentType string
}

func (s *stubExtractor) Extract(body []byte, contentType string) (Extracted, error) {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	s.mu.Lock()
	s.contentType = contentType
	s.mu.Unlock()
	if s.err != nil {
		return Extracted{}, s.err
	}
	return Extracted{Hrefs: s.hrefs, Text: s.text}, nil
}

func okResult(u string) models.FetchResult {
	return models.FetchResult{RequestedURL: u, FinalURL: u, StatusCode: 200, HasStatus: true, Body: []byte("<html></html>")}
}

func newProcessor(ex Extractor, rec analytics.ErrorRecorder) (*PageProcessor, *analytics.Aggregator) {
	agg := analytics.NewAggregator(analytics.PolicyCumulative, rec, log.Discard())
	return NewPageProcessor(agg, ex, NewStopwordSet("the"), models.DefaultStatusClassifier(), log.Discard()), agg
}

func TestPageProcessor_Success(t *testing.T) {
	ex := &stubExtractor{hrefs: []string{"/b", "#x", "/a"}, text: "The quick fox, the QUICK dog"}
	p, agg := newProcessor(ex, nil)

	hrefs := p.Process(okResult("https://Vision.ICS.uci.edu/a#frag"))

	assert.Equal(t, []string{"/b", "#x", "/a"}, hrefs, "raw hrefs returned unfiltered in order")
	stats := agg.Snapshot()
	assert.Equal(t, []string{"https://vision.ics.uci.edu/a"}, stats.UniquePages)
	assert.Equal(t, []analytics.SubdomainCount{{Host: "vision.ics.uci.edu", Pages: 1}}, stats.Subdomains)
	assert.Equal(t, 4, stats.TotalWords)
	assert.Equal(t, []analytics.WordCount{{Word: "quick", Count: 2}, {Word: "dog", Count: 1}, {Word: "fox", Count: 1}}, agg.TopWords(10))
}

func TestPageProcessor_UsesFinalURL(t *testing.T) {
	ex := &stubExtractor{text: "words here"}
	p, agg := newProcessor(ex, nil)

	r := okResult("http://cs.uci.edu/old")
	r.ContentType = "text/html; charset=windows-1252"
	r.FinalURL = "https://cs.uci.edu/new"
	p.Process(r)

	assert.True(t, agg.IsSeen("https://cs.uci.edu/new"))
	assert.False(t, agg.IsSeen("http://cs.uci.edu/old"))
	assert.Equal(t, "text/html; charset=windows-1252", ex.contentType, "header passed to the extractor")

	// Missing final URL falls back to the requested one
	r2 := okResult("https://cs.uci.edu/requested")
	r2.FinalURL = ""
	p.Process(r2)
	assert.True(t, agg.IsSeen("https://cs.uci.edu/requested"))
}

func TestPageProcessor_FetchFailures(t *testing.T) {
	tests := []struct {
		name       string
		result     models.FetchResult
		wantLogged bool
	}{
		{"NotFound", models.FetchResult{RequestedURL: "https://cs.uci.edu/404", StatusCode: 404, HasStatus: true, ErrorMessage: "404 Not Found"}, false},
		{"ServerError", models.FetchResult{RequestedURL: "https://cs.uci.edu/500", StatusCode: 500, HasStatus: true, ErrorMessage: "500"}, false},
		{"EmptyBody", models.FetchResult{RequestedURL: "https://cs.uci.edu/empty", FinalURL: "https://cs.uci.edu/empty", StatusCode: 200, HasStatus: true}, false},
		{"NoStatus", models.FetchResult{RequestedURL: "https://cs.uci.edu/none", ErrorMessage: "cancelled"}, false},
		{"DNSFailure", models.FetchResult{RequestedURL: "https://gone.uci.edu/", StatusCode: models.FetchFailureDNS, HasStatus: true, ErrorMessage: "no such host"}, true},
		{"Timeout", models.FetchResult{RequestedURL: "https://slow.uci.edu/", StatusCode: models.FetchFailureTimeout, HasStatus: true, ErrorMessage: "timeout"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			ex := &stubExtractor{hrefs: []string{"/x"}, text: "text"}
			p, agg := newProcessor(ex, rec)

			assert.Empty(t, p.Process(tt.result))
			assert.Equal(t, 0, agg.UniqueCount(), "failed fetch must not mark seen")
			if tt.wantLogged {
				require.Len(t, rec.entries, 1)
				assert.Equal(t, tt.result.RequestedURL, rec.entries[0].url)
				assert.Equal(t, tt.result.StatusCode, rec.entries[0].status)
				assert.Equal(t, tt.result.ErrorMessage, rec.entries[0].message)
			} else {
				assert.Empty(t, rec.entries)
			}
		})
	}
}

func TestPageProcessor_WidenedErrorClass(t *testing.T) {
	rec := &memRecorder{}
	agg := analytics.NewAggregator(analytics.PolicyCumulative, rec, log.Discard())
	p := NewPageProcessor(agg, &stubExtractor{}, nil, models.StatusClassifier{ErrorMin: 500, ErrorMax: 606}, log.Discard())

	p.Process(models.FetchResult{RequestedURL: "https://cs.uci.edu/x", StatusCode: 503, HasStatus: true, ErrorMessage: "unavailable"})
	p.Process(models.FetchResult{RequestedURL: "https://cs.uci.edu/y", StatusCode: 404, HasStatus: true, ErrorMessage: "missing"})

	require.Len(t, rec.entries, 1)
	assert.Equal(t, 503, rec.entries[0].status)
}

func TestPageProcessor_MalformedURL(t *testing.T) {
	p, agg := newProcessor(&stubExtractor{hrefs: []string{"/x"}}, nil)

	r := okResult("http://[::1")
	assert.Empty(t, p.Process(r))
	assert.Equal(t, 0, agg.UniqueCount())
}

func TestPageProcessor_DuplicateByFragment(t *testing.T) {
	p, agg := newProcessor(&stubExtractor{hrefs: []string{"/next"}, text: "alpha beta"}, nil)

	first := p.Process(okResult("https://cs.uci.edu/a#sec1"))
	second := p.Process(okResult("https://cs.uci.edu/a#sec2"))

	assert.Equal(t, []string{"/next"}, first)
	assert.Empty(t, second)
	assert.Equal(t, 1, agg.UniqueCount())
	assert.Equal(t, 2, agg.Snapshot().TotalWords)
}

func TestPageProcessor_ParseFailures(t *testing.T) {
	tests := []struct {
		name string
		ex   *stubExtractor
	}{
		{"ExtractError", &stubExtractor{hrefs: []string{"/a"}, err: errors.New("bad markup")}},
		{"Panic", &stubExtractor{panicMsg: "nil node"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, agg := newProcessor(tt.ex, nil)

			var hrefs []string
			assert.NotPanics(t, func() { hrefs = p.Process(okResult("https://cs.uci.edu/broken")) })
			assert.Empty(t, hrefs)

			stats := agg.Snapshot()
			assert.Equal(t, []string{"https://cs.uci.edu/broken"}, stats.UniquePages, "page stays seen")
			assert.Equal(t, 0, stats.TotalWords)
			assert.Empty(t, stats.Subdomains)

			assert.Empty(t, p.Process(okResult("https://cs.uci.edu/broken")), "not reprocessed")
		})
	}
}

func TestPageProcessor_Concurrent(t *testing.T) {
	p, agg := newProcessor(&stubExtractor{text: "one two"}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Process(okResult(fmt.Sprintf("https://cs.uci.edu/p%d#f%d", i%8, i)))
		}(i)
	}
	wg.Wait()

	stats := agg.Snapshot()
	assert.Len(t, stats.UniquePages, 8)
	assert.Equal(t, 16, stats.TotalWords)
}

func TestPageProcessor_WithHTMLExtractor(t *testing.T) {
	agg := analytics.NewAggregator(analytics.PolicyCumulative, nil, log.Discard())
	p := NewPageProcessor(agg, NewHTMLExtractor(), NewStopwordSet("the"), models.DefaultStatusClassifier(), log.Discard())

	r := okResult("https://cs.uci.edu/dept")
	r.Body = []byte(samplePage)

	hrefs := p.Process(r)
	assert.Equal(t, []string{"/page2", "https://example.com/x", "#top", "//cdn.uci.edu/a"}, hrefs)
	assert.Greater(t, agg.Snapshot().TotalWords, 0)
}

func TestPageProcessor_WordsAcrossElements(t *testing.T) {
	agg := analytics.NewAggregator(analytics.PolicyPerPage, nil, log.Discard())
	p := NewPageProcessor(agg, NewHTMLExtractor(), NewStopwordSet("the"), models.DefaultStatusClassifier(), log.Discard())

	r := okResult("https://cs.uci.edu/list")
	r.Body = []byte(`<p>alpha beta beta</p><a href="/b">x</a><ul><li>one</li><li>two</li></ul>`)
	p.Process(r)

	assert.Equal(t, []analytics.WordCount{{Word: "beta", Count: 2}, {Word: "alpha", Count: 1}, {Word: "one", Count: 1}, {Word: "two", Count: 1}},
		agg.TopWords(10))
}
