package models

import "time"

// WorkItem represents a URL and its depth to be processed by a worker
type WorkItem struct {
	URL   string
	Depth int
}

// FetchResult is what the fetch layer hands to the page processor for one page attempt.
// An empty ErrorMessage means no error.
type FetchResult struct {
	RequestedURL string `json:"requested_url"`
	FinalURL     string `json:"final_url"`              // URL after redirects; empty if the request never completed
	StatusCode   int    `json:"status,omitempty"`       // HTTP status or a FetchFailure* code
	HasStatus    bool   `json:"has_status"`             // False when no status could be obtained at all
	ErrorMessage string `json:"error,omitempty"`        // Transport or HTTP error description
	Body         []byte `json:"-"`                      // Raw response body
	ContentType  string `json:"content_type,omitempty"` // Content-Type header; a declared charset drives body decoding
}

// Succeeded reports whether the page can be processed: 2xx status, no error and a non-empty body.
func (r FetchResult) Succeeded() bool {
	return r.HasStatus && ClassifyStatus(r.StatusCode) == StatusClassSuccess && r.ErrorMessage == "" && len(r.Body) > 0
}

// PageURL returns the URL identifying the fetched page, preferring the post-redirect URL.
func (r FetchResult) PageURL() string {
	if r.FinalURL != "" {
		return r.FinalURL
	}
	return r.RequestedURL
}

// ErrorRecord is one line of the fetch error log.
type ErrorRecord struct {
	URL        string    `json:"url"`
	StatusCode int       `json:"status"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}
