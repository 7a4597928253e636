package models

import "fmt"

// Fetch-layer failure codes. These are not HTTP statuses: the fetcher reports them when no
// usable HTTP response was obtained, so they stay distinct from 4xx/5xx.
const (
	FetchFailureUnknown           = 600 // Unclassified transport error
	FetchFailureDNS               = 601 // Host lookup failed
	FetchFailureTimeout           = 602 // Dial, TLS or response timeout
	FetchFailureConnectionRefused = 603
	FetchFailureTLS               = 604
	FetchFailureTooManyRedirects  = 605
	FetchFailureBodyRead          = 606 // Body unreadable or over the size limit

	FetchFailureMin = FetchFailureUnknown
	FetchFailureMax = FetchFailureBodyRead
)

// StatusClass groups status codes for the page processor and error log
type StatusClass string

const (
	StatusClassNone         StatusClass = ""              // No status obtained
	StatusClassSuccess      StatusClass = "success"       // 2xx
	StatusClassRedirect     StatusClass = "redirect"      // 3xx left unfollowed
	StatusClassClientError  StatusClass = "client_error"  // 4xx
	StatusClassServerError  StatusClass = "server_error"  // 5xx
	StatusClassFetchFailure StatusClass = "fetch_failure" // 600-606
	StatusClassOther        StatusClass = "other"
)

// String implements fmt.Stringer for logging
func (c StatusClass) String() string {
	if c == "" {
		return "none"
	}
	return string(c)
}

// ClassifyStatus maps a status code onto its StatusClass
func ClassifyStatus(code int) StatusClass {
	switch {
	case code == 0:
		return StatusClassNone
	case code >= 200 && code < 300:
		return StatusClassSuccess
	case code >= 300 && code < 400:
		return StatusClassRedirect
	case code >= 400 && code < 500:
		return StatusClassClientError
	case code >= 500 && code < 600:
		return StatusClassServerError
	case code >= FetchFailureMin && code <= FetchFailureMax:
		return StatusClassFetchFailure
	}
	return StatusClassOther
}

// StatusClassifier decides which failed fetches belong to the "server-error class" that is
// written to the error log. The range is inclusive.
type StatusClassifier struct {
	ErrorMin int
	ErrorMax int
}

// DefaultStatusClassifier covers the fetch-layer failure codes only.
func DefaultStatusClassifier() StatusClassifier {
	return StatusClassifier{ErrorMin: FetchFailureMin, ErrorMax: FetchFailureMax}
}

// IsReportable reports whether code falls inside the configured range.
func (c StatusClassifier) IsReportable(code int) bool {
	return code >= c.ErrorMin && code <= c.ErrorMax
}

// Validate rejects inverted or non-positive ranges.
func (c StatusClassifier) Validate() error {
	if c.ErrorMin <= 0 || c.ErrorMax < c.ErrorMin {
		return fmt.Errorf("invalid error status range [%d, %d]", c.ErrorMin, c.ErrorMax)
	}
	return nil
}

// String implements fmt.Stringer for logging
func (c StatusClassifier) String() string {
	return fmt.Sprintf("%d-%d", c.ErrorMin, c.ErrorMax)
}
