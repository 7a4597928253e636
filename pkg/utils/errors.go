package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrMalformedURL     = errors.New("malformed URL")                    // href or base cannot be resolved
	ErrFetchFailure     = errors.New("fetch failed")                     // non-success status or empty body
	ErrParsing          = errors.New("parsing error")                    // HTML/text extraction failed
	ErrConfigLoad       = errors.New("configuration load error")         // degraded to defaults, never fatal
	ErrConfigValidation = errors.New("configuration validation error")   // fatal at startup only
	ErrScopeViolation   = errors.New("URL out of scope")                 // wraps the failing rule
	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")          // Wraps original status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")          // Wraps original status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")       // Wraps original status
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrDatabase         = errors.New("database error")   // Wraps badger errors
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors from report writing
)

// WrapErrorf prefixes err with a formatted message, keeping it matchable via errors.Is.
// Returns nil if err is nil.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		// Joined with %w twice, so errors.Unwrap would return nil here
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}
		return "RetryFailed_" + NetworkFailureClass(err)
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "429"} {
			if strings.Contains(errMsg, " "+code+" ") {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrMalformedURL):
		return "URL_Malformed"
	case errors.Is(err, ErrScopeViolation):
		return "Policy_Scope"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrParsing):
		return "Content_Parsing"
	case errors.Is(err, ErrFetchFailure):
		return "Fetch_Failure"
	case errors.Is(err, ErrConfigLoad):
		return "Config_Load"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		return "Filesystem_Other"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	category := NetworkFailureClass(err)
	if category == NetworkOther {
		return "Unknown"
	}
	return "Network_" + category
}

// Transport failure classes reported by NetworkFailureClass.
const (
	NetworkDNSLookup         = "DNSLookup"
	NetworkTimeout           = "Timeout"
	NetworkConnectionRefused = "ConnectionRefused"
	NetworkTLS               = "TLS"
	NetworkTooManyRedirects  = "TooManyRedirects"
	NetworkConnectionReset   = "ConnectionReset"
	NetworkOther             = "NetworkOther"
)

// NetworkFailureClass inspects a transport-level error and names its failure class.
func NetworkFailureClass(err error) string {
	if err == nil {
		return NetworkOther
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NetworkDNSLookup
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NetworkTimeout
	}

	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"), strings.Contains(lowerErrMsg, "deadline exceeded"):
		return NetworkTimeout
	case strings.Contains(lowerErrMsg, "no such host"):
		return NetworkDNSLookup
	case strings.Contains(lowerErrMsg, "connection refused"):
		return NetworkConnectionRefused
	case strings.Contains(lowerErrMsg, "tls"), strings.Contains(lowerErrMsg, "certificate"):
		return NetworkTLS
	case strings.Contains(lowerErrMsg, "redirects"):
		return NetworkTooManyRedirects
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return NetworkConnectionReset
	}
	return NetworkOther
}
