package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/corpus-crawler/pkg/config"
	"github.com/Sriram-PR/corpus-crawler/pkg/models"
	"github.com/Sriram-PR/corpus-crawler/pkg/utils"
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5"

// Fetcher makes HTTP requests with retry and backoff, and turns responses into FetchResults.
type Fetcher struct {
	client *http.Client
	cfg    *config.AppConfig // retry settings and the page size limit
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// FetchWithRetry performs req, retrying transient network errors, 5xx and 429 with exponential
// backoff and jitter.
//
// A non-nil response is returned for 2xx, for non-retryable statuses (with an error) and for the
// final retryable status once retries are exhausted (with an error). The caller must close its body.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	reqLog := f.log.WithField("url", req.URL.String())

	maxRetries := f.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, abortError(ctx, lastErr)
		}

		if attempt > 0 {
			delay := f.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, abortError(ctx, lastErr)
			}
		}

		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			discard(resp)
			if ctx.Err() != nil {
				return nil, abortError(ctx, err)
			}
			if errors.Is(err, ErrTooManyRedirects) {
				reqLog.Warnf("Redirect limit hit, not retrying: %v", err)
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", err)
			lastErr = err
			continue
		}

		statusCode := resp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})
		final := attempt == maxRetries

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Successfully fetched")
			return resp, nil

		case statusCode >= 500, statusCode == http.StatusTooManyRequests:
			sentinel := utils.ErrServerHTTPError
			if statusCode == http.StatusTooManyRequests {
				sentinel = utils.ErrClientHTTPError
			}
			lastErr = fmt.Errorf("%w: status %d %s", sentinel, statusCode, http.StatusText(statusCode))
			if final {
				reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
				return resp, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
			}
			resLog.Warn("Retryable status, retrying...")
			discard(resp)
			continue

		case statusCode >= 400 && statusCode < 500:
			resLog.Warn("Client error (4xx), not retrying")
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, http.StatusText(statusCode))

		default:
			resLog.Warnf("Non-retryable/unexpected status: %d", statusCode)
			return resp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, http.StatusText(statusCode))
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// Download fetches rawURL and packages the outcome as a FetchResult.
//
// Transport failures become fetch-failure codes (600-606) with HasStatus set. A cancelled
// context or an unbuildable request yields a result without a status.
func (f *Fetcher) Download(ctx context.Context, rawURL, userAgent string) models.FetchResult {
	result := models.FetchResult{RequestedURL: rawURL, FinalURL: rawURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		result.ErrorMessage = fmt.Errorf("%w: %v", utils.ErrRequestCreation, err).Error()
		return result
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.FetchWithRetry(ctx, req)
	if resp == nil {
		if err == nil {
			err = utils.ErrFetchFailure
		}
		result.ErrorMessage = err.Error()
		if ctx.Err() == nil {
			result.StatusCode = FailureCode(err)
			result.HasStatus = true
		}
		return result
	}
	defer discard(resp)

	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}
	result.StatusCode = resp.StatusCode
	result.HasStatus = true
	result.ContentType = resp.Header.Get("Content-Type")

	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	body, err := f.readBody(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			result.HasStatus = false
			result.StatusCode = 0
		} else {
			result.StatusCode = FailureCode(err)
		}
		result.ErrorMessage = err.Error()
		return result
	}
	result.Body = body
	return result
}

// readBody reads at most MaxPageSizeBytes; anything larger is a body-read failure.
func (f *Fetcher) readBody(body io.Reader) ([]byte, error) {
	limit := f.cfg.MaxPageSizeBytes
	if limit <= 0 {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
		}
		return b, nil
	}

	b, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", utils.ErrResponseBodyRead, limit)
	}
	return b, nil
}

// backoff returns initial * 2^(attempt-1), capped at MaxRetryDelay, with +/-10% jitter.
func (f *Fetcher) backoff(attempt int) time.Duration {
	maxDelay := f.cfg.MaxRetryDelay
	delay := time.Duration(float64(f.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (maxDelay > 0 && delay > maxDelay) {
		delay = maxDelay
	}
	if delay <= 0 {
		return 0
	}

	var jitter time.Duration
	if spread := int64(delay) / 5; spread > 0 {
		jitter = time.Duration(rand.Int63n(spread)) - delay/10
	}
	if delay+jitter < 0 {
		return 0
	}
	return delay + jitter
}

func abortError(ctx context.Context, lastErr error) error {
	if lastErr != nil {
		return fmt.Errorf("request aborted (%v) after error: %w", lastErr, ctx.Err())
	}
	return fmt.Errorf("request aborted: %w", ctx.Err())
}

// discard drains and closes resp's body so the connection can be reused.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
