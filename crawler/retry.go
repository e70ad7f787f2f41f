package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryPolicy configures retry behavior for failed requests.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries (2 = 3 total attempts)
	BaseDelay  time.Duration // Initial backoff delay (1s)
	MaxDelay   time.Duration // Maximum backoff cap (30s)
}

// DefaultRetryPolicy returns a RetryPolicy with sensible defaults:
// 2 retries (3 attempts), 1s base delay, 30s max delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// FetchResult is the outcome of a single successful GET: status, content
// type, and the full response body (buffered so ParseTitle/ParseLinks can
// each run over it independently).
type FetchResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// FetchWithRetry performs an HTTP GET with exponential backoff retry on
// transient failures (network errors, 429, 5xx). Permanent failures (other
// 4xx) return immediately without retrying.
func FetchWithRetry(ctx context.Context, client *http.Client, url, userAgent string, policy RetryPolicy) (FetchResult, error) {
	backoff := policy.BaseDelay
	var lastResult FetchResult
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return FetchResult{}, ctx.Err()
			case <-time.After(backoff):
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		lastResult, lastErr = fetchOnce(ctx, client, url, userAgent)
		if lastErr == nil && lastResult.StatusCode < 400 {
			return lastResult, nil
		}
		if !shouldRetry(lastResult.StatusCode, lastErr) {
			break
		}
	}

	if lastErr != nil {
		return FetchResult{}, fmt.Errorf("fetch %s after retries: %w", url, lastErr)
	}
	return lastResult, nil
}

func fetchOnce(ctx context.Context, client *http.Client, url, userAgent string) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{StatusCode: resp.StatusCode}, fmt.Errorf("read body: %w", err)
	}

	return FetchResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// shouldRetry decides whether a failed attempt (status, or transport error)
// should be retried: network errors, 429, and 5xx are retryable; other 4xx
// are not.
func shouldRetry(status int, err error) bool {
	if err != nil {
		return isRetryableError(err)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 {
		return true
	}
	return false
}

// isRetryableError checks if an error type is retryable.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "deadline exceeded", "connection refused", "connection reset", "no such host", "temporary failure"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
