package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultUserAgent = "mangatrack/1.0"

// backoffCap bounds the exponential backoff between retries.
var backoffCap = 10 * time.Second

// backoffBase is the first retry delay; overridable in tests.
var backoffBase = time.Second

// FetchOptions controls a single resilient fetch.
type FetchOptions struct {
	// Timeout applies per attempt, not across retries. Zero means the
	// client's own timeout.
	Timeout time.Duration
	// MaxRetries is the total number of attempts. Zero means 3.
	MaxRetries int
	// Headers are attached to every attempt. A User-Agent here overrides
	// the default one.
	Headers map[string]string
}

// FetchExhaustedError reports that every attempt at a URL failed. Err holds
// the failure of the final attempt.
type FetchExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("fetch %s: %d attempts exhausted: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchExhaustedError) Unwrap() error { return e.Err }

// Fetch GETs url with capped exponential backoff between attempts. It does
// not rate-limit; callers are expected to go through their Limiter first, so
// every retry is a full-cost request against the source.
func Fetch(ctx context.Context, client *http.Client, url string, opts FetchOptions) ([]byte, error) {
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			backoff := backoffBase << (attempt - 1)
			if backoff > backoffCap {
				backoff = backoffCap
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, err := fetchOnce(ctx, client, url, opts)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &FetchExhaustedError{URL: url, Attempts: retries, Err: lastErr}
}

func fetchOnce(ctx context.Context, client *http.Client, url string, opts FetchOptions) ([]byte, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", defaultUserAgent)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
