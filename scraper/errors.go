package scraper

import (
	"context"
	"errors"
	"fmt"
)

// RateLimitedError indicates the retry budget was exhausted on throttling
// responses for a single URL.
type RateLimitedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e RateLimitedError) Error() string {
	return fmt.Sprintf("rate_limited: %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e RateLimitedError) Unwrap() error {
	return e.Err
}

// FetchError indicates a non-success, non-throttling HTTP outcome. These
// are not retried.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("fetch_failed: %s status %d: %v", e.URL, e.Status, e.Err)
}

func (e FetchError) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var rateLimited RateLimitedError
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var fetch FetchError
	if errors.As(err, &fetch) {
		return "fetch_failed"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "other"
}
