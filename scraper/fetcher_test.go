package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/rsmith1217/tcdb-sync/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.InventoryURL = "http://example.test/collection"
	cfg.PageDelay = 0
	cfg.CardDelay = 0
	cfg.RetryBase = 250 * time.Millisecond
	return cfg
}

func newTestFetcher(t *testing.T, cfg *config.Config, cookie string) (*Fetcher, *httpmock.MockTransport, *[]time.Duration) {
	t.Helper()

	f, err := NewFetcher(cfg, cookie, NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)

	delays := &[]time.Duration{}
	f.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return f, transport, delays
}

func htmlResponse(body string) *http.Response {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "text/html")
	return resp
}

func TestFetchSucceedsAfterThrottle(t *testing.T) {
	cfg := testConfig()
	f, transport, delays := newTestFetcher(t, cfg, "")

	calls := 0
	transport.RegisterResponder("GET", cfg.InventoryURL, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls <= 3 {
			return httpmock.NewStringResponse(http.StatusTooManyRequests, ""), nil
		}
		return htmlResponse("<html>ok</html>"), nil
	})

	body, finalURL, err := f.Fetch(context.Background(), cfg.InventoryURL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "<html>ok</html>" {
		t.Fatalf("body=%q", body)
	}
	if finalURL != cfg.InventoryURL {
		t.Fatalf("final url=%q", finalURL)
	}
	if calls != 4 {
		t.Fatalf("calls=%d, want 4", calls)
	}

	// Three throttled attempts mean exactly three linearly growing
	// backoff delays before the success.
	want := []time.Duration{1 * cfg.RetryBase, 2 * cfg.RetryBase, 3 * cfg.RetryBase}
	if len(*delays) != len(want) {
		t.Fatalf("delays=%v, want %v", *delays, want)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Fatalf("delay[%d]=%v, want %v", i, (*delays)[i], d)
		}
	}

	if got := f.Retries(); got != 3 {
		t.Fatalf("retries=%d, want 3", got)
	}
}

func TestFetchRateLimitExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 4
	f, transport, delays := newTestFetcher(t, cfg, "")

	transport.RegisterResponder("GET", cfg.InventoryURL,
		httpmock.NewStringResponder(http.StatusTooManyRequests, ""))

	_, _, err := f.Fetch(context.Background(), cfg.InventoryURL)

	var rateLimited RateLimitedError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("err=%v, want RateLimitedError", err)
	}
	if rateLimited.Attempts != 4 {
		t.Fatalf("attempts=%d, want 4", rateLimited.Attempts)
	}
	if got := transport.GetTotalCallCount(); got != 4 {
		t.Fatalf("calls=%d, want 4", got)
	}
	// No sleep after the final attempt.
	if len(*delays) != 3 {
		t.Fatalf("delays=%d, want 3", len(*delays))
	}
}

func TestFetchFailsFastOnNonThrottleStatus(t *testing.T) {
	cfg := testConfig()
	f, transport, delays := newTestFetcher(t, cfg, "")

	transport.RegisterResponder("GET", cfg.InventoryURL,
		httpmock.NewStringResponder(http.StatusNotFound, "gone"))

	_, _, err := f.Fetch(context.Background(), cfg.InventoryURL)

	var fetchErr FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err=%v, want FetchError", err)
	}
	if fetchErr.Status != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", fetchErr.Status)
	}
	if fetchErr.URL != cfg.InventoryURL {
		t.Fatalf("url=%q", fetchErr.URL)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls=%d, want 1 (no retry on non-throttle failures)", got)
	}
	if len(*delays) != 0 {
		t.Fatalf("delays=%v, want none", *delays)
	}
}

func TestFetchSendsSessionCookie(t *testing.T) {
	cfg := testConfig()
	f, transport, _ := newTestFetcher(t, cfg, "session=abc123")

	var gotCookie string
	transport.RegisterResponder("GET", cfg.InventoryURL, func(req *http.Request) (*http.Response, error) {
		gotCookie = req.Header.Get("Cookie")
		return htmlResponse("ok"), nil
	})

	if _, _, err := f.Fetch(context.Background(), cfg.InventoryURL); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotCookie != "session=abc123" {
		t.Fatalf("cookie=%q, want session=abc123", gotCookie)
	}
}

func TestFetchContextCanceled(t *testing.T) {
	cfg := testConfig()
	f, transport, _ := newTestFetcher(t, cfg, "")
	transport.RegisterResponder("GET", cfg.InventoryURL, httpmock.NewStringResponder(http.StatusOK, "ok"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := f.Fetch(ctx, cfg.InventoryURL); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("calls=%d, want 0", got)
	}
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil", err: nil, expected: "unknown"},
		{name: "rate limited", err: RateLimitedError{URL: "u", Attempts: 6}, expected: "rate_limited"},
		{name: "fetch failed", err: FetchError{URL: "u", Status: 500}, expected: "fetch_failed"},
		{name: "canceled", err: context.Canceled, expected: "canceled"},
		{name: "other", err: errors.New("boom"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(tt.err); got != tt.expected {
				t.Fatalf("errorTypeLabel(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}
