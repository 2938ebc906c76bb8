package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/rsmith1217/tcdb-sync/config"
)

// Fetcher retrieves raw page bodies through a colly collector, retrying
// throttling responses with a linearly growing backoff. It keeps no state
// between calls beyond the collector and its run counters, and it is not
// safe for concurrent use: the walk is strictly sequential.
type Fetcher struct {
	collector *colly.Collector
	cfg       *config.Config
	metrics   *Metrics

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(ctx context.Context, d time.Duration) error

	cur      fetchState
	requests int
	retries  int
}

type fetchState struct {
	body   []byte
	url    string
	status int
	err    error
}

// NewFetcher builds a fetcher bound to the inventory URL's host. The
// cookie value, when non-empty, is sent verbatim on every request.
func NewFetcher(cfg *config.Config, cookie string, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.InventoryURL)
	if err != nil {
		return nil, fmt.Errorf("parse inventory url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("inventory url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	f := &Fetcher{
		collector: collector,
		cfg:       cfg,
		metrics:   metrics,
		sleep:     sleepCtx,
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		if cookie != "" {
			r.Headers.Set("Cookie", cookie)
		}
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})

	collector.OnResponse(func(r *colly.Response) {
		f.cur.body = append([]byte(nil), r.Body...)
		f.cur.url = r.Request.URL.String()
		f.cur.status = r.StatusCode
		if f.metrics != nil {
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				f.metrics.ObserveDuration(time.Since(start))
			}
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			f.cur.status = r.StatusCode
		}
		f.cur.err = err
	})

	return f, nil
}

// Fetch retrieves the body for rawURL. Throttling responses are retried
// up to MaxAttempts total attempts, sleeping attempt x RetryBase between
// attempts; exhaustion yields a RateLimitedError. Any other non-success
// outcome fails immediately with a FetchError. Returns the body and the
// final URL after redirects.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		f.cur = fetchState{}
		f.requests++
		visitErr := f.collector.Visit(rawURL)

		if visitErr == nil && f.cur.err == nil && f.cur.status < http.StatusBadRequest {
			finalURL := f.cur.url
			if finalURL == "" {
				finalURL = rawURL
			}
			return f.cur.body, finalURL, nil
		}

		if f.cur.status == http.StatusTooManyRequests {
			if attempt == f.cfg.MaxAttempts {
				break
			}
			f.retries++
			f.metrics.IncRetries()
			delay := time.Duration(attempt) * f.cfg.RetryBase
			slog.Warn("throttled, backing off",
				slog.String("url", rawURL),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
			if err := f.sleep(ctx, delay); err != nil {
				return nil, "", err
			}
			continue
		}

		err := FetchError{URL: rawURL, Status: f.cur.status, Err: firstErr(f.cur.err, visitErr)}
		f.metrics.IncError(errorTypeLabel(err))
		return nil, "", err
	}

	err := RateLimitedError{
		URL:      rawURL,
		Attempts: f.cfg.MaxAttempts,
		Err:      fmt.Errorf("http status %d", http.StatusTooManyRequests),
	}
	f.metrics.IncError(errorTypeLabel(err))
	return nil, "", err
}

// WithTransport replaces the underlying HTTP transport. Used by tests.
func (f *Fetcher) WithTransport(transport http.RoundTripper) {
	f.collector.WithTransport(transport)
}

// Requests reports the number of HTTP requests issued so far.
func (f *Fetcher) Requests() int {
	return f.requests
}

// Retries reports the number of backoff retries taken so far.
func (f *Fetcher) Retries() int {
	return f.retries
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
