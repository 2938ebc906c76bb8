package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/rsmith1217/tcdb-sync/config"
	"github.com/rsmith1217/tcdb-sync/models"
	"github.com/rsmith1217/tcdb-sync/parser"
)

// Walker traverses a paginated collection listing sequentially: fetch,
// parse, accumulate unseen cards, follow the next link. All walk state
// (cursor, accumulated cards, seen set, page counter) lives in Run's
// frame; a Walker value carries no state between runs.
type Walker struct {
	cfg     *config.Config
	fetcher *Fetcher
	metrics *Metrics
	limiter *rate.Limiter
}

// NewWalker builds a walker. PageDelay bounds the request rate between
// page fetches; it is distinct from the fetcher's retry backoff.
func NewWalker(cfg *config.Config, fetcher *Fetcher, metrics *Metrics) *Walker {
	limit := rate.Inf
	if cfg.PageDelay > 0 {
		limit = rate.Every(cfg.PageDelay)
	}
	return &Walker{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metrics,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run walks the collection starting at the configured inventory URL and
// returns the de-duplicated cards in discovery order. The walk stops when
// a page has no next link or MaxPages is reached; the page cap also
// bounds pagination loops on the source site. A fetch failure aborts the
// walk, but the result still carries the pages gathered before the
// failure so the caller can decide whether to keep them.
func (w *Walker) Run(ctx context.Context) (*models.WalkResult, error) {
	result := &models.WalkResult{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
		result.RequestCount = w.fetcher.Requests()
		result.RetryCount = w.fetcher.Retries()
	}()

	seen := make(map[string]struct{})
	cursor := w.cfg.InventoryURL

	for cursor != "" && result.PageCount < w.cfg.MaxPages {
		if err := w.limiter.Wait(ctx); err != nil {
			return result, err
		}

		body, finalURL, err := w.fetcher.Fetch(ctx, cursor)
		if err != nil {
			return result, fmt.Errorf("page %d: %w", result.PageCount+1, err)
		}
		result.PageCount++
		w.metrics.IncPages()
		w.metrics.IncRequest("page")

		page, err := parser.ParsePage(finalURL, body)
		if err != nil {
			return result, fmt.Errorf("page %d: %w", result.PageCount, err)
		}

		added := 0
		for _, card := range page.Cards {
			if _, ok := seen[card.CardURL]; ok {
				result.SkippedDupes++
				continue
			}
			seen[card.CardURL] = struct{}{}
			result.Cards = append(result.Cards, card)
			w.metrics.IncCards()
			added++
		}

		slog.Debug("page walked",
			slog.String("url", cursor),
			slog.Int("page", result.PageCount),
			slog.Int("cards", added),
			slog.Int("dupes", len(page.Cards)-added),
			slog.Bool("has_next", page.NextURL != ""),
		)

		cursor = page.NextURL
	}

	return result, nil
}
