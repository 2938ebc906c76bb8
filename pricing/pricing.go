// Package pricing is the optional enrichment pass that visits each card's
// detail page and records the lowest listed price. It runs after the walk
// and only ever touches the TCDBPrice/TCDBPriceSource fields.
package pricing

import (
	"context"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/rsmith1217/tcdb-sync/config"
	"github.com/rsmith1217/tcdb-sync/models"
	"github.com/rsmith1217/tcdb-sync/parser"
	"github.com/rsmith1217/tcdb-sync/scraper"
)

// Price sources recorded on enriched cards.
const (
	SourcePage       = "tcdb-page"
	SourceNotFound   = "not-found"
	SourceFetchError = "fetch-error"
)

const cacheSize = 1024

type lookup struct {
	price  float64
	priced bool
}

// Enricher prices cards through the shared fetcher. Successful lookups
// are cached per URL so a card page is fetched at most once per run.
type Enricher struct {
	cfg     *config.Config
	fetcher *scraper.Fetcher
	metrics *scraper.Metrics
	limiter *rate.Limiter
	cache   *lru.Cache[string, lookup]
}

// NewEnricher builds a pricing pass. CardDelay bounds the request rate
// against card detail pages.
func NewEnricher(cfg *config.Config, fetcher *scraper.Fetcher, metrics *scraper.Metrics) (*Enricher, error) {
	cache, err := lru.New[string, lookup](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("build price cache: %w", err)
	}

	limit := rate.Inf
	if cfg.CardDelay > 0 {
		limit = rate.Every(cfg.CardDelay)
	}

	return &Enricher{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metrics,
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache,
	}, nil
}

// Enrich prices up to MaxCards cards (0 = all) in place and returns how
// many ended up with a price. A failed card fetch marks that card as
// fetch-error and moves on; it never aborts the pass.
func (e *Enricher) Enrich(ctx context.Context, cards []*models.Card) (int, error) {
	priced := 0
	for i, card := range cards {
		if e.cfg.MaxCards > 0 && i >= e.cfg.MaxCards {
			break
		}

		if hit, ok := e.cache.Get(card.CardURL); ok {
			priced += apply(card, hit)
			e.metrics.IncPriced(card.TCDBPriceSource)
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return priced, err
		}

		e.metrics.IncRequest("card")
		body, _, err := e.fetcher.Fetch(ctx, card.CardURL)
		if err != nil {
			if ctx.Err() != nil {
				return priced, ctx.Err()
			}
			card.TCDBPrice = nil
			card.TCDBPriceSource = SourceFetchError
			e.metrics.IncPriced(SourceFetchError)
			slog.Warn("card price fetch failed",
				slog.String("url", card.CardURL),
				slog.Any("error", err),
			)
			continue
		}

		result := lookup{}
		result.price, result.priced = parser.ParsePrice(string(body))
		e.cache.Add(card.CardURL, result)
		priced += apply(card, result)
		e.metrics.IncPriced(card.TCDBPriceSource)
	}
	return priced, nil
}

func apply(card *models.Card, result lookup) int {
	if !result.priced {
		card.TCDBPrice = nil
		card.TCDBPriceSource = SourceNotFound
		return 0
	}
	price := result.price
	card.TCDBPrice = &price
	card.TCDBPriceSource = SourcePage
	return 1
}
