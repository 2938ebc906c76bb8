package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the sync run.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  prometheus.Histogram
	PagesTotal       prometheus.Counter
	CardsTotal       prometheus.Counter
	RetriesTotal     prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	PricedCardsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcdb_sync_requests_total",
			Help: "Total HTTP requests issued, by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tcdb_sync_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tcdb_sync_pages_total",
			Help: "Total collection pages walked.",
		},
	)
	cards := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tcdb_sync_cards_total",
			Help: "Total unique cards collected.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tcdb_sync_retries_total",
			Help: "Total retry attempts after throttling responses.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcdb_sync_errors_total",
			Help: "Total fetch errors by type.",
		},
		[]string{"error_type"},
	)
	pricedCards := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcdb_sync_priced_cards_total",
			Help: "Cards handled by the pricing pass, by price source.",
		},
		[]string{"source"},
	)

	registry.MustRegister(requests, requestDuration, pages, cards, retries, errorsTotal, pricedCards)

	return &Metrics{
		Registry:         registry,
		RequestsTotal:    requests,
		RequestDuration:  requestDuration,
		PagesTotal:       pages,
		CardsTotal:       cards,
		RetriesTotal:     retries,
		ErrorsTotal:      errorsTotal,
		PricedCardsTotal: pricedCards,
	}
}

// IncRequest increments the requests total counter for a phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the pages walked counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncCards increments the unique cards counter.
func (m *Metrics) IncCards() {
	if m == nil {
		return
	}
	m.CardsTotal.Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncPriced increments the pricing pass counter for a source label.
func (m *Metrics) IncPriced(source string) {
	if m == nil {
		return
	}
	m.PricedCardsTotal.WithLabelValues(source).Inc()
}
