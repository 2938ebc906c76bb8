package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rsmith1217/tcdb-sync/config"
	"github.com/rsmith1217/tcdb-sync/models"
	"github.com/rsmith1217/tcdb-sync/pricing"
	"github.com/rsmith1217/tcdb-sync/scraper"
	"github.com/rsmith1217/tcdb-sync/snapshot"
)

func main() {
	godotenv.Load()

	defaultCfg := config.DefaultConfig()
	urlDefault := defaultCfg.InventoryURL
	if value, ok := config.EnvString("TCDB_INVENTORY_URL"); ok {
		urlDefault = value
	}
	cookieDefault := defaultCfg.CookieFile
	if value, ok := config.EnvString("TCDB_COOKIE_FILE"); ok {
		cookieDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("TCDB_OUTPUT"); ok {
		outputDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("TCDB_MAX_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid TCDB_MAX_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("TCDB_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	inventoryURL := flag.String("inventory-url", urlDefault, "Collection listing URL to walk")
	cookieFile := flag.String("cookie-file", cookieDefault, "File holding the session Cookie header value")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: json, csv, or dual")
	maxPages := flag.Int("max-pages", pagesDefault, "Hard cap on collection pages walked")
	pageDelayMs := flag.Int("page-delay", int(defaultCfg.PageDelay/time.Millisecond), "Delay between page fetches (milliseconds)")
	maxAttempts := flag.Int("max-attempts", defaultCfg.MaxAttempts, "Total fetch attempts per URL when throttled")
	retryBaseMs := flag.Int("retry-base", int(defaultCfg.RetryBase/time.Millisecond), "Linear backoff unit between throttled attempts (milliseconds)")
	priceCards := flag.Bool("price-cards", defaultCfg.PriceCards, "Fetch each card page for a price after the walk")
	maxCards := flag.Int("max-cards", defaultCfg.MaxCards, "Limit priced card pages (0 = all)")
	cardDelayMs := flag.Int("card-delay", int(defaultCfg.CardDelay/time.Millisecond), "Delay between card page fetches (milliseconds)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	allowPartial := flag.Bool("allow-partial", false, "Write whatever was gathered when the walk aborts mid-way")
	respectRobots := flag.Bool("respect-robots", defaultCfg.RespectRobotsTxt, "Respect robots.txt directives")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.InventoryURL = *inventoryURL
	cfg.CookieFile = *cookieFile
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MaxPages = *maxPages
	cfg.PageDelay = time.Duration(*pageDelayMs) * time.Millisecond
	cfg.MaxAttempts = *maxAttempts
	cfg.RetryBase = time.Duration(*retryBaseMs) * time.Millisecond
	cfg.PriceCards = *priceCards
	cfg.MaxCards = *maxCards
	cfg.CardDelay = time.Duration(*cardDelayMs) * time.Millisecond
	cfg.MetricsAddr = *metricsAddr
	cfg.RespectRobotsTxt = *respectRobots
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	cookie, err := config.ReadCookie(cfg.CookieFile)
	if err != nil {
		slog.Error("reading cookie file", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, cookie, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current request")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting collection walk",
		slog.String("inventory_url", cfg.InventoryURL),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Bool("price_cards", cfg.PriceCards),
	)

	walker := scraper.NewWalker(cfg, fetcher, metrics)
	result, walkErr := walker.Run(ctx)
	if walkErr != nil {
		if !*allowPartial || len(result.Cards) == 0 {
			slog.Error("collection walk failed", slog.Any("error", walkErr))
			os.Exit(1)
		}
		slog.Warn("collection walk aborted, keeping partial result",
			slog.Any("error", walkErr),
			slog.Int("pages", result.PageCount),
			slog.Int("cards", len(result.Cards)),
		)
	}

	pricedCount := 0
	if cfg.PriceCards && len(result.Cards) > 0 {
		enricher, err := pricing.NewEnricher(cfg, fetcher, metrics)
		if err != nil {
			slog.Error("initialising pricing pass", slog.Any("error", err))
			os.Exit(1)
		}
		pricedCount, err = enricher.Enrich(ctx, result.Cards)
		if err != nil {
			slog.Error("pricing pass failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	snap := models.BuildSnapshot(cfg.InventoryURL, result.Cards)

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Write(snap); err != nil {
		writer.Close()
		slog.Error("writing snapshot", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		writer.Close()
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(snap, result, pricedCount, cfg.OutputFile)
	if walkErr != nil {
		os.Exit(2)
	}
}

func createWriter(format, filename string) (snapshot.Writer, error) {
	switch format {
	case "json":
		return snapshot.NewJSONWriter(filename)
	case "csv":
		return snapshot.NewCSVWriter(filename)
	case "dual":
		csvFilename := strings.TrimSuffix(filename, ".json") + ".csv"
		return snapshot.NewDualWriter(filename, csvFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(snap *models.Snapshot, result *models.WalkResult, pricedCount int, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Sync complete")
	fmt.Printf("  Cards:         %d\n", snap.Totals.Cards)
	fmt.Printf("  Units:         %d\n", snap.Totals.Units)
	fmt.Printf("  Priced cards:  %d\n", pricedCount)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Duplicates:    %d\n", result.SkippedDupes)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
