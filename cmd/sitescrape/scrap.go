package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/corvid-labs/sitescrape/counters"
	"github.com/corvid-labs/sitescrape/examplescraper"
	"github.com/corvid-labs/sitescrape/httpfetch"
	"github.com/corvid-labs/sitescrape/scraper"
	"github.com/corvid-labs/sitescrape/seed"
	"github.com/corvid-labs/sitescrape/worker"
)

// runScrap implements the `scrap` operator surface: a single page (from a
// URL or a glob of local files), written to file or stdout. It reuses the
// Worker Pool directly, bypassing sitemap walking, the Download Pool, and
// the Supervisor's quiescence machinery entirely — there is no "in"
// stream to drain against, just a fixed, already-known set of pages.
func runScrap(args []string) int {
	fs := flag.NewFlagSet("scrap", flag.ExitOnError)

	url := fs.String("url", "", "single page URL to fetch and scrape")
	glob := fs.String("glob", "", "glob of local files to scrape, e.g. ./pages/*.html")
	userAgent := fs.String("user-agent", "", "User-Agent header for -url (default \"SWSbot\")")
	numWorkers := fs.Int("workers", 0, "worker pool size (default max(1, cpus-2))")
	onScrapErr := fs.String("on-scrap-error", "skip", "\"skip\" or \"fail\"")
	output := fs.String("output", "", "output file path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if (*url == "") == (*glob == "") {
		fmt.Fprintln(os.Stderr, "Error: exactly one of -url or -glob is required")
		return 2
	}

	onScrap, err := parseErrorPolicy(*onScrapErr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}

	cfg := seed.DefaultCrawlerConfig()
	if *numWorkers > 0 {
		cfg.NumWorkers = *numWorkers
	}
	if *userAgent != "" {
		cfg.UserAgent = *userAgent
	}
	cfg.OnScrapErr = onScrap

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "sitescrape",
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pages, err := gatherPages(ctx, *url, *glob, cfg.ResolvedUserAgent())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	recordSink, err := openSink(*output)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	// Seed is never consulted in scrap mode (sitemap walking is bypassed
	// entirely), but every Scraper must still answer Seed() per the
	// external contract.
	scraperSeed := seed.Pages()
	if *url != "" {
		scraperSeed = seed.Pages(*url)
	}
	factory := examplescraper.New(examplescraper.Config{Seed: scraperSeed})

	pageCh := make(chan scraper.Page, len(pages))
	for _, p := range pages {
		pageCh <- p
	}
	close(pageCh)

	cnt := counters.New()
	stop := make(chan struct{})
	pool := worker.New(cfg.NumWorkers, factory, cfg.OnScrapErr, cnt, logger)

	noURLs := func(string) bool { return false }
	// Workers emit concurrently and Sink.Write is not safe for concurrent
	// use, so writes are serialized here.
	var sinkMu sync.Mutex
	handle, runErr := pool.Run(ctx, pageCh, stop, nil, func(r scraper.Record) error {
		sinkMu.Lock()
		defer sinkMu.Unlock()
		return recordSink.Write(r)
	}, noURLs)

	handle.Finalize()
	if err := recordSink.Close(); err != nil {
		logger.Warn("sink close failed", "err", err)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, "Error:", runErr)
		return 1
	}
	_, out := cnt.Snapshot()
	logger.Info("scrap complete", "out", out)
	return 0
}

// gatherPages resolves -url or -glob into the fixed set of pages scrap
// will feed to the Worker Pool.
func gatherPages(ctx context.Context, url, glob, userAgent string) ([]scraper.Page, error) {
	if url != "" {
		body, err := httpfetch.Get(ctx, http.DefaultClient, url, userAgent)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
		return []scraper.Page{{
			Body:     string(body),
			Location: scraper.PageLocation{URL: url},
		}}, nil
	}

	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", glob, err)
	}
	pages := make([]scraper.Page, 0, len(matches))
	for _, path := range matches {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		pages = append(pages, scraper.Page{
			Body:     string(body),
			Location: scraper.PageLocation{Path: path},
		})
	}
	return pages, nil
}
