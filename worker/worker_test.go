package worker_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sitescrape/counters"
	"github.com/corvid-labs/sitescrape/scraper"
	"github.com/corvid-labs/sitescrape/seed"
	"github.com/corvid-labs/sitescrape/worker"
)

// fakeScraper records every page it scrapes and optionally errors on a
// chosen location.
type fakeScraper struct {
	mu      sync.Mutex
	scraped []string
	failOn  string
}

func (s *fakeScraper) Seed() (seed.Seed, error) { return seed.Pages(), nil }
func (s *fakeScraper) Accept(string, scraper.CrawlingContext) bool { return true }
func (s *fakeScraper) Scrap(page scraper.Page, ctx scraper.ScrapingContext) error {
	s.mu.Lock()
	s.scraped = append(s.scraped, page.Location.String())
	s.mu.Unlock()
	if s.failOn != "" && page.Location.String() == s.failOn {
		return fmt.Errorf("scrape failed for %s", page.Location)
	}
	return ctx.EmitRecord(scraper.Record{page.Location.String()})
}
func (s *fakeScraper) Finalizer() {}

func TestPoolRunScrapesEveryPage(t *testing.T) {
	var mu sync.Mutex
	var records []scraper.Record

	factory := func() (scraper.Scraper, error) { return &fakeScraper{}, nil }
	cnt := counters.New()
	pool := worker.New(2, factory, seed.SkipAndLog, cnt, nil)

	pages := make(chan scraper.Page, 3)
	pages <- scraper.Page{Location: scraper.PageLocation{URL: "A"}}
	pages <- scraper.Page{Location: scraper.PageLocation{URL: "B"}}
	pages <- scraper.Page{Location: scraper.PageLocation{URL: "C"}}
	close(pages)

	stop := make(chan struct{}, 2)
	emitRecord := func(r scraper.Record) error {
		mu.Lock()
		records = append(records, r)
		mu.Unlock()
		return nil
	}
	emitURL := func(string) bool { return true }

	handle, err := pool.Run(context.Background(), pages, stop, nil, emitRecord, emitURL)
	require.NoError(t, err)
	handle.Finalize()

	assert.Len(t, records, 3)
	_, out := cnt.Snapshot()
	assert.Equal(t, int64(3), out)
}

func TestPoolRunFailStopsAllWorkers(t *testing.T) {
	factory := func() (scraper.Scraper, error) {
		return &fakeScraper{failOn: "B"}, nil
	}
	cnt := counters.New()
	pool := worker.New(1, factory, seed.Fail, cnt, nil)

	pages := make(chan scraper.Page, 2)
	pages <- scraper.Page{Location: scraper.PageLocation{URL: "B"}}
	pages <- scraper.Page{Location: scraper.PageLocation{URL: "C"}}
	close(pages)

	stop := make(chan struct{}, 1)
	emitRecord := func(scraper.Record) error { return nil }
	emitURL := func(string) bool { return true }

	_, err := pool.Run(context.Background(), pages, stop, nil, emitRecord, emitURL)
	assert.Error(t, err)
}

func TestPoolRunSkipAndLogContinuesAfterScrapError(t *testing.T) {
	factory := func() (scraper.Scraper, error) {
		return &fakeScraper{failOn: "B"}, nil
	}
	cnt := counters.New()
	pool := worker.New(1, factory, seed.SkipAndLog, cnt, nil)

	pages := make(chan scraper.Page, 2)
	pages <- scraper.Page{Location: scraper.PageLocation{URL: "B"}}
	pages <- scraper.Page{Location: scraper.PageLocation{URL: "C"}}
	close(pages)

	stop := make(chan struct{}, 1)
	emitRecord := func(scraper.Record) error { return nil }
	emitURL := func(string) bool { return true }

	_, err := pool.Run(context.Background(), pages, stop, nil, emitRecord, emitURL)
	require.NoError(t, err)
	_, out := cnt.Snapshot()
	assert.Equal(t, int64(2), out)
}
