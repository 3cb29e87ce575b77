// Package worker is the Worker Pool (C4): a fixed-size set of goroutines
// standing in for the spec's dedicated OS threads, each owning its own
// Scraper instance, draining the bounded page channel and invoking
// scraping until told to stop or until a sibling worker fails under
// on_scrap_error=Fail.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/corvid-labs/sitescrape/counters"
	"github.com/corvid-labs/sitescrape/robots"
	"github.com/corvid-labs/sitescrape/scraper"
	"github.com/corvid-labs/sitescrape/seed"
)

// Logger is the minimal structured-logging surface the pool needs.
type Logger interface {
	Warn(msg string, keyvals ...any)
}

// Pool owns num_workers scraper instances and the goroutines that drive
// them. Exactly one Scraper instance, worker 0's, is handed back to the
// caller via the returned Handle so the Supervisor can invoke Finalizer
// without constructing a second, throwaway instance.
type Pool struct {
	numWorkers int
	factory    scraper.Factory
	onErr      seed.ErrorPolicy
	counters   *counters.Counters
	log        Logger
	failed     atomic.Bool
}

// New constructs a Pool of n workers, each built from factory.
func New(n int, factory scraper.Factory, onErr seed.ErrorPolicy, c *counters.Counters, log Logger) *Pool {
	return &Pool{numWorkers: n, factory: factory, onErr: onErr, counters: c, log: log}
}

// Run starts all workers and blocks until pages closes, stop fires once
// per worker, or a worker under on_scrap_error=Fail sets the shared failed
// flag and every other worker observes it and exits. It returns the first
// error encountered (nil under pure SkipAndLog operation) along with a
// Handle for the run-end Finalizer call.
func (p *Pool) Run(ctx context.Context, pages <-chan scraper.Page, stop <-chan struct{}, robot *robots.Robot, emitRecord func(scraper.Record) error, emitURL func(string) bool) (scraper.Handle, error) {
	var keeper scraper.Scraper
	var keeperSet atomic.Bool

	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.numWorkers; i++ {
		id := i
		eg.Go(func() error {
			s, err := p.factory()
			if err != nil {
				p.failed.Store(true)
				return fmt.Errorf("worker %d: construct scraper: %w", id, err)
			}
			if id == 0 && keeperSet.CompareAndSwap(false, true) {
				keeper = s
			}
			return p.runWorker(egCtx, id, s, pages, stop, robot, emitRecord, emitURL)
		})
	}
	err := eg.Wait()
	return scraper.NewHandle(keeper), err
}

// runWorker implements the per-page loop from §4.4: take one Page, bail
// if the pool already failed, build a ScrapingContext, invoke Scrap, and
// apply on_scrap_error. The select between pages and stop deliberately
// does not prefer either arm; a pending stop is honored as soon as the Go
// runtime happens to pick it.
func (p *Pool) runWorker(ctx context.Context, id int, s scraper.Scraper, pages <-chan scraper.Page, stop <-chan struct{}, robot *robots.Robot, emitRecord func(scraper.Record) error, emitURL func(string) bool) error {
	workerID := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case page, ok := <-pages:
			if !ok {
				return nil
			}
			if p.failed.Load() {
				return nil
			}
			sctx := scraper.NewScrapingContext(page.Location, robot, workerID, emitRecord, emitURL)
			if scrapErr := p.scrapOne(s, page, sctx, id); scrapErr != nil {
				return scrapErr
			}
		}
	}
}

func (p *Pool) scrapOne(s scraper.Scraper, page scraper.Page, sctx scraper.ScrapingContext, id int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Store(true)
			err = fmt.Errorf("worker %d: panic scraping %s: %v", id, page.Location, r)
		}
	}()

	scrapErr := s.Scrap(page, sctx)
	if scrapErr == nil {
		p.counters.BumpOut()
		return nil
	}

	if p.onErr == seed.Fail {
		p.failed.Store(true)
		return fmt.Errorf("worker %d: scrap %s: %w", id, page.Location, scrapErr)
	}

	if p.log != nil {
		p.log.Warn("scrape failed, skipping", "location", page.Location.String(), "err", scrapErr)
	}
	p.counters.BumpOut()
	return nil
}
