// Package supervisor is the Supervisor (C5): it owns every channel and
// atomic counter in the pipeline, runs the walker, download pool, worker
// pool, and quiescence watcher concurrently, detects termination, and
// invokes the Scraper finalizer exactly once.
package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corvid-labs/sitescrape/counters"
	"github.com/corvid-labs/sitescrape/dedup"
	"github.com/corvid-labs/sitescrape/download"
	"github.com/corvid-labs/sitescrape/httpfetch"
	"github.com/corvid-labs/sitescrape/robots"
	"github.com/corvid-labs/sitescrape/scraper"
	"github.com/corvid-labs/sitescrape/seed"
	"github.com/corvid-labs/sitescrape/sitemapwalk"
	"github.com/corvid-labs/sitescrape/throttle"
	"github.com/corvid-labs/sitescrape/worker"
)

// Logger is the minimal structured-logging surface the pipeline needs;
// satisfied by *charmbracelet/log.Logger.
type Logger interface {
	Warn(msg string, keyvals ...any)
}

// RecordSink is the Record Sink capability (X2): something that drains a
// record channel on its own goroutine, reporting any write failure on
// errs rather than dropping it, and can be flushed and closed once.
// Implemented by sink.Sink.
type RecordSink interface {
	Run(records <-chan scraper.Record, errs chan<- error)
	Close() error
}

// Result is the terminal snapshot of a completed or aborted run.
type Result struct {
	InCount      int64
	OutCount     int64
	SinkFailures int64
	WalkerDone   bool
}

// Supervisor drives one full run of the pipeline.
type Supervisor struct {
	cfg      seed.CrawlerConfig
	factory  scraper.Factory
	sink     RecordSink
	log      Logger
	progress chan<- ProgressEvent
	client   *http.Client
}

// Option configures a Supervisor beyond its required constructor
// arguments.
type Option func(*Supervisor)

// WithLogger routes every SkipAndLog decision through log.
func WithLogger(log Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithProgress delivers a ProgressEvent roughly once per second while the
// run is in flight. The channel is never closed by the Supervisor; the
// caller should treat Run's return as the end-of-stream signal.
func WithProgress(ch chan<- ProgressEvent) Option {
	return func(s *Supervisor) { s.progress = ch }
}

// WithHTTPClient overrides the default *http.Client (e.g. for tests).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Supervisor) { s.client = c }
}

// New constructs a Supervisor for one run. factory builds a fresh Scraper
// instance; it is called once for the walker's own Seed/Accept calls and
// once per worker thread. The run's Seed is obtained by calling the
// walker-side Scraper's Seed method, per the external Scraper contract
// (X1) — the Supervisor does not accept a Seed directly.
func New(cfg seed.CrawlerConfig, factory scraper.Factory, recordSink RecordSink, opts ...Option) *Supervisor {
	s := &Supervisor{
		cfg:     cfg,
		factory: factory,
		sink:    recordSink,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the pipeline to completion. It returns a Config error
// immediately if cfg/seed fail validation; otherwise it joins the four
// concurrent tasks (walker, download pool, worker pool, quiescence
// watcher) with short-circuit on first Fail-policy error or context
// cancellation (Interrupt), and always invokes the Scraper finalizer
// exactly once before returning.
func (s *Supervisor) Run(ctx context.Context) (Result, error) {
	walkScraper, err := s.factory()
	if err != nil {
		return Result{}, fmt.Errorf("construct walker scraper: %w", err)
	}

	sd, err := walkScraper.Seed()
	if err != nil {
		return Result{}, fmt.Errorf("resolve seed: %w", err)
	}

	if err := s.cfg.Validate(sd); err != nil {
		return Result{}, fmt.Errorf("config: %w", err)
	}

	robot, err := s.resolveRobot(ctx, sd)
	if err != nil && s.log != nil {
		s.log.Warn("robots.txt resolution failed, proceeding permissively", "err", err)
	}

	policy := s.resolveThrottlePolicy(robot)
	throttler, err := throttle.New(policy)
	if err != nil {
		return Result{}, fmt.Errorf("config: %w", err)
	}

	cnt := counters.New()
	dd, err := dedup.NewForCrawl()
	if err != nil {
		return Result{}, fmt.Errorf("construct dedup tracker: %w", err)
	}
	defer dd.Close()

	urlsIn := make(chan string)
	pages := make(chan scraper.Page, s.cfg.PageBuffer)
	recordsIn := make(chan scraper.Record)
	workerStop := make(chan struct{}, s.cfg.NumWorkers)
	downloadStop := make(chan struct{})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	urlsOut := unbounded(runCtx, urlsIn)
	recordsOut := unbounded(runCtx, recordsIn)

	emitURL := func(u string) bool {
		cnt.BumpIn()
		select {
		case urlsIn <- u:
			return true
		case <-runCtx.Done():
			cnt.DropIn()
			return false
		}
	}

	var sinkFailures int64
	emitRecord := func(r scraper.Record) error {
		select {
		case recordsIn <- r:
			return nil
		case <-runCtx.Done():
			return runCtx.Err()
		}
	}

	sinkErrs := make(chan error)
	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		defer close(sinkErrs)
		s.sink.Run(recordsOut, sinkErrs)
	}()

	sinkErrsDone := make(chan struct{})
	go func() {
		defer close(sinkErrsDone)
		for err := range sinkErrs {
			sinkFailures++
			if s.log != nil {
				s.log.Warn("sink write failed", "err", err)
			}
		}
	}()

	fetch := func(ctx context.Context, u string) ([]byte, error) {
		return httpfetch.Get(ctx, s.client, u, s.cfg.ResolvedUserAgent())
	}

	walker := sitemapwalk.New(fetch, throttler, s.cfg.OnDownloadErr, s.cfg.OnXMLErr, cnt, dd, s.log)
	pool := download.New(s.client, throttler, s.cfg.ResolvedUserAgent(), s.cfg.OnDownloadErr, cnt, s.log)
	workers := worker.New(s.cfg.NumWorkers, s.factory, s.cfg.OnScrapErr, cnt, s.log)

	eg, egCtx := errgroup.WithContext(runCtx)

	eg.Go(func() error {
		return walker.Walk(egCtx, sd, robot, walkScraper.Accept, urlsIn)
	})

	eg.Go(func() error {
		return pool.Run(egCtx, urlsOut, pages, downloadStop)
	})

	var handle scraper.Handle
	eg.Go(func() error {
		h, err := workers.Run(egCtx, pages, workerStop, robot, emitRecord, emitURL)
		handle = h
		return err
	})

	eg.Go(func() error {
		return s.watchQuiescence(egCtx, cnt, workerStop, downloadStop)
	})

	runErr := eg.Wait()

	close(recordsIn)
	<-sinkDone
	<-sinkErrsDone
	if err := s.sink.Close(); err != nil && s.log != nil {
		s.log.Warn("sink close failed", "err", err)
	}
	handle.Finalize()

	in, out := cnt.Snapshot()
	result := Result{InCount: in, OutCount: out, SinkFailures: sinkFailures, WalkerDone: cnt.WalkerDone()}
	return result, runErr
}

// watchQuiescence is the quiescence detector from §4.5: poll every second,
// and once every admitted URL has finished and the walker has finished
// enumerating, signal every worker and the download pool to stop and
// return. A cancelled context is reported as an Interrupt.
func (s *Supervisor) watchQuiescence(ctx context.Context, cnt *counters.Counters, workerStop chan<- struct{}, downloadStop chan<- struct{}) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("interrupted: %w", ctx.Err())
		case <-ticker.C:
			if !cnt.Quiescent() {
				if s.progress != nil {
					in, out := cnt.Snapshot()
					select {
					case s.progress <- ProgressEvent{In: in, Out: out, WalkerDone: cnt.WalkerDone()}:
					default:
					}
				}
				continue
			}
			for i := 0; i < s.cfg.NumWorkers; i++ {
				workerStop <- struct{}{}
			}
			close(downloadStop)
			return nil
		}
	}
}

func (s *Supervisor) resolveRobot(ctx context.Context, sd seed.Seed) (*robots.Robot, error) {
	robotsURL := s.cfg.RobotURL
	if sd.Kind() == seed.KindRobotsTxt {
		robotsURL = sd.RobotsURL()
	}
	if robotsURL == "" {
		return nil, nil
	}
	return robots.Fetch(ctx, s.client, robotsURL, s.cfg.ResolvedUserAgent())
}

func (s *Supervisor) resolveThrottlePolicy(robot *robots.Robot) throttle.Policy {
	if s.cfg.Throttle != nil {
		return *s.cfg.Throttle
	}
	if delay, ok := robot.CrawlDelay(); ok {
		return throttle.Delay(delay)
	}
	return throttle.Concurrent(100)
}
