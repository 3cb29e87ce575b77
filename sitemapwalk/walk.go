// Package sitemapwalk is the Sitemap Walker (C1): it fetches sitemap XML,
// classifies each document as an Index or a Urlset, recurses into nested
// indexes through the shared Throttler, and emits every accepted page URL
// into the pipeline's URL channel.
package sitemapwalk

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/corvid-labs/sitescrape/counters"
	"github.com/corvid-labs/sitescrape/dedup"
	"github.com/corvid-labs/sitescrape/robots"
	"github.com/corvid-labs/sitescrape/scraper"
	"github.com/corvid-labs/sitescrape/seed"
	"github.com/corvid-labs/sitescrape/throttle"
)

// Logger is the minimal structured-logging surface the walker needs.
type Logger interface {
	Warn(msg string, keyvals ...any)
}

// Accept is the user-supplied URL filter, given the surrounding crawling
// context.
type Accept func(url string, ctx scraper.CrawlingContext) bool

func walkerWorkerID() string { return "walker" }

// Walker discovers page URLs from a Seed and pushes them into the URL
// channel, applying on_xml_error/on_dl_error policy along the way.
type Walker struct {
	fetch     func(ctx context.Context, url string) ([]byte, error)
	throttler *throttle.Throttler
	onDLErr   seed.ErrorPolicy
	onXMLErr  seed.ErrorPolicy
	counters  *counters.Counters
	dedup     *dedup.Tracker
	log       Logger
}

// New constructs a Walker. fetch performs a single HTTP GET (already
// wired with the crawler's user agent and gzip handling, see
// httpfetch.Get); it is throttled by the same Throttler the Download Pool
// uses, per the "Throttler reuse at two sites" design note.
func New(fetch func(ctx context.Context, url string) ([]byte, error), throttler *throttle.Throttler, onDLErr, onXMLErr seed.ErrorPolicy, c *counters.Counters, dd *dedup.Tracker, log Logger) *Walker {
	return &Walker{fetch: fetch, throttler: throttler, onDLErr: onDLErr, onXMLErr: onXMLErr, counters: c, dedup: dd, log: log}
}

// Walk discovers and pushes page URLs per s into urls, then returns. For a
// Pages seed it pushes the explicit list directly (bypassing sitemap
// discovery entirely, step 8). For a RobotsTxt seed, robot must already be
// the fetched robots.txt document; its sitemap: directives become the
// initial sitemap set, each filtered through accept (step 7). It does not
// close urls: the URL channel is multi-producer (this walker, plus any
// worker injecting discovered URLs via tx_url), so only the Supervisor,
// once every producer has quiesced, decides when no further sends are
// possible.
func (w *Walker) Walk(ctx context.Context, s seed.Seed, robot *robots.Robot, accept Accept, urls chan<- string) error {
	defer w.counters.MarkWalkerDone()

	switch s.Kind() {
	case seed.KindPages:
		for _, u := range s.PageURLs() {
			if err := w.push(ctx, u, urls); err != nil {
				return err
			}
		}
		return nil

	case seed.KindRobotsTxt:
		cctx := scraper.NewCrawlingContext(scraper.KindIndex, robot, walkerWorkerID)
		var seeds []string
		for _, sm := range robot.Sitemaps() {
			if accept(sm, cctx) {
				seeds = append(seeds, sm)
			}
		}
		return w.walkAll(ctx, seeds, robot, accept, urls)

	default: // seed.KindSitemaps
		return w.walkAll(ctx, s.SitemapURLs(), robot, accept, urls)
	}
}

// push sends a single accepted page URL into urls, bumping in_count before
// the send (and undoing it if the send is aborted) so in never trails out.
func (w *Walker) push(ctx context.Context, u string, urls chan<- string) error {
	w.counters.BumpIn()
	select {
	case urls <- u:
		return nil
	case <-ctx.Done():
		w.counters.DropIn()
		return ctx.Err()
	}
}

// walkAll recurses into every sitemap URL in sitemapURLs concurrently,
// each funneled through the shared Throttler by walkSitemap's fetch.
func (w *Walker) walkAll(ctx context.Context, sitemapURLs []string, robot *robots.Robot, accept Accept, urls chan<- string) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, u := range sitemapURLs {
		u := u
		eg.Go(func() error {
			return w.walkSitemap(egCtx, u, robot, accept, urls)
		})
	}
	return eg.Wait()
}

// walkSitemap fetches and classifies one sitemap document, then either
// pushes its page locations (Urlset) or recurses into its child sitemaps
// (Index), per §4.1 steps 2-6.
func (w *Walker) walkSitemap(ctx context.Context, sitemapURL string, robot *robots.Robot, accept Accept, urls chan<- string) error {
	if w.dedup != nil && w.dedup.SeenOrMark(sitemapURL) {
		return nil
	}

	body, err := throttle.Run(ctx, w.throttler, func(ctx context.Context) ([]byte, error) {
		return w.fetch(ctx, sitemapURL)
	})
	if err != nil {
		if w.onDLErr == seed.Fail {
			return fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
		}
		w.warn("sitemap fetch failed, skipping", sitemapURL, err)
		return nil
	}

	doc, err := parseXML(body)
	if err != nil {
		return w.xmlFailure("parse sitemap", sitemapURL, err)
	}

	kind, err := classifyRoot(doc)
	if err != nil {
		return w.xmlFailure("classify sitemap", sitemapURL, err)
	}

	locs, err := locURLs(doc)
	if err != nil {
		return w.xmlFailure("evaluate xpath on sitemap", sitemapURL, err)
	}

	cctx := scraper.NewCrawlingContext(kind, robot, walkerWorkerID)

	switch kind {
	case scraper.KindUrlset:
		for _, loc := range locs {
			if !accept(loc, cctx) {
				continue
			}
			if err := w.push(ctx, loc, urls); err != nil {
				return err
			}
		}
		return nil

	case scraper.KindIndex:
		var children []string
		for _, loc := range locs {
			if accept(loc, cctx) {
				children = append(children, loc)
			}
		}
		return w.walkAll(ctx, children, robot, accept, urls)

	default:
		return nil
	}
}

func (w *Walker) xmlFailure(stage, url string, err error) error {
	if w.onXMLErr == seed.Fail {
		return fmt.Errorf("%s %s: %w", stage, url, err)
	}
	w.warn(stage+" failed, skipping", url, err)
	return nil
}

func (w *Walker) warn(msg, url string, err error) {
	if w.log != nil {
		w.log.Warn(msg, "url", url, "err", err)
	}
}
