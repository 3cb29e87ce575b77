// Package examplescraper is a reference Scraper (X1) implementation: it
// demonstrates the external contract sitemapwalk and worker consume,
// extracting a simple tabular record (URL, title, word count, link
// count) from each page with goquery, and opportunistically feeding
// discovered same-site links back into the crawl through EmitURL —
// the "tx_url re-entry" secondary crawl vector the design notes call out.
package examplescraper

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corvid-labs/sitescrape/scraper"
	"github.com/corvid-labs/sitescrape/seed"
)

// Header is the field order Scrap emits; callers that write a CSV header
// row use this directly.
var Header = scraper.Record{"url", "title", "word_count", "link_count"}

// AcceptFunc is a user-overridable URL filter; nil means "allowed by
// robots.txt, if any".
type AcceptFunc func(url string, ctx scraper.CrawlingContext) bool

// Config configures one run's worth of Scraper instances.
type Config struct {
	Seed seed.Seed
	// Accept overrides the default accept-everything-robots-allows
	// predicate.
	Accept AcceptFunc
	// FollowLinks, when true, feeds the page's http(s) anchor hrefs on the
	// page's own host or its subdomains (resolved, canonicalized,
	// deduplicated, and allowed by robots.txt) back into the crawl via
	// ScrapingContext.EmitURL, demonstrating content-driven
	// secondary discovery (see the tx_url re-entry design note). Off by
	// default: sitemap-seeded crawls rarely want unbounded link-following.
	FollowLinks bool
}

// Scraper is the per-worker instance; New returns a Factory constructing
// one per worker thread plus one for the walker's own Seed/Accept calls.
type Scraper struct {
	cfg Config
}

// New returns a scraper.Factory producing Scraper instances sharing cfg.
// cfg.Seed is immutable configuration, not per-instance state, so sharing
// it across every constructed Scraper is safe.
func New(cfg Config) scraper.Factory {
	return func() (scraper.Scraper, error) {
		return &Scraper{cfg: cfg}, nil
	}
}

// Seed returns the run's configured starting point.
func (s *Scraper) Seed() (seed.Seed, error) {
	return s.cfg.Seed, nil
}

// Accept applies the configured filter, defaulting to "robots.txt
// allows it" when none is set.
func (s *Scraper) Accept(url string, ctx scraper.CrawlingContext) bool {
	if s.cfg.Accept != nil {
		return s.cfg.Accept(url, ctx)
	}
	return ctx.Allowed(url)
}

// Scrap parses page.Body as HTML and emits one record of
// [url, title, word_count, link_count].
func (s *Scraper) Scrap(page scraper.Page, ctx scraper.ScrapingContext) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return fmt.Errorf("parse html %s: %w", page.Location, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	wordCount := len(strings.Fields(doc.Find("body").Text()))
	linkCount := doc.Find("a[href]").Length()

	record := scraper.Record{
		page.Location.String(),
		title,
		strconv.Itoa(wordCount),
		strconv.Itoa(linkCount),
	}
	if err := ctx.EmitRecord(record); err != nil {
		return fmt.Errorf("emit record for %s: %w", page.Location, err)
	}

	if s.cfg.FollowLinks && page.Location.IsURL() {
		for _, link := range extractLinks(doc, page.Location.URL) {
			if ctx.Allowed(link) {
				ctx.EmitURL(link)
			}
		}
	}
	return nil
}

// Finalizer has nothing to clean up; the reference scraper holds no
// per-run resources of its own.
func (s *Scraper) Finalizer() {}
