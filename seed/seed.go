// Package seed defines a run's starting point and the crawler-wide tuning
// options (§3 of the specification this module implements).
package seed

import (
	"fmt"
	"runtime"

	"github.com/corvid-labs/sitescrape/throttle"
)

// Kind discriminates the three mutually-exclusive Seed variants.
type Kind int

const (
	KindSitemaps Kind = iota
	KindPages
	KindRobotsTxt
)

// Seed is exactly one of Sitemaps{urls}, Pages{urls}, RobotsTxt{url}.
type Seed struct {
	kind        Kind
	sitemapURLs []string
	pageURLs    []string
	robotsURL   string
}

// Sitemaps seeds a run from a set of sitemap URLs.
func Sitemaps(urls ...string) Seed {
	return Seed{kind: KindSitemaps, sitemapURLs: append([]string(nil), urls...)}
}

// Pages seeds a run directly from explicit page URLs, skipping sitemap
// discovery entirely.
func Pages(urls ...string) Seed {
	return Seed{kind: KindPages, pageURLs: append([]string(nil), urls...)}
}

// RobotsTxt seeds a run by first fetching robotsURL and walking the
// sitemap: directives it declares.
func RobotsTxt(url string) Seed {
	return Seed{kind: KindRobotsTxt, robotsURL: url}
}

func (s Seed) Kind() Kind            { return s.kind }
func (s Seed) SitemapURLs() []string { return s.sitemapURLs }
func (s Seed) PageURLs() []string    { return s.pageURLs }
func (s Seed) RobotsURL() string     { return s.robotsURL }

// ErrorPolicy names the two failure-handling strategies applicable to
// download, XML, and scrape errors.
type ErrorPolicy int

const (
	// SkipAndLog logs the error and continues; in-flight counters are
	// adjusted so the quiescence invariant still holds.
	SkipAndLog ErrorPolicy = iota
	// Fail aborts the whole run at the first occurrence.
	Fail
)

func (p ErrorPolicy) String() string {
	if p == Fail {
		return "fail"
	}
	return "skip_and_log"
}

// CrawlerConfig holds the recognized tuning options, with the documented
// defaults and cross-field constraints.
type CrawlerConfig struct {
	UserAgent     string
	PageBuffer    int
	Throttle      *throttle.Policy // nil = unset; resolved against robots.txt or Concurrent(100)
	NumWorkers    int
	OnDownloadErr ErrorPolicy
	OnXMLErr      ErrorPolicy
	OnScrapErr    ErrorPolicy
	RobotURL      string // override; "" = unset
}

// DefaultCrawlerConfig returns a CrawlerConfig with every documented
// default applied; Throttle is left unset so the caller can resolve it
// against robots.txt before falling back to Concurrent(100).
func DefaultCrawlerConfig() CrawlerConfig {
	return CrawlerConfig{
		UserAgent:     "SWSbot",
		PageBuffer:    10_000,
		NumWorkers:    defaultNumWorkers(),
		OnDownloadErr: SkipAndLog,
		OnXMLErr:      SkipAndLog,
		OnScrapErr:    SkipAndLog,
	}
}

func defaultNumWorkers() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// Validate enforces the invariants from §3: exactly one seed kind (checked
// by construction), RobotsTxt seed incompatible with a robot override, and
// strictly positive concurrency/rate values.
func (c CrawlerConfig) Validate(s Seed) error {
	if s.Kind() == KindRobotsTxt && c.RobotURL != "" {
		return fmt.Errorf("Invalid seed config, cannot use RobotsTxt seed when the robot URL is also configured")
	}
	if c.PageBuffer < 1 {
		return fmt.Errorf("page_buffer must be >= 1, got %d", c.PageBuffer)
	}
	if c.NumWorkers < 1 {
		return fmt.Errorf("num_workers must be >= 1, got %d", c.NumWorkers)
	}
	if c.Throttle != nil {
		if err := c.Throttle.Validate(); err != nil {
			return fmt.Errorf("invalid throttle: %w", err)
		}
	}
	return nil
}

// ResolvedUserAgent returns the configured user agent or the default.
func (c CrawlerConfig) ResolvedUserAgent() string {
	if c.UserAgent == "" {
		return "SWSbot"
	}
	return c.UserAgent
}
