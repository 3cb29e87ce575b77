// Package robots fetches and parses a single robots.txt document into a
// read-only policy shared by the sitemap walker and the scraping contexts.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

// Robot is an immutable, read-only robots.txt policy. It is safe for
// concurrent use by multiple goroutines once constructed; nothing mutates
// it after Fetch returns.
type Robot struct {
	group      *robotstxt.Group
	crawlDelay time.Duration
	hasDelay   bool
	sitemaps   []string
}

// Fetch downloads and parses the robots.txt document at robotsURL for the
// given user agent. It never returns a nil Robot. A 4xx or 5xx status
// yields a permissive Robot (allow everything, no crawl-delay) and a nil
// error. A request, network, or read failure, an unparseable body, or any
// other non-2xx status yields the same permissive Robot together with a
// descriptive error for the caller to log or act on.
func Fetch(ctx context.Context, client *http.Client, robotsURL, userAgent string) (*Robot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return permissive(), fmt.Errorf("build robots.txt request for %s: %w", robotsURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return permissive(), fmt.Errorf("fetch robots.txt %s: %w", robotsURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return permissive(), fmt.Errorf("read robots.txt %s: %w", robotsURL, err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return permissive(), fmt.Errorf("parse robots.txt %s: %w", robotsURL, err)
	}
	if data == nil {
		return permissive(), nil
	}

	return fromData(data, userAgent, robotsURL), nil
}

func fromData(data *robotstxt.RobotsData, userAgent, robotsURL string) *Robot {
	r := &Robot{group: data.FindGroup(userAgent)}
	if r.group != nil && r.group.CrawlDelay > 0 {
		r.crawlDelay = r.group.CrawlDelay
		r.hasDelay = true
	}
	base, err := url.Parse(robotsURL)
	for _, loc := range data.Sitemaps {
		trimmed := strings.TrimSpace(loc)
		if trimmed == "" {
			continue
		}
		if err == nil {
			if parsed, perr := url.Parse(trimmed); perr == nil && !parsed.IsAbs() {
				trimmed = base.ResolveReference(parsed).String()
			}
		}
		r.sitemaps = append(r.sitemaps, trimmed)
	}
	return r
}

// permissive returns a Robot that allows every URL and suggests no delay;
// used when robots.txt cannot be fetched or parsed (fail-open).
func permissive() *Robot {
	return &Robot{}
}

// Allowed reports whether rawURL is allowed by this policy. A nil Robot, or
// one with no matching group, allows everything.
func (r *Robot) Allowed(rawURL string) bool {
	if r == nil || r.group == nil {
		return true
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := parsed.EscapedPath()
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	if path == "" {
		path = "/"
	}
	return r.group.Test(path)
}

// CrawlDelay returns the robots.txt-suggested delay between requests and
// whether one was present. Used by CrawlerConfig's throttle default.
func (r *Robot) CrawlDelay() (time.Duration, bool) {
	if r == nil {
		return 0, false
	}
	return r.crawlDelay, r.hasDelay
}

// Sitemaps returns the sitemap: directives declared in the robots.txt
// document, absolute URLs, in file order. Used by the Seed::RobotsTxt path.
func (r *Robot) Sitemaps() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.sitemaps))
	copy(out, r.sitemaps)
	return out
}
