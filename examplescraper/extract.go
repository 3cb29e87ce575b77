package examplescraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractLinks walks every anchor href in doc, resolves it against
// baseURL, filters out non-HTTP schemes and off-site hosts, normalizes
// it, and returns a deduplicated list of absolute URLs. It feeds the
// "tx_url re-entry" secondary crawl vector: FollowLinks hands the result
// to ScrapingContext.EmitURL, so discovering a link here means re-admitting
// it into the same crawl rather than visiting it from a separate program.
// Scoping to baseURL's own host keeps that re-entry from turning a single
// sitemap-seeded page into an unbounded walk of the open web.
func extractLinks(doc *goquery.Document, baseURL string) []string {
	host := ""
	if parsed, err := url.Parse(baseURL); err == nil {
		host = parsed.Hostname()
	}

	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}

		resolved, err := resolveAgainst(baseURL, href)
		if err != nil {
			return
		}
		if !isCrawlableScheme(resolved) {
			return
		}
		if host != "" && !sameCrawlHost(resolved, host) {
			return
		}
		canonical, err := canonicalizeForDedup(resolved)
		if err != nil {
			return
		}
		if !seen[canonical] {
			seen[canonical] = true
			links = append(links, canonical)
		}
	})

	return links
}

// resolveAgainst resolves a possibly-relative anchor href against the page
// it was found on. An already-absolute href is returned unchanged.
func resolveAgainst(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page URL %q: %w", pageURL, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// isCrawlableScheme reports whether a resolved href is something the
// Download Pool could actually fetch — this rules out mailto:, tel:,
// javascript:, and similar anchors goquery happily returns but the crawler
// has no business re-emitting as a URL.
func isCrawlableScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// sameCrawlHost reports whether targetURL's host is baseHost or a
// subdomain of it (e.g. a link to blog.example.com counts as on-site for a
// page fetched from example.com).
func sameCrawlHost(targetURL, baseHost string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	baseHost = strings.ToLower(baseHost)
	return host == baseHost || strings.HasSuffix(host, "."+baseHost)
}

// canonicalizeForDedup normalizes a resolved link so the same destination
// reached through two different hrefs on one page (e.g. a trailing slash
// or stray fragment) collapses to a single emitted URL: lowercases the
// scheme and host, drops the fragment, and strips a trailing slash from
// anything but the root path. Query parameters are preserved since they
// can select distinct page content.
func canonicalizeForDedup(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("cannot canonicalize empty URL")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("canonicalize URL %q: %w", rawURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("URL %q must have both scheme and host", rawURL)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}
