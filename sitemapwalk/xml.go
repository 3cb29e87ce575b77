package sitemapwalk

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/corvid-labs/sitescrape/scraper"
)

// sitemapNS is the XML namespace every conforming sitemap document and
// sitemap index declares; <loc> is looked up through it rather than by a
// bare local-name match so a document that mixes in a foreign namespace
// (e.g. image: or news: extensions) is still navigated correctly.
const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

var locExpr = mustCompile("//sm:loc")

func mustCompile(expr string) *xpath.Expr {
	compiled, err := xpath.CompileWithNS(expr, map[string]string{"sm": sitemapNS})
	if err != nil {
		panic(fmt.Sprintf("sitemapwalk: invalid built-in xpath %q: %v", expr, err))
	}
	return compiled
}

// parseXML parses a sitemap or sitemap-index document's body.
func parseXML(body []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return doc, nil
}

// classifyRoot inspects the document's root element to decide whether it's
// a <sitemapindex> (pointing at more sitemaps) or a <urlset> (pointing at
// pages). The bare local-name lookup here, unlike locURLs, deliberately
// ignores namespace so a document that forgets to declare the sitemap
// namespace is still classified correctly.
func classifyRoot(doc *xmlquery.Node) (scraper.SitemapKind, error) {
	root := xmlquery.FindOne(doc, "/*")
	if root == nil {
		return scraper.KindUnknown, fmt.Errorf("document has no root element")
	}
	switch root.Data {
	case "urlset":
		return scraper.KindUrlset, nil
	case "sitemapindex":
		return scraper.KindIndex, nil
	default:
		return scraper.KindUnknown, fmt.Errorf("unrecognized root element %q", root.Data)
	}
}

// locURLs evaluates //sm:loc against doc and returns the trimmed, non-empty
// results in document order. It applies identically whether the document
// is a <urlset> (page locations) or a <sitemapindex> (child sitemap
// locations) — the caller distinguishes by classifyRoot's result.
func locURLs(doc *xmlquery.Node) ([]string, error) {
	nav := xmlquery.CreateXPathNavigator(doc)
	iter := locExpr.Select(nav)

	var out []string
	for iter.MoveNext() {
		loc := strings.TrimSpace(iter.Current().Value())
		if loc != "" {
			out = append(out, loc)
		}
	}
	return out, nil
}
