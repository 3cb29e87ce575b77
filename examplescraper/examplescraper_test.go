package examplescraper_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sitescrape/examplescraper"
	"github.com/corvid-labs/sitescrape/scraper"
	"github.com/corvid-labs/sitescrape/seed"
)

func newScrapingContext(loc scraper.PageLocation, records *[]scraper.Record, urls *[]string) scraper.ScrapingContext {
	emitRecord := func(r scraper.Record) error {
		*records = append(*records, r)
		return nil
	}
	emitURL := func(u string) bool {
		*urls = append(*urls, u)
		return true
	}
	return scraper.NewScrapingContext(loc, nil, "0", emitRecord, emitURL)
}

func TestScrapEmitsTitleWordAndLinkCounts(t *testing.T) {
	factory := examplescraper.New(examplescraper.Config{Seed: seed.Pages("http://example.com/a")})
	s, err := factory()
	require.NoError(t, err)

	page := scraper.Page{
		Body: `<html><head><title> Hello </title></head>
			<body>one two three <a href="/b">b</a></body></html>`,
		Location: scraper.PageLocation{URL: "http://example.com/a"},
	}

	var records []scraper.Record
	var urls []string
	ctx := newScrapingContext(page.Location, &records, &urls)

	require.NoError(t, s.Scrap(page, ctx))
	require.Len(t, records, 1)
	assert.Equal(t, "http://example.com/a", records[0][0])
	assert.Equal(t, "Hello", records[0][1])
	assert.Equal(t, "4", records[0][2])
	assert.Equal(t, "1", records[0][3])
	assert.Empty(t, urls)
}

func TestScrapFollowLinksEmitsDiscoveredURLs(t *testing.T) {
	factory := examplescraper.New(examplescraper.Config{
		Seed:        seed.Pages("http://example.com/a"),
		FollowLinks: true,
	})
	s, err := factory()
	require.NoError(t, err)

	page := scraper.Page{
		Body:     `<html><body><a href="/b">b</a><a href="mailto:x@example.com">mail</a></body></html>`,
		Location: scraper.PageLocation{URL: "http://example.com/a"},
	}

	var records []scraper.Record
	var urls []string
	ctx := newScrapingContext(page.Location, &records, &urls)

	require.NoError(t, s.Scrap(page, ctx))
	require.Len(t, urls, 1)
	assert.Equal(t, "http://example.com/b", urls[0])
}

func TestScrapFollowLinksSkipsOffSiteHrefs(t *testing.T) {
	factory := examplescraper.New(examplescraper.Config{
		Seed:        seed.Pages("http://example.com/a"),
		FollowLinks: true,
	})
	s, err := factory()
	require.NoError(t, err)

	page := scraper.Page{
		Body:     `<html><body><a href="/b">same</a><a href="http://other.test/c">other</a></body></html>`,
		Location: scraper.PageLocation{URL: "http://example.com/a"},
	}

	var records []scraper.Record
	var urls []string
	ctx := newScrapingContext(page.Location, &records, &urls)

	require.NoError(t, s.Scrap(page, ctx))
	require.Len(t, urls, 1)
	assert.Equal(t, "http://example.com/b", urls[0])
}

func TestSeedReturnsConfiguredSeed(t *testing.T) {
	factory := examplescraper.New(examplescraper.Config{Seed: seed.Sitemaps("http://example.com/sitemap.xml")})
	s, err := factory()
	require.NoError(t, err)

	sd, err := s.Seed()
	require.NoError(t, err)
	assert.Equal(t, seed.KindSitemaps, sd.Kind())
}

func TestAcceptDefaultsToRobotsAllowed(t *testing.T) {
	factory := examplescraper.New(examplescraper.Config{Seed: seed.Pages()})
	s, err := factory()
	require.NoError(t, err)

	cctx := scraper.NewCrawlingContext(scraper.KindUrlset, nil, func() string { return "walker" })
	assert.True(t, s.Accept("http://example.com/anything", cctx))
}
