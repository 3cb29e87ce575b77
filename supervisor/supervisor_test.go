package supervisor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sitescrape/examplescraper"
	"github.com/corvid-labs/sitescrape/scraper"
	"github.com/corvid-labs/sitescrape/seed"
	"github.com/corvid-labs/sitescrape/supervisor"
)

// memSink collects every record written to it; safe for concurrent use
// since the Supervisor serializes writes onto one consumer goroutine, but
// guarded anyway so the test itself can read it safely after Run returns.
type memSink struct {
	mu      sync.Mutex
	records []scraper.Record
	closed  bool
}

// Run drains records until the channel closes, recording each one; it
// never itself produces a write error, matching the zero-failure path of
// an in-memory sink.
func (s *memSink) Run(records <-chan scraper.Record, _ chan<- error) {
	for r := range records {
		s.mu.Lock()
		s.records = append(s.records, r)
		s.mu.Unlock()
	}
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) snapshot() []scraper.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]scraper.Record(nil), s.records...)
}

func TestRunSingleUrlsetProducesOneRecordPerPage(t *testing.T) {
	var mux http.ServeMux
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
			<url><loc>PLACEHOLDER/a</loc></url>
			<url><loc>PLACEHOLDER/b</loc></url>
			<url><loc>PLACEHOLDER/c</loc></url>
		</urlset>`))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html><body>a</body></html>")) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html><body>b</body></html>")) })
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html><body>c</body></html>")) })

	srv := httptest.NewServer(rewritePlaceholder(&mux))
	defer srv.Close()

	sinkImpl := &memSink{}
	sd := seed.Sitemaps(srv.URL + "/sitemap.xml")
	factory := examplescraper.New(examplescraper.Config{Seed: sd})

	cfg := seed.DefaultCrawlerConfig()
	cfg.NumWorkers = 2
	sup := supervisor.New(cfg, factory, sinkImpl, supervisor.WithHTTPClient(srv.Client()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := sup.Run(ctx)
	require.NoError(t, err)
	assert.True(t, result.WalkerDone)
	assert.Equal(t, result.InCount, result.OutCount)

	records := sinkImpl.snapshot()
	require.Len(t, records, 3)
	var urls []string
	for _, r := range records {
		urls = append(urls, r[0])
	}
	assert.ElementsMatch(t, []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}, urls)
	assert.True(t, sinkImpl.closed)
}

func TestRunRejectsInvalidSeedConfig(t *testing.T) {
	sd := seed.RobotsTxt("http://example.com/robots.txt")
	factory := examplescraper.New(examplescraper.Config{Seed: sd})

	cfg := seed.DefaultCrawlerConfig()
	cfg.RobotURL = "http://example.com/other-robots.txt"
	sup := supervisor.New(cfg, factory, &memSink{})

	_, err := sup.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot use RobotsTxt seed")
}

// rewritePlaceholder rewrites the literal string "PLACEHOLDER" in the
// sitemap response to the test server's own URL, which isn't known until
// after httptest.NewServer returns.
func rewritePlaceholder(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sitemap.xml" {
			h.ServeHTTP(w, r)
			return
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		body := strings.ReplaceAll(rec.Body.String(), "PLACEHOLDER", "http://"+r.Host)
		_, _ = w.Write([]byte(body))
	})
}
