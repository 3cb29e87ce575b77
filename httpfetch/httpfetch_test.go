package httpfetch_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-labs/sitescrape/httpfetch"
)

func TestGetPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sitescrape-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	body, err := httpfetch.Get(context.Background(), srv.Client(), srv.URL, "sitescrape-test")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestGetGzipContentType(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write([]byte("gzipped body"))
	require.NoError(t, gw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	body, err := httpfetch.Get(context.Background(), srv.Client(), srv.URL, "sitescrape-test")
	require.NoError(t, err)
	assert.Equal(t, "gzipped body", string(body))
}

func TestGetGzipContentEncoding(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write([]byte("transport gzipped"))
	require.NoError(t, gw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	body, err := httpfetch.Get(context.Background(), srv.Client(), srv.URL, "sitescrape-test")
	require.NoError(t, err)
	assert.Equal(t, "transport gzipped", string(body))
}

func TestGetTranscodesNonUTF8HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte("<html><body>h\xe9llo</body></html>"))
	}))
	defer srv.Close()

	body, err := httpfetch.Get(context.Background(), srv.Client(), srv.URL, "sitescrape-test")
	require.NoError(t, err)
	assert.Contains(t, string(body), "héllo")
}

func TestGetLeavesNonHTMLBodyUntranscoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml; charset=iso-8859-1")
		_, _ = w.Write([]byte("<urlset>h\xe9llo</urlset>"))
	}))
	defer srv.Close()

	body, err := httpfetch.Get(context.Background(), srv.Client(), srv.URL, "sitescrape-test")
	require.NoError(t, err)
	assert.Equal(t, "<urlset>h\xe9llo</urlset>", string(body))
}

func TestGetStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := httpfetch.Get(context.Background(), srv.Client(), srv.URL, "sitescrape-test")
	require.Error(t, err)

	var statusErr *httpfetch.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}
