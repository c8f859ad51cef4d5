package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/factcheck/src/types"
)

func newTestService(t *testing.T, proxyBase string) *Service {
	t.Helper()
	return NewService(Config{
		Timeout:   3 * time.Second,
		ProxyBase: proxyBase,
	})
}

func TestExtractURLs(t *testing.T) {
	text := "See https://example.com/a, and (https://example.com/b). " +
		"Dup: HTTPS://example.com/a and ftp://ignored.example.com/x."

	urls := extractURLs(text, nil, 8)
	require.Len(t, urls, 2)
	assert.Equal(t, "https://example.com/a", urls[0].String())
	assert.Equal(t, "https://example.com/b", urls[1].String())
}

func TestExtractURLsHonorsLimitAndExtras(t *testing.T) {
	text := "https://a.example https://b.example https://c.example https://d.example"
	urls := extractURLs(text, []string{"https://e.example"}, 3)
	require.Len(t, urls, 3)

	urls = extractURLs("no links here", []string{"https://e.example/page"}, 3)
	require.Len(t, urls, 1)
	assert.Equal(t, "https://e.example/page", urls[0].String())
}

func TestRetrieveNoURLsMakesNoNetworkCalls(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(srv.Close)

	s := newTestService(t, srv.URL+"/")
	sources := s.Retrieve(context.Background(), "nothing to fetch here", nil, 5, nil)
	assert.Empty(t, sources)
	assert.Zero(t, calls.Load())
}

func TestRetrieveBlockedAndFetched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><title>Example Page</title><body><p>Some article text.</p></body></html>"))
	}))
	t.Cleanup(srv.Close)

	text := fmt.Sprintf("Check https://blocked.example.com/story and %s/article.", srv.URL)
	s := newTestService(t, "http://127.0.0.1:0/broken-proxy/")

	sources := s.Retrieve(context.Background(), text, nil, 5, []string{"example.com"})
	require.Len(t, sources, 2)

	byStatus := map[string]Source{}
	for _, src := range sources {
		byStatus[src.Status] = src
	}

	blocked, ok := byStatus[types.StatusBlocked]
	require.True(t, ok, "expected a blocked source")
	assert.Equal(t, "blocked.example.com", blocked.Title)
	assert.Contains(t, blocked.Excerpt, "blocked in extension settings")

	fetched, ok := byStatus[types.StatusFetchedDirect]
	require.True(t, ok, "expected a direct fetch")
	assert.Equal(t, "Example Page", fetched.Title)
	assert.Contains(t, fetched.Excerpt, "Some article text.")
}

func TestRetrieveSubdomainBlocked(t *testing.T) {
	s := newTestService(t, "http://127.0.0.1:0/")
	sources := s.Retrieve(context.Background(), "https://news.tracker.example/x", nil, 5, []string{".Tracker.example"})
	require.Len(t, sources, 1)
	assert.Equal(t, types.StatusBlocked, sources[0].Status)
}

func TestRetrieveProxyFallback(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(direct.Close)

	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Title: Proxied Article\n\nReadable text extracted by the proxy."))
	}))
	t.Cleanup(proxy.Close)

	s := newTestService(t, proxy.URL+"/")
	sources := s.Retrieve(context.Background(), direct.URL+"/paywalled", nil, 5, nil)
	require.Len(t, sources, 1)

	assert.Equal(t, types.StatusFetchedViaProxy, sources[0].Status)
	assert.Equal(t, "Proxied Article", sources[0].Title)
	assert.Contains(t, sources[0].Excerpt, "Readable text")
}

func TestRetrieveBothPathsFail(t *testing.T) {
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(direct.Close)

	s := newTestService(t, direct.URL+"/proxy/")
	sources := s.Retrieve(context.Background(), direct.URL+"/gone", nil, 5, nil)
	require.Len(t, sources, 1)
	assert.Equal(t, types.StatusFailed, sources[0].Status)
	assert.Contains(t, sources[0].Excerpt, "retrieval failed")
}

func TestRetrieveRejectsPDFAndEmptyBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "doc.pdf"):
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.7"))
		default:
			w.Header().Set("Content-Type", "text/plain")
			// blank body
		}
	}))
	t.Cleanup(srv.Close)

	s := newTestService(t, srv.URL+"/empty-proxy/")
	text := srv.URL + "/doc.pdf " + srv.URL + "/blank"
	sources := s.Retrieve(context.Background(), text, nil, 5, nil)
	require.Len(t, sources, 2)
	for _, src := range sources {
		assert.Equal(t, types.StatusFailed, src.Status, src.URL)
	}
}

func TestRetrieveCapsSources(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("plain text body"))
	}))
	t.Cleanup(srv.Close)

	text := fmt.Sprintf("%s/1 %s/2 %s/3 %s/4", srv.URL, srv.URL, srv.URL, srv.URL)
	s := newTestService(t, srv.URL+"/proxy/")
	sources := s.Retrieve(context.Background(), text, nil, 3, nil)
	assert.Len(t, sources, 3)
	assert.EqualValues(t, 3, calls.Load())
}

func TestBuildFromHTMLStripsScriptsAndTruncates(t *testing.T) {
	s := newTestService(t, "http://127.0.0.1:0/")
	long := strings.Repeat("word ", 1000)
	html := "<html><head><title>T &amp; C</title><script>alert(1)</script>" +
		"<style>body{}</style></head><body><p>" + long + "</p></body></html>"

	urls := extractURLs("https://example.org/page", nil, 1)
	require.Len(t, urls, 1)

	src := s.buildSource(urls[0], html, types.StatusFetchedDirect)
	assert.Equal(t, "T & C", src.Title)
	assert.NotContains(t, src.Excerpt, "alert")
	assert.NotContains(t, src.Excerpt, "<p>")
	assert.LessOrEqual(t, len([]rune(src.Excerpt)), 2203) // cap plus ellipsis
	assert.True(t, strings.HasSuffix(src.Excerpt, "..."))
}

func TestBuildFromTextUsesFirstLineAsTitle(t *testing.T) {
	s := newTestService(t, "http://127.0.0.1:0/")
	urls := extractURLs("https://example.org/txt", nil, 1)
	require.Len(t, urls, 1)

	src := s.buildSource(urls[0], "\n\nFirst Line Headline\nrest of body", types.StatusFetchedViaProxy)
	assert.Equal(t, "First Line Headline", src.Title)

	src = s.buildSource(urls[0], "no lines at all", types.StatusFetchedDirect)
	assert.Equal(t, "no lines at all", src.Title)
}
