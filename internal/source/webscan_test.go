package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWebScan(t *testing.T, handler http.Handler) *WebScan {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWebScan(WebScanConfig{
		Name:    "testsite",
		BaseURL: srv.URL,
		Retries: 1,
	}, srv.Client(), zap.NewNop())
}

const searchHTML = `<html><body>
	<div class="search-story-item"><a href="/manga/kingdom" title="Kingdom"></a><img src="/covers/kingdom.jpg"></div>
	<div class="search-story-item"><a href="/manga/vinland-saga">Vinland Saga</a></div>
</body></html>`

func TestWebScanSearch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "kingdom", r.URL.Query().Get("q"))
		fmt.Fprint(w, searchHTML)
	})

	ws := newTestWebScan(t, mux)
	results, err := ws.Search(context.Background(), "kingdom")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "kingdom", results[0].SourceID)
	assert.Equal(t, "Kingdom", results[0].Title)
	assert.Contains(t, results[0].CoverURL, "/covers/kingdom.jpg")
	assert.Equal(t, "vinland-saga", results[1].SourceID)
	assert.Equal(t, "Vinland Saga", results[1].Title)
}

func TestWebScanSearchFallsBackToAlternateEndpoint(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("s") == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, searchHTML)
	})

	ws := newTestWebScan(t, mux)
	results, err := ws.Search(context.Background(), "kingdom")
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestWebScanSearchNoMarkupMeansEmpty(t *testing.T) {
	t.Parallel()

	ws := newTestWebScan(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing here</p></body></html>`)
	}))

	results, err := ws.Search(context.Background(), "kingdom")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWebScanSelectorChainFallback(t *testing.T) {
	t.Parallel()

	// Markup matches the second candidate selector, not the first.
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="story_item"><a href="/manga/berserk" title="Berserk"></a></div>
		</body></html>`)
	})

	ws := newTestWebScan(t, mux)
	results, err := ws.Search(context.Background(), "berserk")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "berserk", results[0].SourceID)
}

func TestWebScanGetDetails(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/manga/kingdom", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<span class="info-image"><img src="//cdn.example.com/kingdom.jpg"></span>
			<div class="story-info-right"><h1>Kingdom</h1></div>
			<div class="panel-story-info-description">War in ancient China.</div>
			<ul class="row-content-chapter">
				<li><a href="/chapter/kingdom-chapter-3">Chapter 3</a></li>
				<li><a href="/chapter/kingdom-chapter-2">Chapter 2</a></li>
				<li><a href="/chapter/kingdom-chapter-1">Chapter 1</a></li>
			</ul>
		</body></html>`)
	})

	ws := newTestWebScan(t, mux)
	manga, chapters, err := ws.GetDetails(context.Background(), "kingdom")
	require.NoError(t, err)

	assert.Equal(t, "Kingdom", manga.Title)
	assert.Equal(t, "War in ancient China.", manga.Description)
	assert.Equal(t, "https://cdn.example.com/kingdom.jpg", manga.CoverURL)
	assert.Equal(t, "testsite", manga.SourceName)
	assert.Equal(t, "kingdom", manga.SourceID)

	// Site lists newest first; the adapter flips to ascending.
	require.Len(t, chapters, 3)
	assert.Equal(t, "1", chapters[0].Number)
	assert.Equal(t, "kingdom-chapter-1", chapters[0].SourceID)
	assert.Equal(t, "3", chapters[2].Number)
}

func TestWebScanGetDetailsPropagatesFailure(t *testing.T) {
	t.Parallel()

	ws := newTestWebScan(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, _, err := ws.GetDetails(context.Background(), "kingdom")
	require.Error(t, err)
}

func TestWebScanGetLatestChaptersBounded(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/manga/kingdom", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="story-info-right"><h1>Kingdom</h1></div>
			<ul class="row-content-chapter">
				<li><a href="/chapter/c4">Chapter 4</a></li>
				<li><a href="/chapter/c3">Chapter 3</a></li>
				<li><a href="/chapter/c2">Chapter 2</a></li>
				<li><a href="/chapter/c1">Chapter 1</a></li>
			</ul>
		</body></html>`)
	})

	ws := newTestWebScan(t, mux)
	chapters, err := ws.GetLatestChapters(context.Background(), "kingdom", 2)
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, "3", chapters[0].Number)
	assert.Equal(t, "4", chapters[1].Number)
}

func TestAbsoluteURL(t *testing.T) {
	t.Parallel()

	ws := NewWebScan(WebScanConfig{Name: "x", BaseURL: "https://example.com"}, nil, zap.NewNop())

	assert.Equal(t, "https://other.com/a.jpg", ws.absoluteURL("https://other.com/a.jpg"))
	assert.Equal(t, "https://cdn.example.com/a.jpg", ws.absoluteURL("//cdn.example.com/a.jpg"))
	assert.Equal(t, "https://example.com/covers/a.jpg", ws.absoluteURL("/covers/a.jpg"))
	assert.Equal(t, "https://example.com/covers/a.jpg", ws.absoluteURL("covers/a.jpg"))
	assert.Equal(t, "", ws.absoluteURL(""))
}

func TestIDFromURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "kingdom", idFromURL("https://example.com/manga/kingdom"))
	assert.Equal(t, "kingdom", idFromURL("https://example.com/manga/kingdom/"))
	assert.Equal(t, "c-10-5", idFromURL("/chapter/c-10-5"))
	assert.Equal(t, "", idFromURL("https://example.com/"))
}
