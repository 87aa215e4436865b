package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/metrics"
	"github.com/nao1215/sitecrawler/internal/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// newSite serves markup per path and 404 for anything else.
func newSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		markup, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(markup)) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newWeb starts two sites: "a" with two pages linking to "b", and "b" with one.
func newWeb(t *testing.T) (a, b *httptest.Server) {
	t.Helper()

	b = newSite(t, map[string]string{
		"/": "<html><title>B</title><p>site b</p></html>",
	})
	a = newSite(t, map[string]string{
		"/": `<html><title>A</title><p>site a</p>
			<a href="/about">About</a>
			<a href="` + b.URL + `/">B</a>
			<a href="mailto:me@example.com">Mail</a></html>`,
		"/about": "<html><title>About A</title><p>about a</p></html>",
	})
	return a, b
}

func newStore(t *testing.T) *database.CrawlDB {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newIndexer(t *testing.T, store database.Store, opts ...Option) *Indexer {
	t.Helper()

	client, err := crawler.NewHTTPClient()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return New(crawler.NewCrawler(client), store, opts...)
}

func counts(t *testing.T, store database.Store) (urls, docs int) {
	t.Helper()

	ctx := context.Background()
	urls, err := store.CountURLs(ctx)
	if err != nil {
		t.Fatalf("failed to count urls: %v", err)
	}
	docs, err = store.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("failed to count documents: %v", err)
	}
	return urls, docs
}

func assertCrawled(t *testing.T, store *database.CrawlDB, rawURL string, expected bool) {
	t.Helper()

	u, err := store.URL(context.Background(), rawURL)
	if err != nil {
		t.Fatalf("failed to get %s: %v", rawURL, err)
	}
	if u.Crawled != expected {
		t.Errorf("expected %s crawled=%v, got %v", rawURL, expected, u.Crawled)
	}
}

func TestIndexSite(t *testing.T) {
	t.Parallel()

	t.Run("with externals", func(t *testing.T) {
		t.Parallel()

		a, b := newWeb(t)
		store := newStore(t)
		m := metrics.New()
		ix := newIndexer(t, store, WithMetrics(m))

		res, err := ix.IndexSite(context.Background(), model.NewURL(a.URL+"/"), true, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.RunID == "" {
			t.Error("expected a run id")
		}
		if res.Pages != 2 || res.Documents != 2 || res.Externals != 1 {
			t.Errorf("expected 2 pages, 2 documents, 1 external, got %+v", res)
		}

		urls, docs := counts(t, store)
		if urls != 2 || docs != 2 {
			t.Errorf("expected 2 urls and 2 documents, got %d and %d", urls, docs)
		}
		assertCrawled(t, store, a.URL+"/", true)
		assertCrawled(t, store, b.URL+"/", false)

		expected := `
# HELP sitecrawler_documents_indexed_total Documents written to the store.
# TYPE sitecrawler_documents_indexed_total counter
sitecrawler_documents_indexed_total 2
# HELP sitecrawler_sites_indexed_total Sites fully indexed.
# TYPE sitecrawler_sites_indexed_total counter
sitecrawler_sites_indexed_total 1
`
		if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
			"sitecrawler_documents_indexed_total", "sitecrawler_sites_indexed_total"); err != nil {
			t.Errorf("unexpected metrics: %v", err)
		}
	})

	t.Run("without externals", func(t *testing.T) {
		t.Parallel()

		a, _ := newWeb(t)
		store := newStore(t)

		if _, err := newIndexer(t, store).IndexSite(context.Background(), model.NewURL(a.URL+"/"), false, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		urls, docs := counts(t, store)
		if urls != 1 || docs != 2 {
			t.Errorf("expected 1 url and 2 documents, got %d and %d", urls, docs)
		}
	})

	t.Run("keep rejects documents", func(t *testing.T) {
		t.Parallel()

		a, _ := newWeb(t)
		store := newStore(t)

		var seen []string
		keep := func(doc *model.Document) bool {
			seen = append(seen, doc.Title())
			return doc.Title() == "About A"
		}
		res, err := newIndexer(t, store).IndexSite(context.Background(), model.NewURL(a.URL+"/"), false, keep)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(seen) != 2 {
			t.Errorf("expected keep to see 2 documents, got %v", seen)
		}
		if res.Documents != 1 {
			t.Errorf("expected 1 stored document, got %d", res.Documents)
		}
		results, err := store.Search(context.Background(), "about", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 || results[0].Title() != "About A" {
			t.Errorf("expected only the about page to be stored, got %d results", len(results))
		}
	})

	t.Run("unreachable root is marked crawled", func(t *testing.T) {
		t.Parallel()

		srv := newSite(t, nil)
		root := srv.URL + "/"
		srv.Close()
		store := newStore(t)

		_, err := newIndexer(t, store).IndexSite(context.Background(), model.NewURL(root), true, nil)
		if !errors.Is(err, crawler.ErrRootNotCrawled) {
			t.Fatalf("expected ErrRootNotCrawled, got %v", err)
		}
		assertCrawled(t, store, root, true)
		if _, docs := counts(t, store); docs != 0 {
			t.Errorf("expected no documents, got %d", docs)
		}
	})
}

func TestIndexPage(t *testing.T) {
	t.Parallel()

	a, b := newWeb(t)
	store := newStore(t)

	res, err := newIndexer(t, store).IndexPage(context.Background(), model.NewURL(a.URL+"/"), true, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Documents != 1 || res.Externals != 1 {
		t.Errorf("expected 1 document and 1 external, got %+v", res)
	}
	assertCrawled(t, store, a.URL+"/", true)
	assertCrawled(t, store, b.URL+"/", false)
}

func TestIndexWeb(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T, store database.Store, rawURL string) {
		t.Helper()
		if _, err := store.InsertURLs(context.Background(), []model.URL{model.NewURL(rawURL)}); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}
	}

	t.Run("follows external sites", func(t *testing.T) {
		t.Parallel()

		a, b := newWeb(t)
		store := newStore(t)
		seed(t, store, a.URL+"/")

		web, err := newIndexer(t, store).IndexWeb(context.Background(), Unlimited, Unlimited)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if web.Sites != 2 || web.Documents != 3 {
			t.Errorf("expected 2 sites and 3 documents, got %d and %d", web.Sites, web.Documents)
		}
		if len(web.Results) != 2 {
			t.Errorf("expected 2 results, got %d", len(web.Results))
		}
		assertCrawled(t, store, a.URL+"/", true)
		assertCrawled(t, store, b.URL+"/", true)
	})

	t.Run("stops at max sites", func(t *testing.T) {
		t.Parallel()

		a, b := newWeb(t)
		store := newStore(t)
		seed(t, store, a.URL+"/")

		web, err := newIndexer(t, store).IndexWeb(context.Background(), 1, Unlimited)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if web.Sites != 1 {
			t.Errorf("expected 1 site, got %d", web.Sites)
		}
		assertCrawled(t, store, b.URL+"/", false)
	})

	t.Run("zero data limit indexes nothing", func(t *testing.T) {
		t.Parallel()

		a, _ := newWeb(t)
		store := newStore(t)
		seed(t, store, a.URL+"/")

		web, err := newIndexer(t, store).IndexWeb(context.Background(), Unlimited, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if web.Sites != 0 {
			t.Errorf("expected 0 sites, got %d", web.Sites)
		}
		assertCrawled(t, store, a.URL+"/", false)
		if urls, docs := counts(t, store); urls != 1 || docs != 0 {
			t.Errorf("expected 1 url and 0 documents, got %d and %d", urls, docs)
		}
	})

	t.Run("skips unusable urls", func(t *testing.T) {
		t.Parallel()

		srv := newSite(t, nil)
		dead := srv.URL + "/"
		srv.Close()
		store := newStore(t)
		seed(t, store, "ftp://files.example.com")
		seed(t, store, dead)

		web, err := newIndexer(t, store).IndexWeb(context.Background(), Unlimited, Unlimited)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if web.Sites != 0 {
			t.Errorf("expected 0 sites, got %d", web.Sites)
		}
		assertCrawled(t, store, "ftp://files.example.com", true)
		assertCrawled(t, store, dead, true)
	})
}
