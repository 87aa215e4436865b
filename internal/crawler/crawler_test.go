package crawler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/nao1215/sitecrawler/internal/metrics"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCrawlURL(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]http.HandlerFunc{
		"/":      page(`<html><head><title>Home</title></head><body><a href="/about">About</a></body></html>`),
		"/old":   redirect(http.StatusMovedPermanently, "/"),
		"/empty": page(""),
	})

	t.Run("builds a document", func(t *testing.T) {
		t.Parallel()

		c := NewCrawler(newTestClient(t))
		doc, err := c.CrawlURL(context.Background(), model.NewURL(site.URL+"/"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc == nil {
			t.Fatal("expected a document")
		}
		if doc.Title() != "Home" {
			t.Errorf("expected title 'Home', got %q", doc.Title())
		}
		if !doc.URL().Crawled || doc.CrawledAt().IsZero() {
			t.Error("expected document url to be marked crawled")
		}
		if c.LastResponse() == nil || c.LastResponse().StatusCode != http.StatusOK {
			t.Errorf("expected last response with status 200, got %+v", c.LastResponse())
		}
	})

	t.Run("carries the final url after a redirect", func(t *testing.T) {
		t.Parallel()

		doc, err := NewCrawler(newTestClient(t)).CrawlURL(context.Background(), model.NewURL(site.URL+"/old"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc == nil || doc.URL().String() != site.URL+"/" {
			t.Errorf("expected document at %q, got %v", site.URL+"/", doc)
		}
	})

	t.Run("empty body yields no document but reaches the observer", func(t *testing.T) {
		t.Parallel()

		var seen *model.Document
		doc, err := NewCrawler(newTestClient(t)).CrawlURL(context.Background(), model.NewURL(site.URL+"/empty"),
			WithObserver(func(d *model.Document) error {
				seen = d
				return nil
			}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc != nil {
			t.Errorf("expected no document, got %v", doc.URL())
		}
		if seen == nil || !seen.IsEmpty() {
			t.Error("expected observer to see an empty document")
		}
		if seen != nil && !seen.URL().Crawled {
			t.Error("expected empty document url to be marked crawled")
		}
	})

	t.Run("redirect limit 0 rejects redirects", func(t *testing.T) {
		t.Parallel()

		c := NewCrawler(newTestClient(t), WithRedirectLimit(0))
		doc, err := c.CrawlURL(context.Background(), model.NewURL(site.URL+"/old"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if doc != nil {
			t.Error("expected no document")
		}
		if c.LastResponse() != nil {
			t.Error("expected no last response after a failed fetch")
		}
	})

	t.Run("rejects invalid url", func(t *testing.T) {
		t.Parallel()

		_, err := NewCrawler(newTestClient(t)).CrawlURL(context.Background(), model.NewURL("/relative"))
		if !errors.Is(err, model.ErrInvalidURL) {
			t.Errorf("expected ErrInvalidURL, got %v", err)
		}
	})

	t.Run("requires host when external redirects are disallowed", func(t *testing.T) {
		t.Parallel()

		_, err := NewCrawler(newTestClient(t)).CrawlURL(context.Background(), model.NewURL(site.URL+"/"),
			WithFollowExternalRedirects(false))
		if !errors.Is(err, ErrHostRequired) {
			t.Errorf("expected ErrHostRequired, got %v", err)
		}
	})

	t.Run("propagates observer errors", func(t *testing.T) {
		t.Parallel()

		errStop := errors.New("stop")
		_, err := NewCrawler(newTestClient(t)).CrawlURL(context.Background(), model.NewURL(site.URL+"/"),
			WithObserver(func(*model.Document) error { return errStop }))
		if !errors.Is(err, errStop) {
			t.Errorf("expected observer error, got %v", err)
		}
	})
}

func TestCrawlURLs(t *testing.T) {
	t.Parallel()

	site := newTestSite(t, map[string]http.HandlerFunc{
		"/one": page("<title>One</title>"),
		"/two": page("<title>Two</title>"),
	})

	var titles []string
	last, err := NewCrawler(newTestClient(t)).CrawlURLs(context.Background(),
		[]model.URL{
			model.NewURL(site.URL + "/one"),
			model.NewURL(site.URL + "/two"),
			model.NewURL(site.URL + "/missing-but-404-has-body"),
		},
		func(d *model.Document) error {
			titles = append(titles, d.Title())
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(titles) != 3 {
		t.Errorf("expected 3 observed documents, got %d", len(titles))
	}
	if last == nil || last.URL().String() != site.URL+"/missing-but-404-has-body" {
		t.Errorf("expected the last document to be returned, got %v", last)
	}
}

// siteRoutes builds a small site:
//
//	/            -> /about /blog/ /blog /docs/manual.pdf /old /contact.html#form /leave + externals
//	/about       -> / /team.html + external
//	/blog/       -> /about /blog/post-1
//	/blog/post-1 -> /moved
//	/old         -> 301 /moved
//	/leave       -> 302 other host
func siteRoutes(otherHost string) map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/": page(`<html><body>
			<a href="/about">About</a>
			<a href="/blog/">Blog</a>
			<a href="/blog">Blog again</a>
			<a href="/docs/manual.pdf">Manual</a>
			<a href="/old">Old</a>
			<a href="/contact.html#form">Contact</a>
			<a href="/leave">Leave</a>
			<a href="http://external.com/x">External</a>
			<a href="https://other.org/">Other</a>
			<a href="mailto:me@example.com">Mail</a>
		</body></html>`),
		"/about": page(`<html><body>
			<a href="/">Home</a>
			<a href="team.html">Team</a>
			<a href="https://other.org">Other</a>
		</body></html>`),
		"/blog/":           page(`<html><body><a href="/about">About</a><a href="post-1">Post</a></body></html>`),
		"/blog/post-1":     page(`<html><body><p>Post</p><a href="/moved">Moved</a></body></html>`),
		"/old":             redirect(http.StatusMovedPermanently, "/moved"),
		"/moved":           page(`<html><body><p>Moved here</p></body></html>`),
		"/contact.html":    page(`<html><body><p>Contact</p></body></html>`),
		"/team.html":       page(`<html><body><p>Team</p></body></html>`),
		"/docs/manual.pdf": page(`%PDF`),
		"/leave":           redirect(http.StatusFound, otherHost+"/landing"),
	}
}

func TestCrawlSite(t *testing.T) {
	t.Parallel()

	other := newTestSite(t, map[string]http.HandlerFunc{"/landing": page("<p>elsewhere</p>")})
	site := newTestSite(t, siteRoutes(other.URL))

	m := metrics.New()
	c := NewCrawler(newTestClient(t), WithMetrics(m))

	var docs []*model.Document
	state, err := c.crawlSite(context.Background(), model.NewURL(site.URL), func(d *model.Document) error {
		docs = append(docs, d)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("crawls every internal page once", func(t *testing.T) {
		for _, path := range []string{"/", "/about", "/blog/", "/blog/post-1", "/old", "/moved", "/contact.html", "/team.html", "/leave"} {
			if got := site.hitCount(path); got != 1 {
				t.Errorf("expected 1 request to %s, got %d", path, got)
			}
		}
	})

	t.Run("skips disallowed extensions and slash variants", func(t *testing.T) {
		if got := site.hitCount("/docs/manual.pdf"); got != 0 {
			t.Errorf("expected pdf not to be requested, got %d", got)
		}
		if got := site.hitCount("/blog"); got != 0 {
			t.Errorf("expected /blog to be treated as /blog/, got %d requests", got)
		}
	})

	t.Run("does not follow redirects off the site", func(t *testing.T) {
		if got := other.hitCount("/landing"); got != 0 {
			t.Errorf("expected other host not to be requested, got %d", got)
		}
	})

	t.Run("records pre and post redirect urls", func(t *testing.T) {
		for _, path := range []string{"/old", "/moved", "/leave"} {
			if !state.isCrawled(model.NewURL(site.URL + path)) {
				t.Errorf("expected %s to be recorded as crawled", path)
			}
		}
	})

	t.Run("observer sees every crawl", func(t *testing.T) {
		if len(docs) != 8 {
			t.Errorf("expected 8 documents, got %d", len(docs))
		}
		empty := 0
		for _, d := range docs {
			if d.IsEmpty() {
				empty++
			}
		}
		if empty != 1 {
			t.Errorf("expected 1 empty document for the rejected redirect, got %d", empty)
		}
	})

	t.Run("returns unique externals in order", func(t *testing.T) {
		got := model.URLStrings(state.externals)
		expected := []string{"http://external.com/x", "https://other.org"}
		if len(got) != len(expected) {
			t.Fatalf("expected %v, got %v", expected, got)
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Errorf("expected %v, got %v", expected, got)
			}
		}
	})

	t.Run("records metrics", func(t *testing.T) {
		n, err := testutil.GatherAndCount(m.Registry(), "sitecrawler_pages_total")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 2 {
			t.Errorf("expected ok and failed page series, got %d", n)
		}
	})
}

func TestCrawlSiteRootRedirect(t *testing.T) {
	t.Parallel()

	target := newTestSite(t, map[string]http.HandlerFunc{
		"/":     page(`<html><body><a href="/inner">Inner</a></body></html>`),
		"/inner": page(`<html><body><p>Inner</p></body></html>`),
	})
	entry := newTestSite(t, map[string]http.HandlerFunc{
		"/": redirect(http.StatusMovedPermanently, target.URL+"/"),
	})

	_, err := NewCrawler(newTestClient(t)).CrawlSite(context.Background(), model.NewURL(entry.URL), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := target.hitCount("/inner"); got != 1 {
		t.Errorf("expected the redirected host to be crawled, got %d requests to /inner", got)
	}
}

func TestCrawlSiteFailures(t *testing.T) {
	t.Parallel()

	t.Run("root without content", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]http.HandlerFunc{"/": page("")})
		externals, err := NewCrawler(newTestClient(t)).CrawlSite(context.Background(), model.NewURL(site.URL), nil)
		if !errors.Is(err, ErrRootNotCrawled) {
			t.Errorf("expected ErrRootNotCrawled, got %v", err)
		}
		if externals != nil {
			t.Errorf("expected no externals, got %v", externals)
		}
	})

	t.Run("page without links", func(t *testing.T) {
		t.Parallel()

		site := newTestSite(t, map[string]http.HandlerFunc{
			"/": page(`<html><body><a href="https://elsewhere.net">x</a></body></html>`),
		})
		externals, err := NewCrawler(newTestClient(t)).CrawlSite(context.Background(), model.NewURL(site.URL), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(externals) != 1 || externals[0].String() != "https://elsewhere.net" {
			t.Errorf("expected [https://elsewhere.net], got %v", externals)
		}
		if site.totalHits() != 1 {
			t.Errorf("expected 1 request, got %d", site.totalHits())
		}
	})

	for _, href := range []string{"/sale-50%off", "sms:12345"} {
		t.Run("malformed internal link "+href, func(t *testing.T) {
			t.Parallel()

			site := newTestSite(t, map[string]http.HandlerFunc{
				"/": page(`<html><body>
					<a href="` + href + `">bad</a>
					<a href="/a">A</a>
					<a href="https://other.com">Other</a>
				</body></html>`),
				"/a": page(`<html><body><p>A</p></body></html>`),
			})
			externals, err := NewCrawler(newTestClient(t)).CrawlSite(context.Background(), model.NewURL(site.URL), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := site.hitCount("/a"); got != 1 {
				t.Errorf("expected 1 request to /a, got %d", got)
			}
			if len(externals) != 1 || externals[0].String() != "https://other.com" {
				t.Errorf("expected [https://other.com], got %v", externals)
			}
		})
	}

	t.Run("observer error aborts", func(t *testing.T) {
		t.Parallel()

		other := newTestSite(t, nil)
		site := newTestSite(t, siteRoutes(other.URL))
		errStop := errors.New("stop")
		calls := 0

		_, err := NewCrawler(newTestClient(t)).CrawlSite(context.Background(), model.NewURL(site.URL),
			func(*model.Document) error {
				calls++
				if calls == 2 {
					return errStop
				}
				return nil
			})
		if !errors.Is(err, errStop) {
			t.Errorf("expected observer error, got %v", err)
		}
		if site.totalHits() != 2 {
			t.Errorf("expected crawl to stop after 2 requests, got %d", site.totalHits())
		}
	})

	t.Run("context cancellation aborts", func(t *testing.T) {
		t.Parallel()

		other := newTestSite(t, nil)
		site := newTestSite(t, siteRoutes(other.URL))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		_, err := NewCrawler(newTestClient(t)).CrawlSite(ctx, model.NewURL(site.URL),
			func(*model.Document) error {
				cancel()
				return nil
			})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if site.totalHits() != 1 {
			t.Errorf("expected only the root to be requested, got %d", site.totalHits())
		}
	})
}

func TestCrawlableLinks(t *testing.T) {
	t.Parallel()

	doc, err := model.NewDocument(model.HTMLSource{
		URL: model.NewURL("http://example.com/dir/"),
		Markup: `<html><body>
			<a href="a.html#top">A</a>
			<a href="a.html">A again</a>
			<a href="b.HTM">B</a>
			<a href="c.php">C</a>
			<a href="/img/logo.png">Logo</a>
			<a href="/plain">Plain</a>
			<a href="#section">Section</a>
			<a href="http://other.com/d.html">Other</a>
		</body></html>`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("default extensions", func(t *testing.T) {
		t.Parallel()

		got := model.URLStrings(NewCrawler(nil).crawlableLinks(doc))
		expected := []string{
			"http://example.com/dir/a.html",
			"http://example.com/dir/b.HTM",
			"http://example.com/plain",
			"http://example.com/dir/",
		}
		if len(got) != len(expected) {
			t.Fatalf("expected %v, got %v", expected, got)
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Errorf("expected %v, got %v", expected, got)
			}
		}
	})

	t.Run("custom extensions", func(t *testing.T) {
		t.Parallel()

		got := model.URLStrings(NewCrawler(nil, WithAllowedExtensions(".PHP")).crawlableLinks(doc))
		expected := []string{
			"http://example.com/dir/c.php",
			"http://example.com/plain",
			"http://example.com/dir/",
		}
		if len(got) != len(expected) {
			t.Fatalf("expected %v, got %v", expected, got)
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Errorf("expected %v, got %v", expected, got)
			}
		}
	})
}
