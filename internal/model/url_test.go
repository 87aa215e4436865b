package model

import (
	"errors"
	"testing"
	"time"
)

func TestNewURL(t *testing.T) {
	t.Parallel()

	u := NewURL("  http://www.example.co.uk/about.html ")
	if u.String() != "http://www.example.co.uk/about.html" {
		t.Errorf("expected trimmed url, got %q", u.String())
	}
	if u.Crawled {
		t.Error("expected new url to be uncrawled")
	}
	if !u.CrawledAt.IsZero() {
		t.Errorf("expected zero crawl time, got %v", u.CrawledAt)
	}
}

func TestURLFromRecord(t *testing.T) {
	t.Parallel()

	t.Run("reads crawl state", func(t *testing.T) {
		t.Parallel()

		ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		u, err := URLFromRecord(Record{"url": "http://example.com", "crawled": true, "date_crawled": ts})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u.String() != "http://example.com" {
			t.Errorf("expected url 'http://example.com', got %q", u.String())
		}
		if !u.Crawled {
			t.Error("expected url to be crawled")
		}
		if !u.CrawledAt.Equal(ts) {
			t.Errorf("expected crawl time %v, got %v", ts, u.CrawledAt)
		}
	})

	t.Run("requires url", func(t *testing.T) {
		t.Parallel()

		_, err := URLFromRecord(Record{"crawled": true})
		if !errors.Is(err, ErrInvalidURL) {
			t.Errorf("expected ErrInvalidURL, got %v", err)
		}
	})

	t.Run("round trips through ToRecord", func(t *testing.T) {
		t.Parallel()

		ts := time.Now().UTC()
		orig := NewURL("https://example.com/a").MarkCrawled(ts)
		got, err := URLFromRecord(orig.ToRecord())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Equal(orig) || !got.Crawled || !got.CrawledAt.Equal(ts) {
			t.Errorf("expected %+v, got %+v", orig, got)
		}
	})
}

func TestURLValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{"http url", "http://www.google.co.uk", true},
		{"https url with path", "https://example.com/a/b?c=d", true},
		{"bare host", "my_server", false},
		{"relative path", "/about.html", false},
		{"ftp scheme", "ftp://example.com", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewURL(tt.input).Validate()
			if tt.valid && err != nil {
				t.Errorf("expected %q to be valid, got %v", tt.input, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidURL) {
				t.Errorf("expected ErrInvalidURL for %q, got %v", tt.input, err)
			}
		})
	}
}

func TestURLPrefixScheme(t *testing.T) {
	t.Parallel()

	if got := NewURL("my_server").PrefixScheme(true).String(); got != "https://my_server" {
		t.Errorf("expected 'https://my_server', got %q", got)
	}
	if got := NewURL("my_server").PrefixScheme(false).String(); got != "http://my_server" {
		t.Errorf("expected 'http://my_server', got %q", got)
	}
	if got := NewURL("https://a.com").PrefixScheme(false).String(); got != "https://a.com" {
		t.Errorf("expected scheme to be kept, got %q", got)
	}
}

func TestURLViews(t *testing.T) {
	t.Parallel()

	u := NewURL("http://WWW.Example.co.uk:8080/dir/page.HTML?q=1#top")

	if got := u.Host(); got != "www.example.co.uk:8080" {
		t.Errorf("expected host 'www.example.co.uk:8080', got %q", got)
	}
	if got := u.Hostname(); got != "www.example.co.uk" {
		t.Errorf("expected hostname 'www.example.co.uk', got %q", got)
	}
	if got := u.Base().String(); got != "http://WWW.Example.co.uk:8080" {
		t.Errorf("expected base 'http://WWW.Example.co.uk:8080', got %q", got)
	}
	if got := u.Path(); got != "/dir/page.HTML" {
		t.Errorf("expected path '/dir/page.HTML', got %q", got)
	}
	if got := u.Extension(); got != "html" {
		t.Errorf("expected extension 'html', got %q", got)
	}
	if got := u.WithoutAnchor().String(); got != "http://WWW.Example.co.uk:8080/dir/page.HTML?q=1" {
		t.Errorf("unexpected WithoutAnchor: %q", got)
	}
	if got := u.WithoutQueryString().String(); got != "http://WWW.Example.co.uk:8080/dir/page.HTML" {
		t.Errorf("unexpected WithoutQueryString: %q", got)
	}
	if got := u.WithoutBase().String(); got != "/dir/page.HTML?q=1#top" {
		t.Errorf("unexpected WithoutBase: %q", got)
	}
	if got := NewURL("/about").Base(); !got.IsEmpty() {
		t.Errorf("expected empty base for relative link, got %q", got)
	}
}

func TestURLRelativity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		link     string
		host     string
		relative bool
	}{
		{"path", "/about.html", "http://example.com", true},
		{"anchor", "#top", "http://example.com", true},
		{"query", "?page=2", "http://example.com", true},
		{"same host", "https://example.com/x", "http://example.com", true},
		{"same host different case", "http://EXAMPLE.com/x", "example.com", true},
		{"other host", "http://other.com/x", "http://example.com", false},
		{"subdomain", "http://www.example.com", "http://example.com", false},
		{"other port", "http://example.com:8080/", "http://example.com", false},
		{"protocol relative other host", "//cdn.com/a.js", "http://example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NewURL(tt.link).IsRelativeTo(tt.host); got != tt.relative {
				t.Errorf("IsRelativeTo(%q, %q) = %v, expected %v", tt.link, tt.host, got, tt.relative)
			}
		})
	}

	if !NewURL("#top").IsAnchor() {
		t.Error("expected '#top' to be an anchor")
	}
	if !NewURL("?a=b").IsQueryString() {
		t.Error("expected '?a=b' to be a query string")
	}
}

func TestURLSlashes(t *testing.T) {
	t.Parallel()

	if got := NewURL("http://a.com/x/").ToggleTrailingSlash().String(); got != "http://a.com/x" {
		t.Errorf("expected 'http://a.com/x', got %q", got)
	}
	if got := NewURL("http://a.com/x").ToggleTrailingSlash().String(); got != "http://a.com/x/" {
		t.Errorf("expected 'http://a.com/x/', got %q", got)
	}
	if NewURL("http://a.com/").Key() != NewURL("http://a.com").Key() {
		t.Error("expected both slash variants to share a key")
	}
	if NewURL("http://a.com/x#y").Key() != "http://a.com/x" {
		t.Errorf("expected key without anchor, got %q", NewURL("http://a.com/x#y").Key())
	}
	if got := NewURL("HTTP://Example.COM/A/").Key(); got != "http://example.com/A" {
		t.Errorf("expected 'http://example.com/A', got %q", got)
	}
	if NewURL("http://Example.com/a/").Key() != NewURL("http://example.com/a").Key() {
		t.Error("expected host case variants to share a key")
	}
	if got := NewURL("http://Example.com?Q=1").Key(); got != "http://example.com?Q=1" {
		t.Errorf("expected 'http://example.com?Q=1', got %q", got)
	}
}

func TestURLResolve(t *testing.T) {
	t.Parallel()

	base := NewURL("http://example.com/dir/page")
	tests := []struct {
		ref      string
		expected string
	}{
		{"/b", "http://example.com/b"},
		{"c", "http://example.com/dir/c"},
		{"#top", "http://example.com/dir/page#top"},
		{"https://other.com/", "https://other.com/"},
	}
	for _, tt := range tests {
		if got := base.Resolve(NewURL(tt.ref)).String(); got != tt.expected {
			t.Errorf("Resolve(%q) = %q, expected %q", tt.ref, got, tt.expected)
		}
	}
}

func TestURLMarkCrawled(t *testing.T) {
	t.Parallel()

	orig := NewURL("http://example.com")
	ts := time.Now()
	crawled := orig.MarkCrawled(ts)

	if orig.Crawled {
		t.Error("expected original url to be left untouched")
	}
	if !crawled.Crawled || !crawled.CrawledAt.Equal(ts) {
		t.Errorf("expected crawled copy stamped at %v, got %+v", ts, crawled)
	}
}

func TestUniqueURLs(t *testing.T) {
	t.Parallel()

	got := URLStrings(UniqueURLs([]URL{NewURL("b"), NewURL("a"), NewURL("b"), NewURL("c"), NewURL("a")}))
	expected := []string{"b", "a", "c"}
	if len(got) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, got)
		}
	}
}
