package model

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// ErrInvalidURL is returned when a URL cannot be used as a crawl root.
// A crawl root must be absolute with an http or https scheme and a host.
var ErrInvalidURL = errors.New("invalid url: must be absolute with scheme and host")

// URL is a web address together with its crawl state.
//
// URL is a value type. Methods that derive another address return a new URL
// and never modify the receiver, so a URL can be shared freely between the
// crawler, documents and the store.
type URL struct {
	// value is the raw address as given or discovered, trimmed of whitespace.
	value string

	// Crawled reports whether a crawl of this URL has been attempted.
	// A failed fetch still counts as crawled.
	Crawled bool

	// CrawledAt is when the crawl was attempted. Zero when never crawled.
	CrawledAt time.Time
}

// NewURL creates an uncrawled URL from a string.
func NewURL(s string) URL {
	return URL{value: strings.TrimSpace(s)}
}

// URLFromRecord creates a URL from a persisted record.
// The record must contain a "url" key; "crawled" and "date_crawled" are optional.
func URLFromRecord(r Record) (URL, error) {
	s, ok := r.String("url")
	if !ok || s == "" {
		return URL{}, fmt.Errorf("%w: record has no url", ErrInvalidURL)
	}
	u := NewURL(s)
	if crawled, ok := r["crawled"].(bool); ok {
		u.Crawled = crawled
	}
	if t, ok := r["date_crawled"].(time.Time); ok {
		u.CrawledAt = t
	}
	return u, nil
}

// ToRecord converts the URL into its persisted representation.
func (u URL) ToRecord() Record {
	r := Record{
		"url":     u.value,
		"crawled": u.Crawled,
	}
	if !u.CrawledAt.IsZero() {
		r["date_crawled"] = u.CrawledAt
	}
	return r
}

// String returns the raw address.
func (u URL) String() string {
	return u.value
}

// IsEmpty reports whether the URL has no address.
func (u URL) IsEmpty() bool {
	return u.value == ""
}

// MarkCrawled returns a copy of u flagged as crawled at t.
func (u URL) MarkCrawled(t time.Time) URL {
	u.Crawled = true
	u.CrawledAt = t
	return u
}

// Parse parses the address with net/url.
func (u URL) Parse() (*url.URL, error) {
	return url.Parse(u.value)
}

// parsed returns the parsed address, or an empty url.URL when parsing fails.
// Most derived views treat an unparsable address as a bare relative path.
func (u URL) parsed() *url.URL {
	p, err := url.Parse(u.value)
	if err != nil {
		return &url.URL{Path: u.value}
	}
	return p
}

// Validate checks that the URL is absolute with an http(s) scheme and a host.
func (u URL) Validate() error {
	p, err := url.Parse(u.value)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidURL, u.value, err)
	}
	if p.Host == "" || (p.Scheme != "http" && p.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, u.value)
	}
	return nil
}

// IsValid reports whether Validate succeeds.
func (u URL) IsValid() bool {
	return u.Validate() == nil
}

// PrefixScheme returns u with "http://" (or "https://" when https is true)
// prepended if the address has no scheme.
func (u URL) PrefixScheme(https bool) URL {
	if strings.Contains(u.value, "://") {
		return u
	}
	scheme := "http://"
	if https {
		scheme = "https://"
	}
	u.value = scheme + strings.TrimPrefix(u.value, "//")
	return u
}

// Scheme returns the lower-cased scheme, or "" for relative links.
func (u URL) Scheme() string {
	return strings.ToLower(u.parsed().Scheme)
}

// Host returns the lower-cased authority (host and optional port).
func (u URL) Host() string {
	return strings.ToLower(u.parsed().Host)
}

// Hostname returns the lower-cased host without port.
func (u URL) Hostname() string {
	return strings.ToLower(u.parsed().Hostname())
}

// Base returns scheme://host, or an empty URL for relative links.
func (u URL) Base() URL {
	p := u.parsed()
	if p.Host == "" {
		return URL{}
	}
	return URL{value: p.Scheme + "://" + p.Host}
}

// Path returns the path component.
func (u URL) Path() string {
	return u.parsed().Path
}

// Extension returns the lower-cased file extension of the path without the
// leading dot, or "" when the last path segment has none.
func (u URL) Extension() string {
	ext := path.Ext(u.parsed().Path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsRelative reports whether the URL has no host.
func (u URL) IsRelative() bool {
	return u.parsed().Host == ""
}

// IsRelativeTo reports whether the URL addresses the given host: either it
// has no host at all, or its authority equals host's. host may be an absolute
// URL ("https://example.com") or a bare authority ("example.com:8080").
// Ports are significant.
func (u URL) IsRelativeTo(host string) bool {
	p := u.parsed()
	if p.Host == "" {
		return true
	}
	return strings.EqualFold(p.Host, authorityOf(host))
}

// authorityOf extracts the authority from an absolute URL or returns s
// unchanged when it is already a bare authority.
func authorityOf(s string) string {
	if strings.Contains(s, "://") {
		if p, err := url.Parse(s); err == nil {
			return p.Host
		}
	}
	return strings.TrimSuffix(s, "/")
}

// IsAnchor reports whether the URL is only a fragment, e.g. "#top".
func (u URL) IsAnchor() bool {
	return strings.HasPrefix(u.value, "#")
}

// IsQueryString reports whether the URL is only a query, e.g. "?page=2".
func (u URL) IsQueryString() bool {
	return strings.HasPrefix(u.value, "?")
}

// WithoutAnchor returns the URL with its fragment removed.
func (u URL) WithoutAnchor() URL {
	if i := strings.Index(u.value, "#"); i >= 0 {
		u.value = u.value[:i]
	}
	return u
}

// WithoutQueryString returns the URL with its query (and fragment) removed.
func (u URL) WithoutQueryString() URL {
	u = u.WithoutAnchor()
	if i := strings.Index(u.value, "?"); i >= 0 {
		u.value = u.value[:i]
	}
	return u
}

// WithoutBase returns the URL with scheme and host removed. An absolute URL
// with nothing after the host becomes "/". Relative URLs are returned as is.
func (u URL) WithoutBase() URL {
	p := u.parsed()
	if p.Host == "" {
		return u
	}
	rest := p.EscapedPath()
	if p.RawQuery != "" || p.ForceQuery {
		rest += "?" + p.RawQuery
	}
	if p.Fragment != "" {
		rest += "#" + p.EscapedFragment()
	}
	if rest == "" || !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	u.value = rest
	return u
}

// WithoutTrailingSlash returns the URL with one trailing "/" removed.
func (u URL) WithoutTrailingSlash() URL {
	u.value = strings.TrimSuffix(u.value, "/")
	return u
}

// ToggleTrailingSlash returns the other slash variant of the URL:
// "http://a.com/x/" becomes "http://a.com/x" and vice versa.
func (u URL) ToggleTrailingSlash() URL {
	if strings.HasSuffix(u.value, "/") {
		return u.WithoutTrailingSlash()
	}
	u.value += "/"
	return u
}

// Resolve resolves ref against u following RFC 3986 and returns an uncrawled
// URL. If either address cannot be parsed, ref is returned unchanged.
func (u URL) Resolve(ref URL) URL {
	base, err := url.Parse(u.value)
	if err != nil {
		return URL{value: ref.value}
	}
	r, err := url.Parse(ref.value)
	if err != nil {
		return URL{value: ref.value}
	}
	return URL{value: base.ResolveReference(r).String()}
}

// Key returns the form used to decide whether two URLs denote the same
// resource during a site crawl: fragment removed, trailing slash trimmed and
// scheme and authority lower-cased.
func (u URL) Key() string {
	key := u.WithoutAnchor().WithoutTrailingSlash().value
	i := strings.Index(key, "://")
	if i < 0 {
		return key
	}
	end := len(key)
	if j := strings.IndexAny(key[i+3:], "/?"); j >= 0 {
		end = i + 3 + j
	}
	return strings.ToLower(key[:end]) + key[end:]
}

// Equal reports whether two URLs have the same address.
// Crawl state is not compared.
func (u URL) Equal(other URL) bool {
	return u.value == other.value
}

// MarshalText implements encoding.TextMarshaler.
func (u URL) MarshalText() ([]byte, error) {
	return []byte(u.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *URL) UnmarshalText(b []byte) error {
	u.value = strings.TrimSpace(string(b))
	return nil
}

// URLStrings converts URLs to their string addresses.
func URLStrings(urls []URL) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u.value
	}
	return out
}

// UniqueURLs removes duplicate addresses keeping first-seen order.
func UniqueURLs(urls []URL) []URL {
	seen := make(map[string]bool, len(urls))
	out := make([]URL, 0, len(urls))
	for _, u := range urls {
		if seen[u.value] {
			continue
		}
		seen[u.value] = true
		out = append(out, u)
	}
	return out
}
