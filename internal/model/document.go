package model

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/crypto/sha3"
	"golang.org/x/net/html"
)

// ErrLinkNotRelative is returned by Document.BaseURL when given an absolute link.
var ErrLinkNotRelative = errors.New("link must be relative")

// Source is what a Document is built from: either freshly fetched markup
// (HTMLSource) or a persisted record (RecordSource).
type Source interface {
	isSource()
}

// HTMLSource builds a Document from a URL and the HTML fetched from it.
type HTMLSource struct {
	URL    URL
	Markup string
}

func (HTMLSource) isSource() {}

// RecordSource builds a Document from a persisted record. The record must
// hold "url"; "html" and "score" are optional.
type RecordSource struct {
	Record Record
}

func (RecordSource) isSource() {}

// DocumentOption configures NewDocument.
type DocumentOption func(*documentOptions)

type documentOptions struct {
	registry *Registry
}

// WithRegistry sets the fields evaluated during construction.
// The default is DefaultRegistry().
func WithRegistry(r *Registry) DocumentOption {
	return func(o *documentOptions) {
		o.registry = r
	}
}

// Document is a parsed web page, or a page loaded back from a store.
//
// A Document is read-only after construction, with one exception:
// SearchInPlace replaces the text store with search results.
type Document struct {
	url    URL
	html   string
	root   *html.Node
	score  float64
	fields map[string]any
	order  []string

	// text is kept apart from fields so SearchInPlace can narrow it.
	text []string
}

// NewDocument builds a Document from src, running every registry field's
// extractor for that source.
func NewDocument(src Source, opts ...DocumentOption) (*Document, error) {
	o := documentOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}

	d := &Document{fields: make(map[string]any)}

	switch s := src.(type) {
	case HTMLSource:
		d.url = s.URL
		d.html = s.Markup
		if err := d.parse(); err != nil {
			return nil, err
		}
		for _, f := range o.registry.Fields() {
			d.set(f.Name, f.FromMarkup(d.root))
		}
	case RecordSource:
		u, err := URLFromRecord(s.Record)
		if err != nil {
			return nil, err
		}
		d.url = u
		d.html, _ = s.Record.String("html")
		d.score, _ = s.Record.Float("score")
		if err := d.parse(); err != nil {
			return nil, err
		}
		for _, f := range o.registry.Fields() {
			d.set(f.Name, f.FromRecord(s.Record))
		}
	default:
		return nil, fmt.Errorf("unsupported document source %T", src)
	}

	return d, nil
}

func (d *Document) parse() error {
	root, err := html.Parse(strings.NewReader(d.html))
	if err != nil {
		return fmt.Errorf("failed to parse html of %s: %w", d.url, err)
	}
	d.root = root
	return nil
}

func (d *Document) set(name string, value any) {
	if _, exists := d.fields[name]; !exists {
		d.order = append(d.order, name)
	}
	d.fields[name] = value
	if name == FieldText {
		d.text, _ = value.([]string)
	}
}

// URL returns the page address. After a redirect this is the final address.
func (d *Document) URL() URL {
	return d.url
}

// HTML returns the raw markup.
func (d *Document) HTML() string {
	return d.html
}

// Score is the relevance assigned by a store search. Zero for crawled pages.
func (d *Document) Score() float64 {
	return d.score
}

// CrawledAt returns when the page's URL was crawled.
func (d *Document) CrawledAt() time.Time {
	return d.url.CrawledAt
}

// IsEmpty reports whether the document has no HTML.
func (d *Document) IsEmpty() bool {
	return d.html == ""
}

// Size returns the number of bytes of HTML.
func (d *Document) Size() int {
	return len(d.html)
}

// Hash returns the hex SHA3-256 of the HTML, or "" for an empty document.
func (d *Document) Hash() string {
	if d.html == "" {
		return ""
	}
	sum := sha3.Sum256([]byte(d.html))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether both documents have the same URL and HTML.
func (d *Document) Equal(other *Document) bool {
	if other == nil {
		return false
	}
	return d.url.Equal(other.url) && d.html == other.html
}

// Field returns the value of a registry field.
func (d *Document) Field(name string) (any, bool) {
	if name == FieldText {
		return d.text, true
	}
	v, ok := d.fields[name]
	return v, ok
}

// Title returns the page title.
func (d *Document) Title() string {
	s, _ := d.fields[FieldTitle].(string)
	return s
}

// Author returns the author meta tag.
func (d *Document) Author() string {
	s, _ := d.fields[FieldAuthor].(string)
	return s
}

// Keywords returns the keywords meta tag split on commas.
func (d *Document) Keywords() []string {
	k, _ := d.fields[FieldKeywords].([]string)
	return k
}

// Base returns the <base href> value, or "".
func (d *Document) Base() string {
	s, _ := d.fields[FieldBase].(string)
	return s
}

// Links returns every anchor href in discovery order, duplicates included.
func (d *Document) Links() []URL {
	switch v := d.fields[FieldLinks].(type) {
	case []URL:
		return v
	case []string:
		links := make([]URL, len(v))
		for i, s := range v {
			links[i] = NewURL(s)
		}
		return links
	default:
		return nil
	}
}

// Text returns the page's text snippets.
func (d *Document) Text() []string {
	return d.text
}

// Find runs a CSS selector against the page.
func (d *Document) Find(selector string) *goquery.Selection {
	return goquery.NewDocumentFromNode(d.root).Find(selector)
}

// XPath runs an xpath expression against the page.
func (d *Document) XPath(expr string) ([]*html.Node, error) {
	return htmlquery.QueryAll(d.root, expr)
}

// BaseURL returns the URL that link should be resolved against.
//
// Anchors and query-only links address the current page, so they always use
// the document URL. Any other link uses the <base href> override when present
// (resolved against the document URL if relative), otherwise the document
// URL. An empty link returns the general base. link must be relative.
func (d *Document) BaseURL(link URL) (URL, error) {
	if !link.IsEmpty() {
		if !link.IsRelative() {
			return URL{}, fmt.Errorf("%w: %s", ErrLinkNotRelative, link)
		}
		if link.IsAnchor() || link.IsQueryString() {
			return NewURL(d.url.WithoutAnchor().String()), nil
		}
	}

	if base := d.Base(); base != "" {
		b := NewURL(base)
		if b.IsRelative() {
			b = d.url.Resolve(b)
		}
		return b.WithoutQueryString(), nil
	}
	return NewURL(d.url.WithoutQueryString().String()), nil
}

// InternalLinks returns the links to pages on the document's own host, in
// relative form. Absolute same-host links are stripped of scheme and host; a
// bare "http://host" becomes "/". Duplicates are removed.
func (d *Document) InternalLinks() []URL {
	host := d.url.Host()
	var links []URL
	for _, link := range d.Links() {
		if !link.IsRelativeTo(host) {
			continue
		}
		links = append(links, link.WithoutBase())
	}
	return UniqueURLs(links)
}

// InternalFullLinks returns InternalLinks resolved to absolute URLs.
func (d *Document) InternalFullLinks() []URL {
	internal := d.InternalLinks()
	links := make([]URL, 0, len(internal))
	for _, link := range internal {
		base, err := d.BaseURL(link)
		if err != nil {
			continue
		}
		links = append(links, base.Resolve(link))
	}
	return UniqueURLs(links)
}

// ExternalLinks returns the links to other hosts, trailing slash trimmed and
// duplicates removed.
func (d *Document) ExternalLinks() []URL {
	host := d.url.Host()
	var links []URL
	for _, link := range d.Links() {
		if link.IsRelativeTo(host) {
			continue
		}
		links = append(links, link.WithoutTrailingSlash())
	}
	return UniqueURLs(links)
}

// Stats returns the length of the URL, the HTML and every field, plus the
// number of text snippets and their total length in bytes.
func (d *Document) Stats() map[string]int {
	stats := map[string]int{
		"url":  len(d.url.String()),
		"html": len(d.html),
	}
	for _, name := range d.order {
		if name == FieldText {
			bytes := 0
			for _, t := range d.text {
				bytes += len(t)
			}
			stats["text_snippets"] = len(d.text)
			stats["text_bytes"] = bytes
			continue
		}
		switch v := d.fields[name].(type) {
		case string:
			stats[name] = len(v)
		case []string:
			stats[name] = len(v)
		case []URL:
			stats[name] = len(v)
		}
	}
	return stats
}

// ToRecord converts the document into its persisted form.
// The HTML is only included when includeHTML is true.
func (d *Document) ToRecord(includeHTML bool) Record {
	r := Record{
		"url":     d.url.String(),
		"crawled": d.url.Crawled,
		"score":   d.score,
		"hash":    d.Hash(),
	}
	if !d.url.CrawledAt.IsZero() {
		r["date_crawled"] = d.url.CrawledAt
	}
	if includeHTML {
		r["html"] = d.html
	}
	for _, name := range d.order {
		switch v := d.fields[name].(type) {
		case []URL:
			r[name] = URLStrings(v)
		default:
			r[name] = v
		}
	}
	r[FieldText] = d.text
	return r
}

// MarshalJSON encodes the document's record without HTML.
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToRecord(false))
}
