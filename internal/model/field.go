package model

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// SourceKind identifies where a field value came from.
type SourceKind int

const (
	// FromMarkup means the value was extracted from a parsed HTML page.
	FromMarkup SourceKind = iota
	// FromRecord means the value was read from a persisted record.
	FromRecord
)

// String returns "markup" or "record".
func (k SourceKind) String() string {
	if k == FromRecord {
		return "record"
	}
	return "markup"
}

// Field is a named piece of data a Document exposes, with one extractor per
// source. Both extractors must be pure: they only read their argument.
//
// A singleton field holds a string; a multi-valued field holds a []string
// unless a transform changed its type (the built-in "links" field holds []URL).
type Field struct {
	// Name is the key used by Document.Field and by persisted records.
	Name string

	// FromMarkup extracts the value from a parsed HTML tree.
	FromMarkup func(root *html.Node) any

	// FromRecord extracts the value from a persisted record.
	FromRecord func(r Record) any
}

// Transform rewrites an extracted value before it is stored on the Document.
// Returning nil keeps the original value.
type Transform func(value any, source SourceKind) any

type fieldConfig struct {
	singleton bool
	attr      string
	transform Transform
}

// FieldOption configures XPathField and CSSField.
type FieldOption func(*fieldConfig)

// Multiple makes the field collect every match as a []string instead of only
// the first one as a string.
func Multiple() FieldOption {
	return func(c *fieldConfig) {
		c.singleton = false
	}
}

// WithTransform sets a hook run on the extracted value from either source.
func WithTransform(fn Transform) FieldOption {
	return func(c *fieldConfig) {
		c.transform = fn
	}
}

// WithAttr makes CSSField read the named attribute of each match instead of
// its text content. It has no effect on XPathField, where attributes are
// selected in the expression itself.
func WithAttr(name string) FieldOption {
	return func(c *fieldConfig) {
		c.attr = name
	}
}

func newFieldConfig(opts []FieldOption) fieldConfig {
	cfg := fieldConfig{singleton: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// XPathField defines a field extracted from markup with an xpath expression.
// The text content of each matched node is used; attribute expressions such
// as "//meta[@name='author']/@content" yield the attribute value. From a record,
// the value stored under the field name is used.
func XPathField(name, expr string, opts ...FieldOption) (Field, error) {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return Field{}, fmt.Errorf("invalid xpath for field %q: %w", name, err)
	}
	cfg := newFieldConfig(opts)

	return Field{
		Name: name,
		FromMarkup: func(root *html.Node) any {
			var values []string
			for _, n := range htmlquery.QuerySelectorAll(root, compiled) {
				values = append(values, htmlquery.InnerText(n))
				if cfg.singleton {
					break
				}
			}
			return cfg.finish(values, FromMarkup)
		},
		FromRecord: cfg.fromRecord(name),
	}, nil
}

// CSSField defines a field extracted from markup with a CSS selector.
func CSSField(name, selector string, opts ...FieldOption) Field {
	cfg := newFieldConfig(opts)

	return Field{
		Name: name,
		FromMarkup: func(root *html.Node) any {
			var values []string
			goquery.NewDocumentFromNode(root).Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if cfg.attr != "" {
					v, ok := s.Attr(cfg.attr)
					if !ok {
						return true
					}
					values = append(values, v)
				} else {
					values = append(values, s.Text())
				}
				return !cfg.singleton
			})
			return cfg.finish(values, FromMarkup)
		},
		FromRecord: cfg.fromRecord(name),
	}
}

func (c fieldConfig) fromRecord(name string) func(Record) any {
	return func(r Record) any {
		if c.singleton {
			s, _ := r.String(name)
			return c.finish([]string{s}, FromRecord)
		}
		values, _ := r.Strings(name)
		return c.finish(values, FromRecord)
	}
}

// finish trims values into the field's shape and applies the transform.
func (c fieldConfig) finish(values []string, source SourceKind) any {
	var value any
	if c.singleton {
		s := ""
		if len(values) > 0 {
			s = strings.TrimSpace(values[0])
		}
		value = s
	} else {
		out := make([]string, 0, len(values))
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		value = out
	}
	if c.transform != nil {
		if v := c.transform(value, source); v != nil {
			value = v
		}
	}
	return value
}

// Registry is an ordered set of fields evaluated when a Document is built.
// A Registry is not safe for concurrent modification; build it once and
// share it read-only.
type Registry struct {
	fields []Field
}

// NewRegistry creates a registry holding the given fields.
func NewRegistry(fields ...Field) *Registry {
	r := &Registry{}
	for _, f := range fields {
		r.Define(f)
	}
	return r
}

// Define adds f, replacing any field with the same name in place.
func (r *Registry) Define(f Field) {
	for i, existing := range r.fields {
		if existing.Name == f.Name {
			r.fields[i] = f
			return
		}
	}
	r.fields = append(r.fields, f)
}

// Remove deletes the named field and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	for i, f := range r.fields {
		if f.Name == name {
			r.fields = append(r.fields[:i], r.fields[i+1:]...)
			return true
		}
	}
	return false
}

// Fields returns the fields in definition order.
func (r *Registry) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	return &Registry{fields: r.Fields()}
}

// TextElements are the HTML elements whose text nodes make up a page's
// searchable text.
var TextElements = []string{
	"dd", "div", "dl", "dt", "figcaption", "figure", "hr", "li",
	"main", "ol", "p", "pre", "span", "ul", "h1", "h2", "h3", "h4", "h5",
}

// TextElementsXPath builds the xpath union selecting the direct text nodes
// of the given elements.
func TextElementsXPath(elements []string) string {
	parts := make([]string, len(elements))
	for i, el := range elements {
		parts[i] = "//" + el + "/text()"
	}
	return strings.Join(parts, " | ")
}

// Names of the built-in fields.
const (
	FieldTitle    = "title"
	FieldAuthor   = "author"
	FieldKeywords = "keywords"
	FieldLinks    = "links"
	FieldText     = "text"
	FieldBase     = "base"
)

// DefaultRegistry returns a new registry with the built-in fields:
// title, author, keywords, links, text and base.
func DefaultRegistry() *Registry {
	return NewRegistry(
		mustXPathField(FieldTitle, "//title"),
		mustXPathField(FieldAuthor, "//meta[@name='author']/@content"),
		mustXPathField(FieldKeywords, "//meta[@name='keywords']/@content",
			WithTransform(splitKeywords)),
		mustXPathField(FieldLinks, "//a/@href", Multiple(),
			WithTransform(toLinks)),
		mustXPathField(FieldText, TextElementsXPath(TextElements), Multiple(),
			WithTransform(normalizeText)),
		mustXPathField(FieldBase, "//base/@href"),
	)
}

func mustXPathField(name, expr string, opts ...FieldOption) Field {
	f, err := XPathField(name, expr, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

// splitKeywords turns the comma separated meta keywords into a list.
// Records already store a list.
func splitKeywords(value any, source SourceKind) any {
	if source == FromRecord {
		return nil
	}
	s, _ := value.(string)
	if s == "" {
		return []string{}
	}
	return processStrings(strings.Split(s, ","))
}

// uncrawlableSchemes are href schemes that never address a page.
var uncrawlableSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// toLinks converts hrefs into URLs, dropping uncrawlable schemes.
// Duplicates are kept in discovery order.
func toLinks(value any, _ SourceKind) any {
	hrefs, _ := value.([]string)
	links := make([]URL, 0, len(hrefs))
	for _, href := range hrefs {
		if hasUncrawlableScheme(href) {
			continue
		}
		links = append(links, NewURL(href))
	}
	return links
}

func hasUncrawlableScheme(href string) bool {
	lower := strings.ToLower(href)
	for _, scheme := range uncrawlableSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// normalizeText NFC-normalizes snippets and removes duplicates.
func normalizeText(value any, _ SourceKind) any {
	snippets, _ := value.([]string)
	out := make([]string, len(snippets))
	for i, s := range snippets {
		out[i] = norm.NFC.String(s)
	}
	return processStrings(out)
}
