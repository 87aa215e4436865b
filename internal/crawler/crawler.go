package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/sitecrawler/internal/metrics"
	"github.com/nao1215/sitecrawler/internal/model"
)

// DefaultRedirectLimit is the number of redirect hops followed per fetch.
const DefaultRedirectLimit = 5

// DefaultExtensions are the file extensions CrawlSite follows besides
// extension-less paths.
var DefaultExtensions = []string{"htm", "html"}

// Crawler turns URLs into documents and walks sites.
type Crawler struct {
	client        FetchClient
	resolver      *Resolver
	redirectLimit int
	extensions    map[string]bool
	registry      *model.Registry
	logger        *slog.Logger
	metrics       *metrics.Collector
	now           func() time.Time

	lastResponse *Response
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithRedirectLimit sets how many redirect hops a fetch follows.
func WithRedirectLimit(n int) Option {
	return func(c *Crawler) {
		c.redirectLimit = n
	}
}

// WithAllowedExtensions sets the file extensions (without dot, any case)
// CrawlSite follows. Extension-less paths are always followed.
func WithAllowedExtensions(exts ...string) Option {
	return func(c *Crawler) {
		c.extensions = extensionSet(exts)
	}
}

// WithRegistry sets the fields extracted from every crawled page.
func WithRegistry(r *model.Registry) Option {
	return func(c *Crawler) {
		c.registry = r
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = l
	}
}

// WithMetrics records fetch and page metrics into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

func extensionSet(exts []string) map[string]bool {
	set := map[string]bool{"": true}
	for _, e := range exts {
		set[strings.ToLower(strings.TrimPrefix(e, "."))] = true
	}
	return set
}

// NewCrawler creates a Crawler issuing requests through client.
func NewCrawler(client FetchClient, opts ...Option) *Crawler {
	c := &Crawler{
		client:        client,
		resolver:      NewResolver(client),
		redirectLimit: DefaultRedirectLimit,
		extensions:    extensionSet(DefaultExtensions),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.registry == nil {
		c.registry = model.DefaultRegistry()
	}
	return c
}

// LastResponse returns the final response of the most recent fetch, or nil
// when it failed.
func (c *Crawler) LastResponse() *Response {
	return c.lastResponse
}

// CrawlOption configures CrawlURL.
type CrawlOption func(*crawlOptions)

type crawlOptions struct {
	followExternal bool
	host           string
	observer       func(*model.Document) error
}

// WithFollowExternalRedirects sets whether redirects may leave the host.
// The default is true. When false, WithHost is required.
func WithFollowExternalRedirects(follow bool) CrawlOption {
	return func(o *crawlOptions) {
		o.followExternal = follow
	}
}

// WithHost sets the host redirects must stay on.
func WithHost(host string) CrawlOption {
	return func(o *crawlOptions) {
		o.host = host
	}
}

// WithObserver calls fn with every crawled document, including empty ones.
// An error from fn aborts the crawl and is returned.
func WithObserver(fn func(*model.Document) error) CrawlOption {
	return func(o *crawlOptions) {
		o.observer = fn
	}
}

// fetch GETs u following redirects and returns the body and the final URL.
// Soft failures yield "". Only context errors and ErrHostRequired are returned.
func (c *Crawler) fetch(ctx context.Context, u model.URL, policy RedirectPolicy) (string, model.URL, error) {
	start := time.Now()
	resp, final, err := c.resolver.Resolve(ctx, u, policy, func(h Hop) {
		c.metrics.ObserveResponse(h.Response.StatusCode)
		if !h.Location.IsEmpty() {
			c.logger.Debug("redirect", "from", h.URL.String(), "to", h.Location.String(), "status", h.Response.StatusCode)
		}
	})
	c.metrics.ObserveFetch(time.Since(start))

	if err != nil {
		c.lastResponse = nil
		switch {
		case errors.Is(err, ErrHostRequired), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return "", final, err
		case errors.Is(err, ErrExternalRedirect):
			c.metrics.ObserveRedirect("external")
		case errors.Is(err, ErrTooManyRedirects):
			c.metrics.ObserveRedirect("limit")
		}
		c.logger.Debug("fetch failed", "url", u.String(), "error", err)
		return "", final, nil
	}

	if !final.Equal(u) {
		c.metrics.ObserveRedirect("followed")
	}
	c.lastResponse = resp
	if len(resp.Body) == 0 {
		c.logger.Debug("empty response body", "url", final.String(), "status", resp.StatusCode)
		return "", final, nil
	}
	return string(resp.Body), final, nil
}

// CrawlURL fetches u and builds a document from it. The document carries the
// final URL after redirects, marked crawled.
//
// It returns nil, nil when nothing was fetched (soft failure). The observer
// still sees the empty document first.
func (c *Crawler) CrawlURL(ctx context.Context, u model.URL, opts ...CrawlOption) (*model.Document, error) {
	doc, err := c.crawl(ctx, u, opts...)
	if err != nil {
		return nil, err
	}
	if doc.IsEmpty() {
		return nil, nil
	}
	return doc, nil
}

// crawl is CrawlURL returning empty documents too.
func (c *Crawler) crawl(ctx context.Context, u model.URL, opts ...CrawlOption) (*model.Document, error) {
	o := crawlOptions{followExternal: true}
	for _, opt := range opts {
		opt(&o)
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	policy := RedirectPolicy{
		Limit:          c.redirectLimit,
		FollowExternal: o.followExternal,
		Host:           o.host,
	}
	markup, final, err := c.fetch(ctx, u, policy)
	if err != nil {
		return nil, err
	}

	doc, err := model.NewDocument(
		model.HTMLSource{URL: final.MarkCrawled(c.now()), Markup: markup},
		model.WithRegistry(c.registry),
	)
	if err != nil {
		return nil, err
	}

	switch {
	case markup == "" && c.lastResponse == nil:
		c.metrics.ObservePage(metrics.PageFailed)
	case markup == "":
		c.metrics.ObservePage(metrics.PageEmpty)
	default:
		c.metrics.ObservePage(metrics.PageOK)
	}

	if o.observer != nil {
		if err := o.observer(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// CrawlURLs crawls each URL in order with the default options and returns
// the last document fetched, or nil when none was.
func (c *Crawler) CrawlURLs(ctx context.Context, urls []model.URL, observer func(*model.Document) error) (*model.Document, error) {
	var last *model.Document
	for _, u := range urls {
		doc, err := c.CrawlURL(ctx, u, WithObserver(observer))
		if err != nil {
			return last, err
		}
		if doc != nil {
			last = doc
		}
	}
	return last, nil
}

// CrawlSite crawls root and then every page reachable from it through
// same-host links, calling onPage (when not nil) with each document. Pages are
// crawled at most once; a page reached through a redirect counts for both
// addresses. Redirects away from the site are not followed, except for root.
//
// It returns the external links found across the site, deduplicated in
// first-seen order.
func (c *Crawler) CrawlSite(ctx context.Context, root model.URL, onPage func(*model.Document) error) ([]model.URL, error) {
	state, err := c.crawlSite(ctx, root, onPage)
	if err != nil {
		return nil, err
	}
	return state.externals, nil
}

func (c *Crawler) crawlSite(ctx context.Context, root model.URL, onPage func(*model.Document) error) (*siteCrawl, error) {
	doc, err := c.crawl(ctx, root, WithObserver(onPage))
	if err != nil {
		return nil, err
	}
	if doc.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotCrawled, root)
	}

	host := doc.URL().Base().String()
	state := newSiteCrawl()
	state.markCrawled(root, doc.URL())
	state.discover(c.crawlableLinks(doc), doc.ExternalLinks())

	for {
		pending := state.pending()
		if len(pending) == 0 {
			break
		}

		for _, link := range pending {
			// A redirect earlier in this round may have reached it already.
			if state.isCrawled(link) {
				continue
			}

			doc, err := c.crawl(ctx, link,
				WithFollowExternalRedirects(false),
				WithHost(host),
				WithObserver(onPage),
			)
			if errors.Is(err, model.ErrInvalidURL) {
				c.logger.Debug("skipping invalid link", "url", link.String(), "error", err)
				state.crawled[link.Key()] = true
				continue
			}
			if err != nil {
				return nil, err
			}
			state.markCrawled(link, doc.URL())
			if doc.IsEmpty() {
				continue
			}
			state.discover(c.crawlableLinks(doc), doc.ExternalLinks())
		}
	}

	c.logger.Debug("site crawled", "root", root.String(), "pages", len(state.order), "externals", len(state.externals))
	return state, nil
}

// crawlableLinks returns the page's internal links that CrawlSite should
// visit: valid absolute http(s) addresses, without fragment, with an allowed
// extension.
func (c *Crawler) crawlableLinks(doc *model.Document) []model.URL {
	var links []model.URL
	for _, link := range doc.InternalFullLinks() {
		link = link.WithoutAnchor()
		if !link.IsValid() {
			c.logger.Debug("dropping invalid link", "page", doc.URL().String(), "url", link.String())
			continue
		}
		if !c.extensions[link.Extension()] {
			continue
		}
		links = append(links, link)
	}
	return model.UniqueURLs(links)
}

// siteCrawl is the state of one CrawlSite run.
type siteCrawl struct {
	// crawled is keyed by URL.Key, so both trailing slash variants and any
	// fragment of an address share one entry.
	crawled map[string]bool
	order   []model.URL

	worklist  []model.URL
	externals []model.URL
	seenExt   map[string]bool
}

func newSiteCrawl() *siteCrawl {
	return &siteCrawl{
		crawled: make(map[string]bool),
		seenExt: make(map[string]bool),
	}
}

func (s *siteCrawl) markCrawled(urls ...model.URL) {
	for _, u := range urls {
		if s.crawled[u.Key()] {
			continue
		}
		s.crawled[u.Key()] = true
		s.order = append(s.order, u)
	}
}

func (s *siteCrawl) isCrawled(u model.URL) bool {
	return s.crawled[u.Key()]
}

func (s *siteCrawl) discover(internal, external []model.URL) {
	s.worklist = append(s.worklist, internal...)
	for _, u := range external {
		if s.seenExt[u.String()] {
			continue
		}
		s.seenExt[u.String()] = true
		s.externals = append(s.externals, u)
	}
}

// pending drains the worklist and returns the links not crawled yet,
// one per key.
func (s *siteCrawl) pending() []model.URL {
	var out []model.URL
	seen := make(map[string]bool)
	for _, u := range s.worklist {
		if s.isCrawled(u) || seen[u.Key()] {
			continue
		}
		seen[u.Key()] = true
		out = append(out, u)
	}
	s.worklist = nil
	return out
}
