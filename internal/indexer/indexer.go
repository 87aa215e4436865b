package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/metrics"
	"github.com/nao1215/sitecrawler/internal/model"
)

// Unlimited disables the site or data limit of IndexWeb.
const Unlimited = -1

// DefaultBatchSize is the number of uncrawled URLs IndexWeb takes from the
// store at a time.
const DefaultBatchSize = 100

// KeepFunc decides whether a crawled document is stored.
type KeepFunc func(*model.Document) bool

// Result describes one indexed site or page.
type Result struct {
	// RunID identifies the run in logs.
	RunID string `json:"run_id"`

	// Root is the URL indexing started from.
	Root model.URL `json:"root"`

	// Pages is the number of non-empty documents crawled.
	Pages int `json:"pages"`

	// Documents is the number of documents stored.
	Documents int `json:"documents"`

	// Bytes is the HTML size of the stored documents.
	Bytes int `json:"bytes"`

	// Externals is the number of external URLs newly queued.
	Externals int `json:"externals"`

	// Duration is how long indexing took.
	Duration time.Duration `json:"duration"`

	// Err is set by BatchIndexer when indexing the site failed.
	Err error `json:"-"`
}

// WebResult summarizes an IndexWeb run.
type WebResult struct {
	Sites     int       `json:"sites"`
	Documents int       `json:"documents"`
	Bytes     int       `json:"bytes"`
	Results   []*Result `json:"results"`
}

// Indexer crawls sites and stores what it finds.
type Indexer struct {
	crawler   *crawler.Crawler
	store     database.Store
	logger    *slog.Logger
	metrics   *metrics.Collector
	batchSize int
	now       func() time.Time
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) {
		ix.logger = l
	}
}

// WithMetrics records indexing totals into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(ix *Indexer) {
		ix.metrics = m
	}
}

// WithBatchSize sets how many uncrawled URLs IndexWeb takes at a time.
func WithBatchSize(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// New creates an Indexer crawling with c and storing into store.
func New(c *crawler.Crawler, store database.Store, opts ...Option) *Indexer {
	ix := &Indexer{
		crawler:   c,
		store:     store,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.logger == nil {
		ix.logger = slog.Default()
	}
	return ix
}

func (ix *Indexer) newResult(root model.URL) *Result {
	return &Result{RunID: uuid.NewString(), Root: root}
}

// saver returns the observer storing documents accepted by keep into res.
// Empty documents are never stored.
func (ix *Indexer) saver(ctx context.Context, res *Result, keep KeepFunc) func(*model.Document) error {
	return func(doc *model.Document) error {
		if doc.IsEmpty() {
			return nil
		}
		res.Pages++
		if keep != nil && !keep(doc) {
			return nil
		}
		if err := ix.store.InsertDocument(ctx, doc); err != nil {
			return err
		}
		res.Documents++
		res.Bytes += doc.Size()
		return nil
	}
}

// IndexSite crawls the site at root, storing each document keep accepts
// (all when keep is nil). With insertExternals, the site's external URLs are
// queued as uncrawled. The root is stored as crawled even when it could not
// be fetched, in which case the error wraps crawler.ErrRootNotCrawled.
func (ix *Indexer) IndexSite(ctx context.Context, root model.URL, insertExternals bool, keep KeepFunc) (*Result, error) {
	res := ix.newResult(root)
	logger := ix.logger.With("run_id", res.RunID, "root", root.String())
	start := time.Now()
	logger.Info("indexing site")

	externals, err := ix.crawler.CrawlSite(ctx, root, ix.saver(ctx, res, keep))
	res.Duration = time.Since(start)
	ix.metrics.AddIndexed(res.Documents, res.Bytes)
	if err != nil {
		if errors.Is(err, crawler.ErrRootNotCrawled) {
			if uerr := ix.markCrawled(ctx, root); uerr != nil {
				return res, uerr
			}
		}
		logger.Warn("site not indexed", "error", err)
		return res, err
	}

	if err := ix.finish(ctx, res, externals, insertExternals); err != nil {
		return res, err
	}
	ix.metrics.IncSitesIndexed()
	logger.Info("site indexed",
		"pages", res.Pages,
		"documents", res.Documents,
		"bytes", res.Bytes,
		"externals", res.Externals,
		"elapsed", res.Duration,
	)
	return res, nil
}

// IndexPage is IndexSite for the single page at u.
func (ix *Indexer) IndexPage(ctx context.Context, u model.URL, insertExternals bool, keep KeepFunc) (*Result, error) {
	res := ix.newResult(u)
	logger := ix.logger.With("run_id", res.RunID, "url", u.String())
	start := time.Now()

	doc, err := ix.crawler.CrawlURL(ctx, u, crawler.WithObserver(ix.saver(ctx, res, keep)))
	res.Duration = time.Since(start)
	ix.metrics.AddIndexed(res.Documents, res.Bytes)
	if err != nil {
		return res, err
	}

	var externals []model.URL
	if doc != nil {
		externals = doc.ExternalLinks()
	} else {
		logger.Warn("page not fetched")
	}
	if err := ix.finish(ctx, res, externals, insertExternals); err != nil {
		return res, err
	}
	logger.Info("page indexed", "documents", res.Documents, "externals", res.Externals)
	return res, nil
}

func (ix *Indexer) finish(ctx context.Context, res *Result, externals []model.URL, insertExternals bool) error {
	if insertExternals && len(externals) > 0 {
		n, err := ix.store.InsertURLs(ctx, crawlable(externals))
		if err != nil {
			return err
		}
		res.Externals = n
	}
	return ix.markCrawled(ctx, res.Root)
}

func (ix *Indexer) markCrawled(ctx context.Context, u model.URL) error {
	if err := ix.store.UpdateURL(ctx, u.MarkCrawled(ix.now())); err != nil {
		return fmt.Errorf("failed to mark %s crawled: %w", u, err)
	}
	return nil
}

// crawlable keeps the URLs usable as crawl roots.
func crawlable(urls []model.URL) []model.URL {
	out := make([]model.URL, 0, len(urls))
	for _, u := range urls {
		if u.IsValid() {
			out = append(out, u)
		}
	}
	return model.UniqueURLs(out)
}

// IndexWeb indexes the sites of uncrawled URLs in the store, queueing their
// external URLs in turn, until maxSites sites are indexed or maxDataBytes of
// HTML are stored. Either limit may be Unlimited. It stops early when no
// uncrawled URL is left.
//
// A root that cannot be fetched is marked crawled and does not count as a
// site.
func (ix *Indexer) IndexWeb(ctx context.Context, maxSites, maxDataBytes int) (*WebResult, error) {
	web := &WebResult{}
	done := func() bool {
		return (maxSites != Unlimited && web.Sites >= maxSites) ||
			(maxDataBytes != Unlimited && web.Bytes >= maxDataBytes)
	}

	for !done() {
		urls, err := ix.store.UncrawledURLs(ctx, ix.batchSize)
		if err != nil {
			return web, err
		}
		if len(urls) == 0 {
			ix.logger.Info("no uncrawled urls left")
			break
		}

		for _, u := range urls {
			if done() {
				break
			}
			res, err := ix.IndexSite(ctx, u, true, nil)
			if res != nil {
				web.Documents += res.Documents
				web.Bytes += res.Bytes
			}
			switch {
			case errors.Is(err, model.ErrInvalidURL):
				if err := ix.markCrawled(ctx, u); err != nil {
					return web, err
				}
				continue
			case errors.Is(err, crawler.ErrRootNotCrawled):
				continue
			case err != nil:
				return web, err
			}
			web.Sites++
			web.Results = append(web.Results, res)
		}
	}

	ix.logger.Info("web indexed", "sites", web.Sites, "documents", web.Documents, "bytes", web.Bytes)
	return web, nil
}
