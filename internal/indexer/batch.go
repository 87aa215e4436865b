package indexer

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/sitecrawler/internal/model"
)

// DefaultConcurrency is the number of sites a BatchIndexer indexes at once.
const DefaultConcurrency = 4

// BatchIndexer indexes several sites concurrently.
type BatchIndexer struct {
	// factory creates the Indexer of one site.
	factory     Factory
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchIndexer.
type BatchOption func(*BatchIndexer)

// WithBatchLogger sets the logger for batch-level events.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchIndexer) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of sites indexed at once.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchIndexer) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// Factory creates the Indexer used for the site at root, so that each
// site can get its own client settings.
type Factory func(root model.URL) (*Indexer, error)

// NewBatchIndexer creates a BatchIndexer. factory is called once per site.
func NewBatchIndexer(factory Factory, opts ...BatchOption) *BatchIndexer {
	b := &BatchIndexer{
		factory:     factory,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// IndexSites indexes every root and returns one result per root, in the
// order given. A failed site has its Result.Err set and does not stop the
// others; only cancellation of ctx is returned as an error.
func (b *BatchIndexer) IndexSites(ctx context.Context, roots []model.URL, insertExternals bool, keep KeepFunc) ([]*Result, error) {
	b.logger.Info("starting batch indexing", "sites", len(roots), "concurrency", b.concurrency)
	start := time.Now()

	// Each goroutine writes only its own index.
	results := make([]*Result, len(roots))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, root := range roots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			var res *Result
			ix, err := b.factory(root)
			if err == nil {
				res, err = ix.IndexSite(ctx, root, insertExternals, keep)
			}
			if res == nil {
				res = &Result{Root: root}
			}
			res.Err = err
			results[i] = res

			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				b.logger.Warn("site failed", "root", root.String(), "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	b.logger.Info("batch indexing complete", "sites", len(roots), "elapsed", time.Since(start))
	return results, err
}
