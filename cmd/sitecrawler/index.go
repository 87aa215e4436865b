package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/indexer"
	"github.com/nao1215/sitecrawler/internal/model"
)

const flagNoExternals = "no-externals"

// NewIndexCmd creates the index command and its subcommands.
func NewIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Crawl websites and store their documents in the database",
		Long: `Index crawls pages or whole websites and stores the documents in a SQLite
(default) or Postgres database so that "sitecrawler search" can find them.

External URLs found while indexing are stored as not crawled yet.
"sitecrawler index web" picks them up and indexes their sites in turn.`,
	}

	cmd.AddCommand(newIndexSiteCmd())
	cmd.AddCommand(newIndexPageCmd())
	cmd.AddCommand(newIndexWebCmd())

	return cmd
}

func newIndexSiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site <url>...",
		Short: "Index whole websites",
		Long: `Index site crawls each website over its internal links and stores every
page. Sites are indexed concurrently, each with its own per-site settings.

Examples:
  # Index two sites, two at a time
  sitecrawler index site https://example.com https://example.org

  # Do not queue the external URLs found
  sitecrawler index site --no-externals https://example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIndexSiteCmd,
	}

	addClientFlags(cmd)
	addDBFlags(cmd)
	cmd.Flags().IntP(flagConcurrency, "n", config.DefaultConcurrency, "Number of sites indexed at once")
	cmd.Flags().Bool(flagNoExternals, false, "Do not store the external URLs found")

	return cmd
}

func newIndexPageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page <url>...",
		Short: "Index single pages",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runIndexPageCmd,
	}

	addClientFlags(cmd)
	addDBFlags(cmd)
	cmd.Flags().Bool(flagNoExternals, false, "Do not store the external URLs found")

	return cmd
}

func newIndexWebCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web [seed-url]...",
		Short: "Index the sites of stored URLs not crawled yet",
		Long: `Index web takes URLs not crawled yet from the database, indexes their sites
and stores the external URLs found, which are indexed in turn. It stops when
--max-sites sites were indexed, when --max-data bytes of HTML were stored in
this run, or when no URL is left.

Seed URLs given as arguments are stored first. Per-site settings from the
configuration file do not apply here; only the defaults do.

Examples:
  # Start from one site and index at most 10 sites
  sitecrawler index web --max-sites 10 https://example.com

  # Keep going until 50MB of HTML were stored
  sitecrawler index web --max-data 52428800`,
		Args: cobra.ArbitraryArgs,
		RunE: runIndexWebCmd,
	}
	addClientFlags(cmd)
	addDBFlags(cmd)
	cmd.Flags().Int(flagMaxSites, config.Unlimited, "Maximum number of sites indexed (-1 for no limit)")
	cmd.Flags().Int(flagMaxData, config.Unlimited, "Maximum bytes of HTML stored (-1 for no limit)")

	return cmd
}

// runIndexSiteCmd executes the index site command.
func runIndexSiteCmd(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, args)
	if err != nil {
		return err
	}
	noExternals, err := cmd.Flags().GetBool(flagNoExternals)
	if err != nil {
		return err
	}

	ctx, cancel := e.signalContext(cmd.Context())
	defer cancel()
	defer e.serveMetrics()()

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	roots := make([]model.URL, len(args))
	for i, arg := range args {
		roots[i] = model.NewURL(arg)
	}

	fmt.Fprintf(e.out, "Indexing %d sites (concurrency: %d)...\n\n", len(roots), e.cfg.Concurrency)
	start := time.Now()

	batch := indexer.NewBatchIndexer(
		func(root model.URL) (*indexer.Indexer, error) {
			return e.newIndexer(root.Host(), store)
		},
		indexer.WithConcurrency(e.cfg.Concurrency),
		indexer.WithBatchLogger(e.logger),
	)
	results, err := batch.IndexSites(ctx, roots, !noExternals, nil)
	if err != nil {
		return err
	}

	failed := printResults(e.out, results)
	fmt.Fprintf(e.out, "\nIndexing completed in %s\n", time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		return fmt.Errorf("%d of %d sites failed", failed, len(results))
	}
	return nil
}

// runIndexPageCmd executes the index page command.
func runIndexPageCmd(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, args)
	if err != nil {
		return err
	}
	noExternals, err := cmd.Flags().GetBool(flagNoExternals)
	if err != nil {
		return err
	}

	ctx, cancel := e.signalContext(cmd.Context())
	defer cancel()

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	results := make([]*indexer.Result, 0, len(args))
	for _, arg := range args {
		u := model.NewURL(arg)
		ix, err := e.newIndexer(u.Host(), store)
		if err != nil {
			return err
		}
		res, err := ix.IndexPage(ctx, u, !noExternals, nil)
		if errors.Is(err, context.Canceled) {
			return err
		}
		if res == nil {
			res = &indexer.Result{Root: u}
		}
		res.Err = err
		results = append(results, res)
	}

	if failed := printResults(e.out, results); failed > 0 {
		return fmt.Errorf("%d of %d pages failed", failed, len(results))
	}
	return nil
}

// runIndexWebCmd executes the index web command.
func runIndexWebCmd(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, args)
	if err != nil {
		return err
	}

	ctx, cancel := e.signalContext(cmd.Context())
	defer cancel()
	defer e.serveMetrics()()

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) > 0 {
		seeds := make([]model.URL, len(args))
		for i, arg := range args {
			seeds[i] = model.NewURL(arg)
		}
		added, err := store.InsertURLs(ctx, seeds)
		if err != nil {
			return fmt.Errorf("failed to store seed urls: %w", err)
		}
		e.logger.Info("seed urls stored", "added", added)
	}

	ix, err := e.newIndexer("", store)
	if err != nil {
		return err
	}

	start := time.Now()
	web, err := ix.IndexWeb(ctx, e.cfg.MaxSites, e.cfg.MaxDataBytes)
	if web != nil {
		printResults(e.out, web.Results)
		fmt.Fprintf(e.out, "\nIndexed %d sites, %d documents, %d bytes in %s\n",
			web.Sites, web.Documents, web.Bytes, time.Since(start).Round(time.Millisecond))
	}
	return err
}

// newIndexer creates an Indexer storing into store with a crawler set up
// for host.
func (e *env) newIndexer(host string, store database.Store) (*indexer.Indexer, error) {
	c, err := e.newCrawler(host, nil)
	if err != nil {
		return nil, err
	}
	return indexer.New(c, store,
		indexer.WithLogger(e.logger),
		indexer.WithMetrics(e.metrics),
	), nil
}

// printResults writes one line per result and returns how many failed.
func printResults(w io.Writer, results []*indexer.Result) int {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(w, "FAILED   %s: %v\n", res.Root, res.Err)
			continue
		}
		fmt.Fprintf(w, "INDEXED  %s: %d pages, %d documents, %d bytes, %d external urls (%s)\n",
			res.Root, res.Pages, res.Documents, res.Bytes, res.Externals, res.Duration.Round(time.Millisecond))
	}
	return failed
}
