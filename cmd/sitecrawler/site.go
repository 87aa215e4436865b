package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/model"
)

// NewSiteCmd creates the site command.
func NewSiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site <url>...",
		Short: "Crawl whole websites and report what was found",
		Long: `Site crawls each website starting at the given URL and following its
internal links until no new page is found. Redirects leaving the site are not
followed, and only extension-less pages or pages with one of --extensions are
crawled.

The report lists the pages crawled and the external hosts the site links to.
Nothing is stored; use "sitecrawler index site" for that.

Examples:
  # Crawl a site and print a summary
  sitecrawler site https://example.com

  # Write a Markdown report with a chart of linked hosts
  sitecrawler site -m -o report.md https://example.com

  # Follow .php pages too
  sitecrawler site --extensions html,htm,php https://example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSiteCmd,
	}

	addClientFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

// runSiteCmd executes the site command.
func runSiteCmd(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, args)
	if err != nil {
		return err
	}

	ctx, cancel := e.signalContext(cmd.Context())
	defer cancel()
	defer e.serveMetrics()()

	w, closeOutput, err := e.reportWriter()
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck

	for _, target := range args {
		rep, err := e.crawlSite(ctx, model.NewURL(target))
		if err != nil {
			return err
		}
		if _, err := w.WriteSite(rep); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return closeOutput()
}

// crawlSite crawls the site at root into a report. Crawl failures are
// recorded in the report; only cancellation is returned.
func (e *env) crawlSite(ctx context.Context, root model.URL) (*model.SiteReport, error) {
	rep := model.NewSiteReport(root)

	c, err := e.newCrawler(root.Host(), nil)
	if err != nil {
		return nil, err
	}

	e.logger.Info("crawling site", "root", root.String())
	externals, err := c.CrawlSite(ctx, root, func(doc *model.Document) error {
		rep.AddDocument(doc)
		return nil
	})
	rep.Duration = time.Since(rep.DateCrawled)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		e.logger.Warn("site crawl failed", "root", root.String(), "error", err)
		rep.Error = err.Error()
		return rep, nil
	}
	rep.Externals = externals
	e.logger.Info("site crawled", "root", root.String(), "pages", rep.PagesCrawled(), "elapsed", rep.Duration)
	return rep, nil
}
