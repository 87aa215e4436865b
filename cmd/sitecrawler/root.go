package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitecrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecrawler",
		Short: "Crawl, index and search websites",
		Long: `sitecrawler crawls web pages and whole websites, extracts their title,
keywords, links and text, stores them in a SQLite or Postgres database and
searches the stored documents.

Redirects are followed one hop at a time up to a limit, and a site crawl never
leaves the host it started on. External links found along the way can be
queued and indexed later with "sitecrawler index web".`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP(flagVerbose, "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool(flagLogJSON, false, "Write logs as JSON")
	cmd.PersistentFlags().StringP(flagConfig, "c", "",
		"Configuration file path (default: .sitecrawler in current, XDG config or home directory)")
	cmd.PersistentFlags().String(flagMetricsAddr, "",
		"Serve Prometheus metrics at http://<addr>/metrics while the command runs")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewSiteCmd())
	cmd.AddCommand(NewIndexCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
