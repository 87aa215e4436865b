package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/model"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Search looks for the query in the title, keywords and text of every
indexed document, case-insensitively. Matches in the title and keywords weigh
twice as much as matches in the text. Each result shows the first sentence
containing the query, shortened around it to --sentence-limit characters.

Examples:
  # Search the default SQLite database
  sitecrawler search "static site generator"

  # Show all results as JSON with whole sentences
  sitecrawler search --limit 0 --sentence-limit 0 --json golang

  # Search a Postgres database
  sitecrawler search --db-driver postgres --database-url postgres://localhost/sites golang`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearchCmd,
	}

	addDBFlags(cmd)
	addReportFlags(cmd)
	cmd.Flags().IntP(flagLimit, "l", config.DefaultSearchLimit,
		"Maximum number of results (0 shows all)")
	cmd.Flags().IntP(flagSentenceLimit, "s", config.DefaultSentenceLimit,
		"Length of the sentence shown per result, an even number (0 keeps whole sentences)")

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, nil)
	if err != nil {
		return err
	}
	query := strings.Join(args, " ")

	ctx, cancel := e.signalContext(cmd.Context())
	defer cancel()

	store, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	docs, err := store.Search(ctx, query, e.cfg.SearchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	e.logger.Debug("search complete", "query", query, "results", len(docs))

	rep, err := model.NewSearchReport(query, docs, e.cfg.SentenceLimit)
	if err != nil {
		return err
	}

	w, closeOutput, err := e.reportWriter()
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck

	if _, err := w.WriteSearch(rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return closeOutput()
}
