package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/model"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Fetch pages and print what was extracted from them",
		Long: `Crawl fetches each URL, following redirects up to the redirect limit,
and prints the extracted title, author, keywords and link counts.

URLs on the same host share one HTTP client, and per-site settings from the
configuration file apply. A URL that cannot be fetched is reported and
skipped.

Examples:
  # Print what sitecrawler extracts from a page
  sitecrawler crawl https://example.com

  # Print documents as JSON lines, including their text
  sitecrawler crawl --json https://example.com https://example.org

  # Extract extra fields with xpath expressions
  sitecrawler crawl -x price=//span[@class='price'] https://shop.example.com/item`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawlCmd,
	}

	addClientFlags(cmd)
	cmd.Flags().BoolP(flagJSON, "j", false, "Print documents as JSON lines")
	cmd.Flags().StringArrayP("extract", "x", nil,
		"Extra field to extract, as name=xpath (repeatable)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd, args)
	if err != nil {
		return err
	}

	defs, err := cmd.Flags().GetStringArray("extract")
	if err != nil {
		return err
	}
	registry, err := parseExtractors(defs)
	if err != nil {
		return err
	}
	extra := make([]string, 0, len(defs))
	for _, def := range defs {
		name, _, _ := strings.Cut(def, "=")
		extra = append(extra, strings.TrimSpace(name))
	}

	ctx, cancel := e.signalContext(cmd.Context())
	defer cancel()
	defer e.serveMetrics()()

	show := func(doc *model.Document) error {
		if doc.IsEmpty() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Nothing fetched from %s\n", doc.URL())
			return nil
		}
		if e.cfg.JSONReport {
			return json.NewEncoder(e.out).Encode(doc)
		}
		return printDocument(e.out, doc, extra)
	}

	for _, group := range groupByHost(args) {
		c, err := e.newCrawler(group[0].Host(), registry)
		if err != nil {
			return err
		}
		if _, err := c.CrawlURLs(ctx, group, show); err != nil {
			return err
		}
	}
	return nil
}

// groupByHost groups targets by host, keeping the order in which hosts and
// URLs first appear.
func groupByHost(targets []string) [][]model.URL {
	var groups [][]model.URL
	index := make(map[string]int)
	for _, target := range targets {
		u := model.NewURL(target)
		i, ok := index[u.Host()]
		if !ok {
			i = len(groups)
			index[u.Host()] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], u)
	}
	return groups
}

// printDocument writes a plain text summary of doc followed by the values
// of the extra fields.
func printDocument(w io.Writer, doc *model.Document, extra []string) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "URL:       %s\n", doc.URL())
	fmt.Fprintf(&sb, "Title:     %s\n", orDash(doc.Title()))
	fmt.Fprintf(&sb, "Author:    %s\n", orDash(doc.Author()))
	fmt.Fprintf(&sb, "Keywords:  %s\n", orDash(strings.Join(doc.Keywords(), ", ")))
	fmt.Fprintf(&sb, "Size:      %d bytes\n", doc.Size())
	fmt.Fprintf(&sb, "Links:     %d (%d internal, %d external)\n",
		len(doc.Links()), len(doc.InternalLinks()), len(doc.ExternalLinks()))
	fmt.Fprintf(&sb, "Text:      %d elements\n", len(doc.Text()))

	for _, name := range extra {
		value, _ := doc.Field(name)
		fmt.Fprintf(&sb, "%s: %s\n", name, orDash(formatValue(value)))
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// formatValue renders an extracted field value on one line.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprint(val)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
