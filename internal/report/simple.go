package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitecrawler/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text.
type SimpleWriter struct {
	baseWriter

	// verbose lists every page and external link of a site report.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every page and external link.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// WriteSite implements Writer.
func (w *SimpleWriter) WriteSite(report *model.SiteReport) (int, error) {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Site:           %s\n", report.Root)
	fmt.Fprintf(&sb, "Crawl Date:     %s\n", report.DateCrawled.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Duration:       %s\n", report.Duration.Round(1e6))
	fmt.Fprintf(&sb, "Pages Crawled:  %d\n", report.PagesCrawled())
	fmt.Fprintf(&sb, "Empty Pages:    %d\n", report.EmptyPages())
	fmt.Fprintf(&sb, "HTML Bytes:     %d\n", report.Bytes())
	fmt.Fprintf(&sb, "External Links: %d\n", len(report.Externals))
	if report.Error != "" {
		fmt.Fprintf(&sb, "Status:         ERROR - %s\n", report.Error)
	} else {
		sb.WriteString("Status:         Complete\n")
	}
	sb.WriteString("\n")

	if hosts := report.ExternalHosts(); len(hosts) > 0 {
		section(&sb, "EXTERNAL HOSTS")
		for _, h := range hosts {
			fmt.Fprintf(&sb, "  %4d  %s\n", h.Count, h.Host)
		}
		sb.WriteString("\n")
	}

	if w.verbose {
		section(&sb, "PAGES")
		for _, p := range report.Pages {
			if p.Empty {
				fmt.Fprintf(&sb, "  [-] %s (empty)\n", p.URL)
				continue
			}
			fmt.Fprintf(&sb, "  [+] %s  %q  %d bytes, %d links\n", p.URL, p.Title, p.Bytes, p.Links)
		}
		sb.WriteString("\n")

		if len(report.Externals) > 0 {
			section(&sb, "EXTERNAL LINKS")
			for _, u := range report.Externals {
				fmt.Fprintf(&sb, "  %s\n", u)
			}
			sb.WriteString("\n")
		}
	}

	return io.WriteString(w.output, sb.String())
}

// WriteSearch implements Writer. Each result is printed as its title,
// keywords, best sentence and URL, followed by a blank line.
func (w *SimpleWriter) WriteSearch(report *model.SearchReport) (int, error) {
	var sb strings.Builder

	if len(report.Results) == 0 {
		fmt.Fprintf(&sb, "No results for %q\n", report.Query)
		return io.WriteString(w.output, sb.String())
	}

	for _, r := range report.Results {
		sb.WriteString(orDash(r.Title))
		sb.WriteString("\n")
		if len(r.Keywords) > 0 {
			sb.WriteString(strings.Join(r.Keywords, ", "))
			sb.WriteString("\n")
		}
		if r.Sentence != "" {
			sb.WriteString(r.Sentence)
			sb.WriteString("\n")
		}
		sb.WriteString(r.URL.String())
		sb.WriteString("\n\n")
	}
	return io.WriteString(w.output, sb.String())
}
