package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/sitecrawler/internal/model"
)

// maxChartHosts is the number of hosts shown in the external host chart.
const maxChartHosts = 8

// MarkdownWriter outputs reports as GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteSite implements Writer.
func (w *MarkdownWriter) WriteSite(report *model.SiteReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Site Crawl Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Site", "`" + report.Root.String() + "`"},
			{"Crawl Date", report.DateCrawled.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration.Round(1e6).String()},
			{"Pages Crawled", strconv.Itoa(report.PagesCrawled())},
			{"Empty Pages", strconv.Itoa(report.EmptyPages())},
			{"HTML Bytes", strconv.Itoa(report.Bytes())},
			{"External Links", strconv.Itoa(len(report.Externals))},
		},
	})
	md.PlainText("")

	if report.Error != "" {
		md.Cautionf("The crawl stopped early: %s", report.Error)
		md.PlainText("")
	}

	w.writePages(md, report)
	w.writeExternalHosts(md, report)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.SiteReport) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages crawled.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Pages))
	for i, p := range report.Pages {
		status := "✅"
		if p.Empty {
			status = "⚠️ empty"
		}
		rows[i] = []string{
			truncateString(p.URL.String(), 60),
			truncateString(orDash(p.Title), 40),
			strconv.Itoa(p.Bytes),
			strconv.Itoa(p.Links),
			status,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Title", "Bytes", "Links", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeExternalHosts(md *markdown.Markdown, report *model.SiteReport) {
	md.H2("External Hosts")
	md.PlainText("")

	hosts := report.ExternalHosts()
	if len(hosts) == 0 {
		md.Tip("The site links to no other host.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("External links by host"),
		piechart.WithShowData(true),
	)
	for i, h := range hosts {
		if i == maxChartHosts {
			break
		}
		chart.LabelAndIntValue(h.Host, uint64(h.Count)) //nolint:gosec // counts are positive
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	lines := make([]string, len(hosts))
	for i, h := range hosts {
		lines[i] = fmt.Sprintf("`%s` (%d)", h.Host, h.Count)
	}
	md.BulletList(lines...)
	md.PlainText("")
}

// WriteSearch implements Writer.
func (w *MarkdownWriter) WriteSearch(report *model.SearchReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1f("Search results for %q", report.Query)
	md.PlainText("")

	if len(report.Results) == 0 {
		md.Note("No documents matched.")
		return len(md.String()), md.Build()
	}

	for _, r := range report.Results {
		md.H2(orDash(r.Title))
		md.PlainText("")
		if len(r.Keywords) > 0 {
			md.PlainTextf("Keywords: %s", strings.Join(r.Keywords, ", "))
			md.PlainText("")
		}
		if r.Sentence != "" {
			md.Blockquote(r.Sentence)
			md.PlainText("")
		}
		md.PlainTextf("%s (score %s)", markdown.Link(r.URL.String(), r.URL.String()), strconv.FormatFloat(r.Score, 'f', -1, 64))
		md.PlainText("")
	}
	return len(md.String()), md.Build()
}
