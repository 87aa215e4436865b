package report

import (
	"io"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Writer renders reports to an output.
type Writer interface {
	// WriteSite outputs a site crawl summary.
	WriteSite(report *model.SiteReport) (int, error)

	// WriteSearch outputs the results of a search.
	WriteSearch(report *model.SearchReport) (int, error)
}

// MultiWriter writes every report to several Writers, for example to the
// terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteSite implements Writer. It stops at the first error.
func (m *MultiWriter) WriteSite(report *model.SiteReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSite(report) })
}

// WriteSearch implements Writer. It stops at the first error.
func (m *MultiWriter) WriteSearch(report *model.SearchReport) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteSearch(report) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the output shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// truncateString cuts s to maxLen runes, ending with "..." when cut.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// orDash returns "-" for an empty string.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
