package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/sitecrawler/internal/model"
)

// JSONWriter outputs reports as JSON, one document per report.
type JSONWriter struct {
	baseWriter

	// indent is the per-level indentation; "" writes compact JSON.
	indent string

	// version is included in the output when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint indents the output by two spaces.
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = "  "
	}
}

// WithVersion adds a "version" field to every report.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// siteJSON adds the derived totals to a site report.
type siteJSON struct {
	Version string `json:"version,omitempty"`
	*model.SiteReport
	PagesCrawled  int               `json:"pages_crawled"`
	EmptyPages    int               `json:"empty_pages"`
	Bytes         int               `json:"bytes"`
	ExternalHosts []model.HostCount `json:"external_hosts"`
}

type searchJSON struct {
	Version string `json:"version,omitempty"`
	*model.SearchReport
}

// WriteSite implements Writer.
func (w *JSONWriter) WriteSite(report *model.SiteReport) (int, error) {
	return w.writeJSON(siteJSON{
		Version:       w.version,
		SiteReport:    report,
		PagesCrawled:  report.PagesCrawled(),
		EmptyPages:    report.EmptyPages(),
		Bytes:         report.Bytes(),
		ExternalHosts: report.ExternalHosts(),
	})
}

// WriteSearch implements Writer.
func (w *JSONWriter) WriteSearch(report *model.SearchReport) (int, error) {
	return w.writeJSON(searchJSON{Version: w.version, SearchReport: report})
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent != "" {
		data, err = json.MarshalIndent(v, "", w.indent)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	return w.output.Write(append(data, '\n'))
}
