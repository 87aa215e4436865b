package model

import (
	"cmp"
	"slices"
	"time"
)

// SiteReport summarizes one site crawl.
type SiteReport struct {
	// Root is the URL the crawl started from.
	Root URL `json:"root"`

	// DateCrawled is when the crawl started.
	DateCrawled time.Time `json:"date_crawled"`

	// Duration is how long the crawl took.
	Duration time.Duration `json:"duration"`

	// Pages lists every crawled page in crawl order, empty ones included.
	Pages []PageSummary `json:"pages"`

	// Externals are the external links found, in first-seen order.
	Externals []URL `json:"externals"`

	// Error is set when the crawl stopped early.
	Error string `json:"error,omitempty"`
}

// PageSummary describes one crawled page.
type PageSummary struct {
	URL   URL    `json:"url"`
	Title string `json:"title,omitempty"`
	Bytes int    `json:"bytes"`
	Links int    `json:"links"`
	Empty bool   `json:"empty,omitempty"`
}

// HostCount is the number of links pointing at one host.
type HostCount struct {
	Host  string `json:"host"`
	Count int    `json:"count"`
}

// NewSiteReport creates an empty report for a crawl of root starting now.
func NewSiteReport(root URL) *SiteReport {
	return &SiteReport{
		Root:        root,
		DateCrawled: time.Now(),
	}
}

// AddDocument records a crawled page.
func (r *SiteReport) AddDocument(doc *Document) {
	r.Pages = append(r.Pages, PageSummary{
		URL:   doc.URL(),
		Title: doc.Title(),
		Bytes: doc.Size(),
		Links: len(doc.Links()),
		Empty: doc.IsEmpty(),
	})
}

// PagesCrawled returns the number of non-empty pages.
func (r *SiteReport) PagesCrawled() int {
	n := 0
	for _, p := range r.Pages {
		if !p.Empty {
			n++
		}
	}
	return n
}

// EmptyPages returns the number of pages that yielded no HTML.
func (r *SiteReport) EmptyPages() int {
	return len(r.Pages) - r.PagesCrawled()
}

// Bytes returns the total HTML size of the crawled pages.
func (r *SiteReport) Bytes() int {
	total := 0
	for _, p := range r.Pages {
		total += p.Bytes
	}
	return total
}

// ExternalHosts counts external links per host, most linked first.
// Hosts with equal counts are sorted by name.
func (r *SiteReport) ExternalHosts() []HostCount {
	counts := make(map[string]int)
	for _, u := range r.Externals {
		counts[u.Host()]++
	}

	hosts := make([]HostCount, 0, len(counts))
	for host, n := range counts {
		hosts = append(hosts, HostCount{Host: host, Count: n})
	}
	slices.SortFunc(hosts, func(a, b HostCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Host, b.Host)
	})
	return hosts
}

// SearchResult is one document matched by a store search.
type SearchResult struct {
	URL      URL      `json:"url"`
	Title    string   `json:"title,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Score    float64  `json:"score"`

	// Sentence is the best matching text snippet, or "" when only the title
	// or keywords matched.
	Sentence string `json:"sentence,omitempty"`
}

// SearchReport holds the results of one query.
type SearchReport struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// NewSearchReport builds a report from store search results. Each result's
// sentence is the top hit of Document.Search with sentenceLimit.
func NewSearchReport(query string, docs []*Document, sentenceLimit int) (*SearchReport, error) {
	report := &SearchReport{
		Query:   query,
		Results: make([]SearchResult, 0, len(docs)),
	}
	for _, doc := range docs {
		hits, err := doc.Search(query, sentenceLimit)
		if err != nil {
			return nil, err
		}
		result := SearchResult{
			URL:      doc.URL(),
			Title:    doc.Title(),
			Keywords: doc.Keywords(),
			Score:    doc.Score(),
		}
		if len(hits) > 0 {
			result.Sentence = hits[0]
		}
		report.Results = append(report.Results, result)
	}
	return report, nil
}
