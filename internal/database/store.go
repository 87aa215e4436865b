package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Supported Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by OpenStore for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown database driver")

// Store persists documents and URLs. Implementations are safe for
// concurrent use.
type Store interface {
	// InsertDocument inserts or replaces the document stored under its URL.
	InsertDocument(ctx context.Context, doc *model.Document) error

	// InsertURLs adds URLs not stored yet and returns how many were added.
	// Existing URLs keep their crawl state.
	InsertURLs(ctx context.Context, urls []model.URL) (int, error)

	// UpdateURL inserts u or overwrites its crawl state.
	UpdateURL(ctx context.Context, u model.URL) error

	// UncrawledURLs returns up to limit URLs never crawled, oldest first.
	// limit <= 0 means no limit.
	UncrawledURLs(ctx context.Context, limit int) ([]model.URL, error)

	// Search returns up to limit documents matching query, best score first.
	Search(ctx context.Context, query string, limit int) ([]*model.Document, error)

	CountURLs(ctx context.Context) (int, error)
	CountDocuments(ctx context.Context) (int, error)
	Close() error
}

// OpenStore opens a Store by driver name. target is the database directory
// for sqlite and the connection string for postgres.
func OpenStore(ctx context.Context, driver, target string) (Store, error) {
	switch driver {
	case "", DriverSQLite:
		return Open(target, DefaultOptions())
	case DriverPostgres:
		return OpenPostgres(ctx, target)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// documentRow is the stored form of a document shared by both backends.
type documentRow struct {
	URL         string
	HTML        string
	Title       string
	Author      string
	Keywords    []string
	Links       []string
	Text        []string
	Base        string
	Hash        string
	DateCrawled time.Time
}

func newDocumentRow(doc *model.Document) documentRow {
	return documentRow{
		URL:         doc.URL().String(),
		HTML:        doc.HTML(),
		Title:       doc.Title(),
		Author:      doc.Author(),
		Keywords:    nonNil(doc.Keywords()),
		Links:       nonNil(model.URLStrings(doc.Links())),
		Text:        nonNil(doc.Text()),
		Base:        doc.Base(),
		Hash:        doc.Hash(),
		DateCrawled: doc.CrawledAt(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// record converts the row into the record a RecordSource is built from.
func (r documentRow) record(score float64) model.Record {
	rec := model.Record{
		"url":      r.URL,
		"html":     r.HTML,
		"score":    score,
		"title":    r.Title,
		"author":   r.Author,
		"keywords": r.Keywords,
		"links":    r.Links,
		"text":     r.Text,
		"base":     r.Base,
		"hash":     r.Hash,
		"crawled":  true,
	}
	if !r.DateCrawled.IsZero() {
		rec["date_crawled"] = r.DateCrawled
	}
	return rec
}

// Search weights.
const (
	titleWeight   = 2.0
	keywordWeight = 2.0
	textWeight    = 1.0
)

// score counts case-insensitive occurrences of query in the row's title,
// keywords and text.
func (r documentRow) score(query string) float64 {
	q := strings.ToLower(query)
	count := func(s string) float64 {
		return float64(strings.Count(strings.ToLower(s), q))
	}

	total := titleWeight * count(r.Title)
	for _, k := range r.Keywords {
		total += keywordWeight * count(k)
	}
	for _, t := range r.Text {
		total += textWeight * count(t)
	}
	return total
}

// rankRows scores candidate rows, drops non-matches and builds documents,
// best first. Equal scores keep the candidates' order.
func rankRows(rows []documentRow, query string, limit int) ([]*model.Document, error) {
	type scored struct {
		row   documentRow
		score float64
	}
	var matches []scored
	for _, r := range rows {
		if s := r.score(query); s > 0 {
			matches = append(matches, scored{row: r, score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	docs := make([]*model.Document, 0, len(matches))
	for _, m := range matches {
		doc, err := model.NewDocument(model.RecordSource{Record: m.row.record(m.score)})
		if err != nil {
			return nil, fmt.Errorf("failed to load document %s: %w", m.row.URL, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// likePattern escapes query for a LIKE/ILIKE match with '\' as escape character.
func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}
