package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawler/internal/model"
)

// FileName is the SQLite database file created inside the database directory.
const FileName = "sitecrawler.db"

// CrawlDB is the SQLite Store.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the CrawlDB in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS urls (
		url TEXT PRIMARY KEY,
		crawled INTEGER NOT NULL DEFAULT 0,
		date_crawled DATETIME,
		date_added DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_urls_crawled ON urls(crawled, date_added);

	-- keywords, links and text are JSON arrays
	CREATE TABLE IF NOT EXISTS documents (
		url TEXT PRIMARY KEY,
		html TEXT,
		title TEXT,
		author TEXT,
		keywords TEXT,
		links TEXT,
		text TEXT,
		base TEXT,
		hash TEXT,
		date_crawled DATETIME,
		date_added DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(hash);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// InsertDocument implements Store.
func (cdb *CrawlDB) InsertDocument(ctx context.Context, doc *model.Document) error {
	row := newDocumentRow(doc)

	keywords, err := json.Marshal(row.Keywords)
	if err != nil {
		return fmt.Errorf("failed to serialize keywords: %w", err)
	}
	links, err := json.Marshal(row.Links)
	if err != nil {
		return fmt.Errorf("failed to serialize links: %w", err)
	}
	text, err := json.Marshal(row.Text)
	if err != nil {
		return fmt.Errorf("failed to serialize text: %w", err)
	}

	query := `
	INSERT INTO documents (url, html, title, author, keywords, links, text, base, hash, date_crawled)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		html = excluded.html,
		title = excluded.title,
		author = excluded.author,
		keywords = excluded.keywords,
		links = excluded.links,
		text = excluded.text,
		base = excluded.base,
		hash = excluded.hash,
		date_crawled = excluded.date_crawled
	`

	_, err = cdb.db.ExecContext(ctx, query,
		row.URL,
		row.HTML,
		row.Title,
		row.Author,
		string(keywords),
		string(links),
		string(text),
		row.Base,
		row.Hash,
		formatTimestamp(row.DateCrawled),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// InsertURLs implements Store.
func (cdb *CrawlDB) InsertURLs(ctx context.Context, urls []model.URL) (int, error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO urls (url, crawled, date_crawled) VALUES (?, ?, ?)
	ON CONFLICT(url) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare url insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, u := range urls {
		res, err := stmt.ExecContext(ctx, u.String(), u.Crawled, formatTimestamp(u.CrawledAt))
		if err != nil {
			return 0, fmt.Errorf("failed to insert url %s: %w", u, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit urls: %w", err)
	}
	return inserted, nil
}

// UpdateURL implements Store.
func (cdb *CrawlDB) UpdateURL(ctx context.Context, u model.URL) error {
	query := `
	INSERT INTO urls (url, crawled, date_crawled) VALUES (?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		crawled = excluded.crawled,
		date_crawled = excluded.date_crawled
	`
	if _, err := cdb.db.ExecContext(ctx, query, u.String(), u.Crawled, formatTimestamp(u.CrawledAt)); err != nil {
		return fmt.Errorf("failed to update url %s: %w", u, err)
	}
	return nil
}

// UncrawledURLs implements Store.
func (cdb *CrawlDB) UncrawledURLs(ctx context.Context, limit int) ([]model.URL, error) {
	query := `SELECT url FROM urls WHERE crawled = 0 ORDER BY date_added, rowid`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uncrawled urls: %w", err)
	}
	defer rows.Close()

	var urls []model.URL
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, model.NewURL(s))
	}
	return urls, rows.Err()
}

// URL returns the stored URL with its crawl state, or an error wrapping
// sql.ErrNoRows.
func (cdb *CrawlDB) URL(ctx context.Context, rawURL string) (model.URL, error) {
	var (
		crawled     bool
		dateCrawled sql.NullString
	)
	err := cdb.db.QueryRowContext(ctx, `SELECT crawled, date_crawled FROM urls WHERE url = ?`, rawURL).
		Scan(&crawled, &dateCrawled)
	if err != nil {
		return model.URL{}, fmt.Errorf("failed to get url %s: %w", rawURL, err)
	}

	u := model.NewURL(rawURL)
	if crawled {
		u = u.MarkCrawled(parseTimestamp(dateCrawled.String))
	}
	return u, nil
}

// Search implements Store.
func (cdb *CrawlDB) Search(ctx context.Context, query string, limit int) ([]*model.Document, error) {
	if query == "" {
		return nil, model.ErrEmptyQuery
	}

	pattern := likePattern(query)
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, html, title, author, keywords, links, text, base, hash, date_crawled
	FROM documents
	WHERE title LIKE ? ESCAPE '\' OR keywords LIKE ? ESCAPE '\' OR text LIKE ? ESCAPE '\'
	ORDER BY date_added, rowid
	`, pattern, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	var candidates []documentRow
	for rows.Next() {
		row, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rankRows(candidates, query, limit)
}

func scanDocumentRow(rows *sql.Rows) (documentRow, error) {
	var (
		row                    documentRow
		html, title, author    sql.NullString
		keywords, links, text  sql.NullString
		base, hash, crawledStr sql.NullString
	)
	if err := rows.Scan(&row.URL, &html, &title, &author, &keywords, &links, &text, &base, &hash, &crawledStr); err != nil {
		return row, fmt.Errorf("failed to scan document: %w", err)
	}

	row.HTML = html.String
	row.Title = title.String
	row.Author = author.String
	row.Base = base.String
	row.Hash = hash.String
	row.DateCrawled = parseTimestamp(crawledStr.String)

	for _, col := range []struct {
		raw  sql.NullString
		dest *[]string
	}{{keywords, &row.Keywords}, {links, &row.Links}, {text, &row.Text}} {
		if col.raw.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(col.raw.String), col.dest); err != nil {
			return row, fmt.Errorf("failed to parse document %s: %w", row.URL, err)
		}
	}
	return row, nil
}

// CountURLs implements Store.
func (cdb *CrawlDB) CountURLs(ctx context.Context) (int, error) {
	return cdb.count(ctx, "urls")
}

// CountDocuments implements Store.
func (cdb *CrawlDB) CountDocuments(ctx context.Context) (int, error) {
	return cdb.count(ctx, "documents")
}

func (cdb *CrawlDB) count(ctx context.Context, table string) (int, error) {
	var n int
	// table is one of two constants above.
	if err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// errNotFound is wrapped by PostgresDB.URL for a missing row.
var errNotFound = errors.New("not found")

// IsNotFound reports whether err means a row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, errNotFound)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries every known format and returns zero time when none matches.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// formatTimestamp stores t as RFC 3339 in UTC, or NULL for zero time.
func formatTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
