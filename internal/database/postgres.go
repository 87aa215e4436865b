package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nao1215/sitecrawler/internal/model"
)

// PostgresDB is the PostgreSQL Store.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, checks the connection and creates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}

	pdb := &PostgresDB{pool: pool}
	if err := pdb.createTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return pdb, nil
}

// Close closes the connection pool.
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS urls (
		id BIGSERIAL,
		url TEXT PRIMARY KEY,
		crawled BOOLEAN NOT NULL DEFAULT FALSE,
		date_crawled TIMESTAMPTZ,
		date_added TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_urls_crawled ON urls(crawled, date_added);

	CREATE TABLE IF NOT EXISTS documents (
		id BIGSERIAL,
		url TEXT PRIMARY KEY,
		html TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		keywords TEXT[] NOT NULL DEFAULT '{}',
		links TEXT[] NOT NULL DEFAULT '{}',
		text TEXT[] NOT NULL DEFAULT '{}',
		base TEXT NOT NULL DEFAULT '',
		hash TEXT NOT NULL DEFAULT '',
		date_crawled TIMESTAMPTZ,
		date_added TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(hash);
	`
	_, err := p.pool.Exec(ctx, schema)
	return err
}

// InsertDocument implements Store.
func (p *PostgresDB) InsertDocument(ctx context.Context, doc *model.Document) error {
	row := newDocumentRow(doc)
	_, err := p.pool.Exec(ctx, `
	INSERT INTO documents (url, html, title, author, keywords, links, text, base, hash, date_crawled)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (url) DO UPDATE SET
		html = EXCLUDED.html,
		title = EXCLUDED.title,
		author = EXCLUDED.author,
		keywords = EXCLUDED.keywords,
		links = EXCLUDED.links,
		text = EXCLUDED.text,
		base = EXCLUDED.base,
		hash = EXCLUDED.hash,
		date_crawled = EXCLUDED.date_crawled`,
		row.URL, row.HTML, row.Title, row.Author, row.Keywords, row.Links, row.Text,
		row.Base, row.Hash, nullTime(row.DateCrawled),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// InsertURLs implements Store.
func (p *PostgresDB) InsertURLs(ctx context.Context, urls []model.URL) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, u := range urls {
		batch.Queue(`INSERT INTO urls (url, crawled, date_crawled) VALUES ($1, $2, $3)
			ON CONFLICT (url) DO NOTHING`,
			u.String(), u.Crawled, nullTime(u.CrawledAt))
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for _, u := range urls {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to insert url %s: %w", u, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// UpdateURL implements Store.
func (p *PostgresDB) UpdateURL(ctx context.Context, u model.URL) error {
	_, err := p.pool.Exec(ctx, `
	INSERT INTO urls (url, crawled, date_crawled) VALUES ($1, $2, $3)
	ON CONFLICT (url) DO UPDATE SET
		crawled = EXCLUDED.crawled,
		date_crawled = EXCLUDED.date_crawled`,
		u.String(), u.Crawled, nullTime(u.CrawledAt))
	if err != nil {
		return fmt.Errorf("failed to update url %s: %w", u, err)
	}
	return nil
}

// UncrawledURLs implements Store.
func (p *PostgresDB) UncrawledURLs(ctx context.Context, limit int) ([]model.URL, error) {
	query := `SELECT url FROM urls WHERE NOT crawled ORDER BY date_added, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uncrawled urls: %w", err)
	}
	strs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan urls: %w", err)
	}

	urls := make([]model.URL, len(strs))
	for i, s := range strs {
		urls[i] = model.NewURL(s)
	}
	return urls, nil
}

// URL returns the stored URL with its crawl state. A missing URL returns an
// error for which IsNotFound reports true.
func (p *PostgresDB) URL(ctx context.Context, rawURL string) (model.URL, error) {
	var (
		crawled     bool
		dateCrawled *time.Time
	)
	err := p.pool.QueryRow(ctx, `SELECT crawled, date_crawled FROM urls WHERE url = $1`, rawURL).
		Scan(&crawled, &dateCrawled)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.URL{}, fmt.Errorf("failed to get url %s: %w", rawURL, errNotFound)
	}
	if err != nil {
		return model.URL{}, fmt.Errorf("failed to get url %s: %w", rawURL, err)
	}

	u := model.NewURL(rawURL)
	if crawled {
		var t time.Time
		if dateCrawled != nil {
			t = *dateCrawled
		}
		u = u.MarkCrawled(t)
	}
	return u, nil
}

// Search implements Store.
func (p *PostgresDB) Search(ctx context.Context, query string, limit int) ([]*model.Document, error) {
	if query == "" {
		return nil, model.ErrEmptyQuery
	}

	rows, err := p.pool.Query(ctx, `
	SELECT url, html, title, author, keywords, links, text, base, hash, date_crawled
	FROM documents
	WHERE title ILIKE $1
		OR EXISTS (SELECT 1 FROM unnest(keywords) k WHERE k ILIKE $1)
		OR EXISTS (SELECT 1 FROM unnest(text) t WHERE t ILIKE $1)
	ORDER BY date_added, id`, likePattern(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (documentRow, error) {
		var (
			r           documentRow
			dateCrawled *time.Time
		)
		err := row.Scan(&r.URL, &r.HTML, &r.Title, &r.Author, &r.Keywords, &r.Links, &r.Text,
			&r.Base, &r.Hash, &dateCrawled)
		if dateCrawled != nil {
			r.DateCrawled = *dateCrawled
		}
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan documents: %w", err)
	}

	return rankRows(candidates, query, limit)
}

// CountURLs implements Store.
func (p *PostgresDB) CountURLs(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM urls`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count urls: %w", err)
	}
	return n, nil
}

// CountDocuments implements Store.
func (p *PostgresDB) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
