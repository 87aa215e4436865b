// Package database stores crawled documents and the URLs waiting to be
// crawled.
//
// Two Store implementations share one data model:
//
//   - CrawlDB: a single SQLite file (modernc.org/sqlite, CGO-free), the default.
//   - PostgresDB: a PostgreSQL database through a pgx connection pool, for
//     indexes shared between several crawler processes.
//
// Both keep two tables. "urls" holds every known URL with its crawl state;
// "documents" holds one row per crawled page keyed by URL, with the fields of
// model.Document (title, author, keywords, links, text, base, hash, html).
//
// Search is a substring match over title, keywords and text. Matches are
// scored in Go (title and keyword hits weigh more than body text) so both
// backends rank identically.
package database
