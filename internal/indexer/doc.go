// Package indexer stores crawled sites in a database.Store.
//
// An Indexer crawls one site (IndexSite) or one page (IndexPage), inserts the
// resulting documents, optionally queues the external URLs it found as
// uncrawled, and marks the crawled root in the store. IndexWeb repeats this
// for uncrawled URLs taken from the store until a site or data limit is hit,
// so every site indexed feeds new sites to index.
//
// BatchIndexer indexes several sites concurrently. Each site gets its own
// Indexer from a factory because a crawler.Crawler is not safe for
// concurrent use.
package indexer
