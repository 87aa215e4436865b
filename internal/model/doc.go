// Package model defines the data types shared by the crawler, the indexer
// and the stores.
//
// This package contains the following main types:
//   - URL: A web address with its crawl state
//   - Document: A parsed page with classified links and searchable text
//   - Registry and Field: The named values a Document extracts, each with one
//     extractor for fetched markup and one for persisted records
//   - Record: The persisted form of URLs and Documents
//
// A Document is built from an explicit Source, either HTMLSource for a page
// that was just fetched or RecordSource for one loaded from a store. The same
// Registry drives both, so a field such as "title" reads the <title> element
// of fresh markup and the "title" key of a record.
//
// Link classification is relative to the document's own host (authority,
// port included). Text search is a linear, case-insensitive regular
// expression scan over the document's snippets; there is no index.
package model
