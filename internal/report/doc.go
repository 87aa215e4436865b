// Package report renders site crawl summaries and search results.
//
// Three Writers share one interface:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for other tools
//   - MarkdownWriter: GitHub Flavored Markdown with tables and a mermaid
//     chart of external hosts
package report
