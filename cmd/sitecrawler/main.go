// Package main provides the entry point for the sitecrawler CLI.
//
// sitecrawler fetches web pages, crawls whole sites over their internal
// links, indexes the documents into a database and searches them.
//
// Usage:
//
//	sitecrawler crawl <url>...
//	sitecrawler site <url>...
//	sitecrawler index site <url>...
//	sitecrawler search <query>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
