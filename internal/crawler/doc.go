// Package crawler fetches web pages and walks whole sites.
//
// # Components
//
//   - FetchClient: a single GET, never following redirects. HTTPClient is the
//     net/http implementation with optional SOCKS5 proxy, rate limiting,
//     per-site headers and cookie, and a body size cap.
//   - Resolver: follows redirects itself under a RedirectPolicy (hop limit,
//     same-host restriction) so every hop can be observed and rejected.
//   - Crawler: turns a URL into a model.Document (CrawlURL, CrawlURLs) and
//     discovers a whole site by following same-host links (CrawlSite).
//
// # Failures
//
// Transport errors, empty bodies, rejected and over-long redirect chains are
// soft: the page is treated as empty and the crawl carries on. Invalid URLs,
// a missing host for a same-host policy, observer errors and context
// cancellation are returned.
//
// # Usage
//
//	client, err := crawler.NewHTTPClient(crawler.WithDelay(time.Second))
//	c := crawler.NewCrawler(client)
//	externals, err := c.CrawlSite(ctx, model.NewURL("http://example.com"),
//		func(doc *model.Document) error {
//			fmt.Println(doc.URL(), doc.Title())
//			return nil
//		})
//
// A Crawler is not safe for concurrent use; create one per goroutine.
package crawler
