// Package log provides slog loggers that mask sensitive values.
//
// Crawling often needs credentials: per-site cookies and headers, database
// connection strings, tokens in query strings. SecureHandler masks them in
// every record:
//   - attributes named like credentials (cookie, authorization, password...)
//   - http.Header values, per header name
//   - passwords and sensitive query parameters inside URLs
//   - values shaped like bearer, basic or JWT tokens
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetch", "url", "https://example.com/?token=abc") // token=***REDACTED***
//	slog.SetDefault(logger)
package log
