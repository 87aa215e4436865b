package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidTarget is returned when a target is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRedirectLimit is returned when the redirect limit is negative.
	ErrInvalidRedirectLimit = errors.New("invalid redirect limit: must be non-negative")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidDBDriver is returned for a database driver other than sqlite
	// or postgres.
	ErrInvalidDBDriver = errors.New("invalid database driver: must be sqlite or postgres")

	// ErrMissingDatabaseURL is returned when postgres is selected without a
	// connection string.
	ErrMissingDatabaseURL = errors.New("missing database url: required for postgres")

	// ErrInvalidIndexLimit is returned when max sites or max data is below -1.
	ErrInvalidIndexLimit = errors.New("invalid index limit: must be -1 (unlimited) or more")

	// ErrInvalidSearchLimit is returned when the search limit is negative.
	ErrInvalidSearchLimit = errors.New("invalid search limit: must be non-negative")

	// ErrInvalidSentenceLimit is returned when the sentence limit is negative
	// or odd.
	ErrInvalidSentenceLimit = errors.New("invalid sentence limit: must be a non-negative even number")
)
