package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecrawler"

	// DefaultRedirectLimit is the number of redirect hops followed per fetch.
	DefaultRedirectLimit = 5

	// DefaultTimeout bounds one HTTP request, redirects excluded.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDelay is the minimum delay between two requests.
	// Zero sends requests back to back.
	DefaultCrawlDelay = 0 * time.Second

	// DefaultUserAgent identifies sitecrawler in HTTP requests.
	DefaultUserAgent = "sitecrawler/1.0 (+https://github.com/nao1215/sitecrawler)"

	// DefaultMaxBodySize limits the response body size read per request.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultConcurrency is the number of sites indexed at once.
	DefaultConcurrency = 4

	// DefaultDBDriver is the database used when none is configured.
	DefaultDBDriver = "sqlite"

	// DefaultSearchLimit is the number of search results shown.
	DefaultSearchLimit = 10

	// DefaultSentenceLimit is the length of a search result sentence.
	DefaultSentenceLimit = 80

	// Unlimited disables MaxSites or MaxDataBytes.
	Unlimited = -1
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultExtensions are the file extensions a site crawl follows besides
// extension-less paths.
var DefaultExtensions = []string{"htm", "html"}

// Config holds all configuration options for sitecrawler.
// It is filled from CLI flags and passed down explicitly.
type Config struct {
	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// RedirectLimit is the number of redirect hops followed per fetch.
	// Zero follows none.
	RedirectLimit int

	// Extensions are the file extensions followed during a site crawl,
	// without the dot.
	Extensions []string

	// CrawlDelay is the minimum delay between HTTP requests.
	CrawlDelay time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// Concurrency is the number of sites indexed at once.
	Concurrency int

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .sitecrawler is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds per-site settings loaded from the config file.
	SiteConfigs *File

	// JSONReport prints results as JSON.
	JSONReport bool

	// MarkdownReport prints results as GitHub Flavored Markdown.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// Targets are the URLs given on the command line.
	Targets []string

	// DBDriver is "sqlite" or "postgres".
	DBDriver string

	// DBDir is the directory of the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/sitecrawler on Linux).
	DBDir string

	// DatabaseURL is the Postgres connection string.
	DatabaseURL string

	// MaxSites stops a web index after this many sites. Unlimited by default.
	MaxSites int

	// MaxDataBytes stops a web index after this many bytes of HTML were
	// stored. Unlimited by default.
	MaxDataBytes int

	// SearchLimit is the number of search results shown. Zero shows all.
	SearchLimit int

	// SentenceLimit is the length of a search result sentence.
	// Zero keeps whole sentences. Must be even.
	SentenceLimit int

	// MetricsAddr serves Prometheus metrics on this address when set.
	MetricsAddr string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:       DefaultTimeout,
		RedirectLimit: DefaultRedirectLimit,
		Extensions:    append([]string(nil), DefaultExtensions...),
		CrawlDelay:    DefaultCrawlDelay,
		UserAgent:     DefaultUserAgent,
		MaxBodySize:   DefaultMaxBodySize,
		Concurrency:   DefaultConcurrency,
		DBDriver:      DefaultDBDriver,
		DBDir:         XDGDataDir(),
		MaxSites:      Unlimited,
		MaxDataBytes:  Unlimited,
		SearchLimit:   DefaultSearchLimit,
		SentenceLimit: DefaultSentenceLimit,
	}
}

// XDGDataDir returns the XDG data directory for sitecrawler.
// On Linux: ~/.local/share/sitecrawler
// On macOS: ~/Library/Application Support/sitecrawler
// On Windows: %LOCALAPPDATA%\sitecrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecrawler.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DBTarget returns what database.OpenStore expects for the configured
// driver: the SQLite directory or the Postgres connection string.
func (c *Config) DBTarget() string {
	if c.DBDriver == DriverPostgres {
		return c.DatabaseURL
	}
	return c.DBDir
}

// Site returns the merged settings for host. Missing settings fall back to
// the global configuration.
func (c *Config) Site(host string) SiteConfig {
	var site SiteConfig
	if c.SiteConfigs != nil {
		site = c.SiteConfigs.GetSiteConfig(host)
	}
	if site.RedirectLimit == nil {
		limit := c.RedirectLimit
		site.RedirectLimit = &limit
	}
	if len(site.Extensions) == 0 {
		site.Extensions = c.Extensions
	}
	return site
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	for _, target := range c.Targets {
		if err := model.NewURL(target).Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
		}
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.RedirectLimit < 0 {
		return ErrInvalidRedirectLimit
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDBDriver, c.DBDriver)
	}

	if c.MaxSites < Unlimited || c.MaxDataBytes < Unlimited {
		return ErrInvalidIndexLimit
	}

	if c.SearchLimit < 0 {
		return ErrInvalidSearchLimit
	}

	if c.SentenceLimit < 0 || c.SentenceLimit%2 != 0 {
		return ErrInvalidSentenceLimit
	}

	return nil
}
