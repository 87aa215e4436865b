package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/crawler"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/log"
	"github.com/nao1215/sitecrawler/internal/metrics"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/report"
)

// Flag names read by buildConfig.
const (
	flagVerbose       = "verbose"
	flagLogJSON       = "log-json"
	flagConfig        = "config"
	flagMetricsAddr   = "metrics-addr"
	flagProxy         = "proxy"
	flagTimeout       = "timeout"
	flagRedirectLimit = "redirect-limit"
	flagExtensions    = "extensions"
	flagDelay         = "delay"
	flagUserAgent     = "user-agent"
	flagMaxBodySize   = "max-body-size"
	flagConcurrency   = "concurrency"
	flagDBDriver      = "db-driver"
	flagDBDir         = "db-dir"
	flagDatabaseURL   = "database-url"
	flagJSON          = "json"
	flagMarkdown      = "markdown"
	flagOutput        = "output"
	flagMaxSites      = "max-sites"
	flagMaxData       = "max-data"
	flagLimit         = "limit"
	flagSentenceLimit = "sentence-limit"
)

// databaseURLEnv is read when --database-url is not given.
const databaseURLEnv = "SITECRAWLER_DATABASE_URL"

// metricsShutdownTimeout bounds the graceful shutdown of the metrics server.
const metricsShutdownTimeout = 5 * time.Second

// addClientFlags adds the flags configuring HTTP requests and crawls.
func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP(flagProxy, "p", "", "SOCKS5 proxy address (e.g., 127.0.0.1:9050)")
	f.DurationP(flagTimeout, "t", config.DefaultTimeout, "Timeout for each HTTP request")
	f.IntP(flagRedirectLimit, "r", config.DefaultRedirectLimit,
		"Maximum number of redirects followed per request (0 follows none)")
	f.StringSlice(flagExtensions, config.DefaultExtensions,
		"File extensions followed during a site crawl besides extension-less paths")
	f.Duration(flagDelay, config.DefaultCrawlDelay, "Minimum delay between two requests")
	f.String(flagUserAgent, config.DefaultUserAgent, "User-Agent header sent with requests")
	f.Int64(flagMaxBodySize, config.DefaultMaxBodySize, "Maximum response body size in bytes")
}

// addDBFlags adds the flags selecting the database.
func addDBFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String(flagDBDriver, config.DefaultDBDriver, "Database driver (sqlite or postgres)")
	f.String(flagDBDir, config.XDGDataDir(), "SQLite database directory")
	f.String(flagDatabaseURL, "",
		"Postgres connection string (default: $"+databaseURLEnv+")")
}

// addReportFlags adds the flags selecting the report format and destination.
func addReportFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolP(flagJSON, "j", false, "Output JSON report (mutually exclusive with --markdown)")
	f.BoolP(flagMarkdown, "m", false, "Output Markdown report (mutually exclusive with --json)")
	f.StringP(flagOutput, "o", "", "Write report to specified file path (creates directories if needed)")
}

// readFlag stores the value of the named flag in dst. Flags the command
// does not define leave dst untouched.
func readFlag[T any](cmd *cobra.Command, name string, get func(string) (T, error), dst *T) error {
	if cmd.Flags().Lookup(name) == nil {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. targets are the URLs the command works on.
func buildConfig(cmd *cobra.Command, targets []string) (*config.Config, error) {
	cfg := config.NewConfig()
	f := cmd.Flags()

	if err := errors.Join(
		readFlag(cmd, flagVerbose, f.GetBool, &cfg.Verbose),
		readFlag(cmd, flagLogJSON, f.GetBool, &cfg.LogJSON),
		readFlag(cmd, flagConfig, f.GetString, &cfg.ConfigFilePath),
		readFlag(cmd, flagMetricsAddr, f.GetString, &cfg.MetricsAddr),
		readFlag(cmd, flagProxy, f.GetString, &cfg.ProxyAddress),
		readFlag(cmd, flagTimeout, f.GetDuration, &cfg.Timeout),
		readFlag(cmd, flagRedirectLimit, f.GetInt, &cfg.RedirectLimit),
		readFlag(cmd, flagExtensions, f.GetStringSlice, &cfg.Extensions),
		readFlag(cmd, flagDelay, f.GetDuration, &cfg.CrawlDelay),
		readFlag(cmd, flagUserAgent, f.GetString, &cfg.UserAgent),
		readFlag(cmd, flagMaxBodySize, f.GetInt64, &cfg.MaxBodySize),
		readFlag(cmd, flagConcurrency, f.GetInt, &cfg.Concurrency),
		readFlag(cmd, flagDBDriver, f.GetString, &cfg.DBDriver),
		readFlag(cmd, flagDBDir, f.GetString, &cfg.DBDir),
		readFlag(cmd, flagDatabaseURL, f.GetString, &cfg.DatabaseURL),
		readFlag(cmd, flagJSON, f.GetBool, &cfg.JSONReport),
		readFlag(cmd, flagMarkdown, f.GetBool, &cfg.MarkdownReport),
		readFlag(cmd, flagOutput, f.GetString, &cfg.ReportFile),
		readFlag(cmd, flagMaxSites, f.GetInt, &cfg.MaxSites),
		readFlag(cmd, flagMaxData, f.GetInt, &cfg.MaxDataBytes),
		readFlag(cmd, flagLimit, f.GetInt, &cfg.SearchLimit),
		readFlag(cmd, flagSentenceLimit, f.GetInt, &cfg.SentenceLimit),
	); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv(databaseURLEnv)
	}

	// An explicitly given config file must exist. Otherwise a missing file
	// means no per-site settings.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		sites, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.SiteConfigs = sites
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = targets
	return cfg, nil
}

// setupLogger creates the structured logger selected by cfg.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// env holds what a command needs once its flags are parsed.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector

	// out receives progress messages and, by default, reports.
	out io.Writer
}

// newEnv builds and validates the configuration of cmd.
func newEnv(cmd *cobra.Command, targets []string) (*env, error) {
	cfg, err := buildConfig(cmd, targets)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	return &env{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		out:     cmd.OutOrStdout(),
	}, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func (e *env) signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			e.logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// newCrawler creates a crawler for the site at host, applying its
// configured cookie, headers, redirect limit and extensions. registry may
// be nil for the default fields.
func (e *env) newCrawler(host string, registry *model.Registry) (*crawler.Crawler, error) {
	site := e.cfg.Site(host)

	clientOpts := []crawler.ClientOption{
		crawler.WithTimeout(e.cfg.Timeout),
		crawler.WithUserAgent(e.cfg.UserAgent),
		crawler.WithMaxBodySize(e.cfg.MaxBodySize),
		crawler.WithDelay(e.cfg.CrawlDelay),
	}
	if e.cfg.ProxyAddress != "" {
		clientOpts = append(clientOpts, crawler.WithProxy(e.cfg.ProxyAddress))
	}
	if site.Cookie != "" {
		clientOpts = append(clientOpts, crawler.WithCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		clientOpts = append(clientOpts, crawler.WithHeaders(site.Headers))
	}

	client, err := crawler.NewHTTPClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	opts := []crawler.Option{
		crawler.WithRedirectLimit(*site.RedirectLimit),
		crawler.WithAllowedExtensions(site.Extensions...),
		crawler.WithLogger(e.logger),
		crawler.WithMetrics(e.metrics),
	}
	if registry != nil {
		opts = append(opts, crawler.WithRegistry(registry))
	}
	return crawler.NewCrawler(client, opts...), nil
}

// openStore opens the configured database.
func (e *env) openStore(ctx context.Context) (database.Store, error) {
	store, err := database.OpenStore(ctx, e.cfg.DBDriver, e.cfg.DBTarget())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	e.logger.Debug("database opened", "driver", e.cfg.DBDriver)
	return store, nil
}

// reportWriter returns the writer for the configured report format and
// destination. The returned close function must be called when done.
func (e *env) reportWriter() (report.Writer, func() error, error) {
	output := e.out
	closeFn := func() error { return nil }

	if e.cfg.ReportFile != "" {
		dir := filepath.Dir(e.cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(e.cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create output file: %w", err)
		}
		output = f
		closeFn = f.Close
	}

	switch {
	case e.cfg.JSONReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion())), closeFn, nil
	case e.cfg.MarkdownReport:
		return report.NewMarkdownWriter(output), closeFn, nil
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(e.cfg.Verbose)), closeFn, nil
	}
}

// serveMetrics serves the collector on the configured address until the
// returned stop function is called. It does nothing without an address.
func (e *env) serveMetrics() (stop func()) {
	if e.cfg.MetricsAddr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.metrics.Handler())
	srv := &http.Server{
		Addr:              e.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: metricsShutdownTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", "addr", e.cfg.MetricsAddr, "error", err)
		}
	}()
	e.logger.Info("serving metrics", "addr", e.cfg.MetricsAddr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			e.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}
}

// parseExtractors turns "name=xpath" definitions into a registry holding
// the default fields plus the extra ones. It returns nil without
// definitions.
func parseExtractors(defs []string) (*model.Registry, error) {
	if len(defs) == 0 {
		return nil, nil
	}

	registry := model.DefaultRegistry()
	for _, def := range defs {
		name, expr, ok := strings.Cut(def, "=")
		name, expr = strings.TrimSpace(name), strings.TrimSpace(expr)
		if !ok || name == "" || expr == "" {
			return nil, fmt.Errorf("invalid extractor %q: expected name=xpath", def)
		}
		field, err := model.XPathField(name, expr)
		if err != nil {
			return nil, err
		}
		registry.Define(field)
	}
	return registry, nil
}
