package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/cobra"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/model"
)

// subcommand returns the named subcommand of a fresh root command with args
// parsed, so that persistent flags are merged in.
func subcommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()

	cmd, rest, err := NewRootCmd().Find(args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cmd.ParseFlags(rest); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

// writeConfigFile writes a config file with content to a temp dir.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	emptyConfig := writeConfigFile(t, "sites: {}\n")

	t.Run("uses defaults", func(t *testing.T) {
		t.Parallel()

		cfg, err := buildConfig(subcommand(t, "site", "-c", emptyConfig), []string{"https://example.com"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.RedirectLimit != config.DefaultRedirectLimit {
			t.Errorf("expected redirect limit %d, got %d", config.DefaultRedirectLimit, cfg.RedirectLimit)
		}
		if !slices.Equal(cfg.Extensions, config.DefaultExtensions) {
			t.Errorf("expected extensions %v, got %v", config.DefaultExtensions, cfg.Extensions)
		}
		if cfg.JSONReport || cfg.MarkdownReport {
			t.Error("expected the plain text report by default")
		}
		if len(cfg.Targets) != 1 {
			t.Errorf("expected 1 target, got %d", len(cfg.Targets))
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected defaults to validate, got %v", err)
		}
	})

	t.Run("reads client and report flags", func(t *testing.T) {
		t.Parallel()

		cmd := subcommand(t, "site", "-c", emptyConfig, "-v",
			"--redirect-limit", "2", "--extensions", "php,html", "--user-agent", "bot/1",
			"--proxy", "127.0.0.1:9050", "-j", "-o", "out.json")
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.Verbose {
			t.Error("expected verbose from the persistent flag")
		}
		if cfg.RedirectLimit != 2 {
			t.Errorf("expected redirect limit 2, got %d", cfg.RedirectLimit)
		}
		if !slices.Equal(cfg.Extensions, []string{"php", "html"}) {
			t.Errorf("expected extensions [php html], got %v", cfg.Extensions)
		}
		if cfg.UserAgent != "bot/1" || cfg.ProxyAddress != "127.0.0.1:9050" {
			t.Errorf("unexpected user agent %q or proxy %q", cfg.UserAgent, cfg.ProxyAddress)
		}
		if !cfg.JSONReport || cfg.ReportFile != "out.json" {
			t.Errorf("expected JSON report to out.json, got json=%v file=%q", cfg.JSONReport, cfg.ReportFile)
		}
	})

	t.Run("reads search flags", func(t *testing.T) {
		t.Parallel()

		cfg, err := buildConfig(subcommand(t, "search", "-c", emptyConfig, "-l", "3", "-s", "20", "go"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.SearchLimit != 3 || cfg.SentenceLimit != 20 {
			t.Errorf("expected limits 3 and 20, got %d and %d", cfg.SearchLimit, cfg.SentenceLimit)
		}
	})

	t.Run("reads index web limits", func(t *testing.T) {
		t.Parallel()

		cfg, err := buildConfig(subcommand(t, "index", "web", "-c", emptyConfig, "--max-sites", "7", "--max-data", "100"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxSites != 7 || cfg.MaxDataBytes != 100 {
			t.Errorf("expected limits 7 and 100, got %d and %d", cfg.MaxSites, cfg.MaxDataBytes)
		}
	})

	t.Run("loads per-site settings", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, "sites:\n  example.com:\n    cookie: \"a=b\"\n    redirectLimit: 1\n")
		cfg, err := buildConfig(subcommand(t, "crawl", "-c", path), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		site := cfg.Site("example.com")
		if site.Cookie != "a=b" || *site.RedirectLimit != 1 {
			t.Errorf("unexpected site config: cookie %q, redirect limit %d", site.Cookie, *site.RedirectLimit)
		}
	})

	t.Run("explicit config file must exist", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "missing.yaml")
		_, err := buildConfig(subcommand(t, "site", "-c", missing), nil)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestBuildConfigDatabaseURLEnv(t *testing.T) {
	t.Setenv(databaseURLEnv, "postgres://localhost/sites")
	path := writeConfigFile(t, "sites: {}\n")

	cfg, err := buildConfig(subcommand(t, "search", "-c", path, "--db-driver", "postgres"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/sites" {
		t.Errorf("expected database url from the environment, got %q", cfg.DatabaseURL)
	}
	if cfg.DBTarget() != cfg.DatabaseURL {
		t.Errorf("expected postgres target to be the database url, got %q", cfg.DBTarget())
	}

	cfg, err = buildConfig(subcommand(t, "search", "-c", path, "--database-url", "postgres://other/db"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://other/db" {
		t.Errorf("expected the flag to win, got %q", cfg.DatabaseURL)
	}
}

func TestGroupByHost(t *testing.T) {
	t.Parallel()

	groups := groupByHost([]string{
		"https://a.com/1",
		"https://b.com/1",
		"https://A.com/2",
		"https://a.com:8080/",
	})
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if got := model.URLStrings(groups[0]); !slices.Equal(got, []string{"https://a.com/1", "https://A.com/2"}) {
		t.Errorf("unexpected first group %v", got)
	}
	if groups[2][0].Host() != "a.com:8080" {
		t.Errorf("expected the port to make a separate host, got %q", groups[2][0].Host())
	}
}

func TestParseExtractors(t *testing.T) {
	t.Parallel()

	t.Run("no definitions", func(t *testing.T) {
		t.Parallel()
		registry, err := parseExtractors(nil)
		if err != nil || registry != nil {
			t.Errorf("expected nil registry, got %v, %v", registry, err)
		}
	})

	t.Run("adds fields to the defaults", func(t *testing.T) {
		t.Parallel()
		registry, err := parseExtractors([]string{"heading=//h1", " price = //span[@class='price']"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var names []string
		for _, f := range registry.Fields() {
			names = append(names, f.Name)
		}
		for _, want := range []string{model.FieldTitle, model.FieldText, "heading", "price"} {
			if !slices.Contains(names, want) {
				t.Errorf("expected field %q in %v", want, names)
			}
		}
	})

	t.Run("rejects invalid definitions", func(t *testing.T) {
		t.Parallel()
		for _, def := range []string{"heading", "=//h1", "heading=", "bad=//h1["} {
			if _, err := parseExtractors([]string{def}); err == nil {
				t.Errorf("expected error for %q", def)
			}
		}
	})
}

func TestReportWriter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reports", "site.json")
	cfg := config.NewConfig()
	cfg.JSONReport = true
	cfg.ReportFile = path

	var stdout bytes.Buffer
	e := &env{cfg: cfg, out: &stdout}
	w, closeOutput, err := e.reportWriter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := w.WriteSite(model.NewSiteReport(model.NewURL("https://example.com"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := closeOutput(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stdout.Len() != 0 {
		t.Errorf("expected nothing on stdout, got %q", stdout.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("expected JSON report, got %v", err)
	}
	if got["root"] != "https://example.com" {
		t.Errorf("expected root https://example.com, got %v", got["root"])
	}
}
