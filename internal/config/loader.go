package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the current
// and home directories.
const DefaultConfigFile = ".sitecrawler"

// XDGConfigFile is the configuration file name inside XDGConfigDir.
const XDGConfigFile = "config.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidSiteConfig is returned when a loaded site setting is out of range.
	ErrInvalidSiteConfig = errors.New("invalid site configuration")
)

// LoadConfigFile loads site configurations from a YAML file.
// It returns ErrConfigNotFound when path does not exist, so callers can
// ignore a missing file that was not asked for explicitly.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if err := cf.Defaults.validate("defaults"); err != nil {
		return nil, err
	}
	for host, site := range cf.Sites {
		if err := site.validate(host); err != nil {
			return nil, err
		}
	}
	return &cf, nil
}

func (s SiteConfig) validate(name string) error {
	if s.RedirectLimit != nil && *s.RedirectLimit < 0 {
		return fmt.Errorf("%w: %s: redirectLimit must be non-negative", ErrInvalidSiteConfig, name)
	}
	return nil
}

// FindConfigFile returns the configuration file to use, searched in order:
//  1. configPath, when not empty (and nothing else)
//  2. .sitecrawler in the current directory
//  3. config.yaml in XDGConfigDir
//  4. .sitecrawler in the user's home directory
//
// It returns "" when no file exists.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), XDGConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, path := range candidates {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
