package config

import "maps"

// SiteConfig holds settings for a single host.
type SiteConfig struct {
	// Cookie is sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// RedirectLimit overrides the global redirect limit when set.
	RedirectLimit *int `yaml:"redirectLimit,omitempty"`

	// Extensions overrides the file extensions followed on this site.
	Extensions []string `yaml:"extensions,omitempty"`
}

// File represents the structure of the .sitecrawler configuration file.
type File struct {
	// Sites maps hosts ("example.com", "example.com:8080") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to all sites unless overridden per site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged with the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	site, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if site.RedirectLimit != nil {
		result.RedirectLimit = site.RedirectLimit
	}
	if len(site.Extensions) > 0 {
		result.Extensions = site.Extensions
	}
	return result
}
