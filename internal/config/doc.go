// Package config provides the configuration of sitecrawler: crawl and
// fetch settings, the database to index into, report output, and per-site
// overrides loaded from a .sitecrawler YAML file.
package config
