// Package metrics exposes Prometheus counters and histograms for crawling
// and indexing.
//
// A Collector owns its own registry so several collectors (for example one
// per test) never clash on metric names. All Collector methods are safe to
// call on a nil *Collector, which makes metrics optional for every component.
package metrics
