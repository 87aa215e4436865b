package model

import (
	"strings"
	"time"
)

// Record is the persisted form of a URL or Document as exchanged with a store.
// Keys follow the store's column names ("url", "html", "score", "title", ...).
type Record map[string]any

// String returns the value for key if it is a string.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Strings returns the value for key as a string slice.
// Both []string and []any holding strings are accepted.
func (r Record) Strings(key string) ([]string, bool) {
	switch v := r[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// Float returns the value for key as a float64.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Time returns the value for key as a time.Time.
func (r Record) Time(key string) (time.Time, bool) {
	t, ok := r[key].(time.Time)
	return t, ok
}

// processStrings trims every element and drops empties and duplicates,
// keeping first-seen order.
func processStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
