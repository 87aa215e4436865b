package crawler

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// testSite is an httptest server with per-path handlers and hit counting.
type testSite struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func newTestSite(t *testing.T, routes map[string]http.HandlerFunc) *testSite {
	t.Helper()

	s := &testSite{hits: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()

		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) totalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.hits {
		n += c
	}
	return n
}

func page(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body)) //nolint:errcheck
	}
}

func redirect(status int, location string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", location)
		w.WriteHeader(status)
	}
}

func newTestClient(t *testing.T, opts ...ClientOption) *HTTPClient {
	t.Helper()

	client, err := NewHTTPClient(opts...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}
