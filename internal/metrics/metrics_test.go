package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/routes", "/api/v1/routes"},
		{"/api/v1/positions", "/api/v1/positions"},
		{"/api/v1/positions/timeline", "/api/v1/positions/timeline"},
		{"/api/v1/simulation/start", "/api/v1/simulation/start"},
		{"/api/v1/stream/positions", "/api/v1/stream/positions"},
		{"/api/v1/ws/positions", "/api/v1/ws/positions"},

		// Parameterized routes collapse to one label.
		{"/api/v1/routes/transpacific/position", "/api/v1/routes/{name}/position"},
		{"/api/v1/routes/baltic/position", "/api/v1/routes/{name}/position"},
		{"/api/v1/panels/weather", "/api/v1/panels/{name}"},
		{"/api/v1/panels/news", "/api/v1/panels/{name}"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
		{"/api/v1/routes/x/y", "other"},
		{"/api/v1/panels/a/b", "other"},
		{"/api/v1/routes//position", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 unique route names produce
// exactly 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute(fmt.Sprintf("/api/v1/routes/ship-%d/position", i))
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for parameterized paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewarePreservesStatusAndFlush(t *testing.T) {
	var flushed bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
			flushed = true
		}
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTeapot)
	}
	if !flushed || !w.Flushed {
		t.Error("middleware should pass Flush through")
	}
}
