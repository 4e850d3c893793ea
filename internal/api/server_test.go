package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/star/searoute/internal/auth"
	"github.com/star/searoute/internal/fleet"
	"github.com/star/searoute/internal/panels"
	"github.com/star/searoute/internal/route"
	"github.com/star/searoute/internal/simclock"
	"github.com/star/searoute/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testRoutes() []route.Route {
	return []route.Route{
		{Name: "east", Vessel: "Ever Given", Waypoints: []route.Waypoint{
			{Latitude: 0, Longitude: 0, TimeFraction: 0},
			{Latitude: 0, Longitude: 100, TimeFraction: 100},
		}},
		{Name: "north", Waypoints: []route.Waypoint{
			{Latitude: 0, Longitude: 10, TimeFraction: 0},
			{Latitude: 40, Longitude: 10, TimeFraction: 100},
		}},
	}
}

type testEnv struct {
	store   *route.Store
	tracker *tracker.Tracker
	handler http.Handler
}

// newTestEnv wires the handler around a loaded route set. No frame exists
// until the test calls tracker.Reset.
func newTestEnv(t *testing.T, authCfg auth.Config, sched *panels.Scheduler) *testEnv {
	t.Helper()
	store := route.NewStore()
	store.Set(&route.RouteSet{
		Source:   "test",
		LoadedAt: time.Now(),
		Routes:   testRoutes(),
		Stats:    route.StatsParams{AvgSpeedKnots: 15, FuelTonsPerHour: 2},
	})
	clock, err := simclock.New(simclock.Config{})
	if err != nil {
		t.Fatalf("simclock.New: %v", err)
	}
	pos := fleet.NewPositioner(store, fleet.Config{Workers: 2}, testLogger())
	tr := tracker.New(tracker.Config{}, clock, pos, store, testLogger())

	deps := Deps{
		Store:      store,
		Positioner: pos,
		Tracker:    tr,
		Panels:     sched,
		Web:        fstest.MapFS{"index.html": {Data: []byte("<html>dashboard</html>")}},
	}
	return &testEnv{
		store:   store,
		tracker: tr,
		handler: NewHandler(testLogger(), authCfg, deps),
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(w.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

func TestProbes(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)

	if w := env.do(t, "GET", "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", w.Code)
	}
	if w := env.do(t, "GET", "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz before first frame = %d, want 503", w.Code)
	}

	if err := env.tracker.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if w := env.do(t, "GET", "/readyz", ""); w.Code != http.StatusOK {
		t.Errorf("readyz after frame = %d, want 200", w.Code)
	}
	if w := env.do(t, "GET", "/metrics", ""); w.Code != http.StatusOK {
		t.Errorf("metrics = %d, want 200", w.Code)
	}
}

func TestRoutesGeoJSON(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)
	w := env.do(t, "GET", "/api/v1/routes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("Content-Type = %q", ct)
	}
	m := decode(t, w)
	if m["type"] != "FeatureCollection" {
		t.Errorf("type = %v", m["type"])
	}
	if features, _ := m["features"].([]any); len(features) != 2 {
		t.Errorf("features = %d, want 2", len(features))
	}
}

func TestRoutePosition(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantLon    float64
	}{
		{"midpoint", "/api/v1/routes/east/position?t=50", http.StatusOK, 50},
		{"default t", "/api/v1/routes/east/position", http.StatusOK, 0},
		{"clamped past end", "/api/v1/routes/east/position?t=250", http.StatusOK, 100},
		{"unknown route", "/api/v1/routes/west/position?t=50", http.StatusNotFound, 0},
		{"bad t", "/api/v1/routes/east/position?t=abc", http.StatusBadRequest, 0},
		{"nan t", "/api/v1/routes/east/position?t=NaN", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "GET", tt.target, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			m := decode(t, w)
			if tt.wantStatus != http.StatusOK {
				if m["error"] == nil {
					t.Error("expected error field in response")
				}
				return
			}
			if lon, _ := m["longitude"].(float64); math.Abs(lon-tt.wantLon) > 1e-9 {
				t.Errorf("longitude = %v, want %v", m["longitude"], tt.wantLon)
			}
			if m["route"] != "east" || m["vessel"] != "Ever Given" {
				t.Errorf("route/vessel = %v/%v", m["route"], m["vessel"])
			}
		})
	}
}

func TestPositions(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)

	if w := env.do(t, "GET", "/api/v1/positions", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("positions before first frame = %d, want 503", w.Code)
	}
	if err := env.tracker.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	w := env.do(t, "GET", "/api/v1/positions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	m := decode(t, w)
	if m["simulation_time"] != 0.0 {
		t.Errorf("simulation_time = %v, want 0", m["simulation_time"])
	}
	ships, _ := m["ships"].([]any)
	if len(ships) != 2 {
		t.Fatalf("ships = %d, want 2", len(ships))
	}
	first := ships[0].(map[string]any)
	if first["route"] != "east" {
		t.Errorf("first ship = %v, want east (sorted by route)", first["route"])
	}
	if _, ok := first["trail"].([]any); !ok {
		t.Errorf("trail = %v, want array", first["trail"])
	}

	w = env.do(t, "GET", "/api/v1/positions/geojson", "")
	if w.Code != http.StatusOK {
		t.Fatalf("geojson status = %d, want 200", w.Code)
	}
	gj := decode(t, w)
	features, _ := gj["features"].([]any)
	if len(features) != 2 {
		t.Fatalf("features = %d, want 2", len(features))
	}
	geom := features[0].(map[string]any)["geometry"].(map[string]any)
	if geom["type"] != "Point" {
		t.Errorf("geometry type = %v, want Point", geom["type"])
	}
}

func TestTimeline(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantFrames int
	}{
		{"three frames", "?from=0&to=10&step=5", http.StatusOK, 3},
		{"defaults", "", http.StatusOK, 101},
		{"zero step", "?step=0", http.StatusBadRequest, 0},
		{"reversed", "?from=50&to=10", http.StatusBadRequest, 0},
		{"budget exceeded", "?from=0&to=100&step=0.01", http.StatusBadRequest, 0},
		{"bad from", "?from=x", http.StatusBadRequest, 0},
		{"huge range", "?from=0&to=1e19&step=1", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "GET", "/api/v1/positions/timeline"+tt.query, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			m := decode(t, w)
			if tt.wantStatus != http.StatusOK {
				if m["error"] == nil {
					t.Error("expected error field in response")
				}
				return
			}
			frames, _ := m["frames"].([]any)
			if len(frames) != tt.wantFrames {
				t.Errorf("frames = %d, want %d", len(frames), tt.wantFrames)
			}
		})
	}
}

func TestSimulationControl(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)

	w := env.do(t, "POST", "/api/v1/simulation/start", "")
	if w.Code != http.StatusOK || decode(t, w)["running"] != true {
		t.Fatalf("start: status %d", w.Code)
	}
	if !env.tracker.Clock().Running() {
		t.Error("clock not running after start")
	}

	w = env.do(t, "POST", "/api/v1/simulation/speed", `{"speed": 4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("speed: status %d", w.Code)
	}
	if got := env.tracker.Clock().State().Speed; got != 4 {
		t.Errorf("speed = %v, want 4", got)
	}

	w = env.do(t, "POST", "/api/v1/simulation/speed", `{"speed": 3}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unsupported speed: status %d, want 400", w.Code)
	} else if m := decode(t, w); m["speeds"] == nil {
		t.Error("expected supported speeds in response")
	}
	if w := env.do(t, "POST", "/api/v1/simulation/speed", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing speed: status %d, want 400", w.Code)
	}
	if w := env.do(t, "POST", "/api/v1/simulation/speed", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("bad body: status %d, want 400", w.Code)
	}

	w = env.do(t, "POST", "/api/v1/simulation/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset: status %d", w.Code)
	}
	if env.tracker.Latest() == nil {
		t.Error("reset should publish a frame at t=0")
	}

	w = env.do(t, "POST", "/api/v1/simulation/stop", "")
	if w.Code != http.StatusOK || decode(t, w)["running"] != false {
		t.Fatalf("stop: status %d", w.Code)
	}

	w = env.do(t, "GET", "/api/v1/simulation", "")
	if w.Code != http.StatusOK {
		t.Fatalf("simulation: status %d", w.Code)
	}
	m := decode(t, w)
	for _, key := range []string{"clock", "tracker", "streams"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing %q in simulation response", key)
		}
	}
}

func TestSimulationControlRequiresToken(t *testing.T) {
	env := newTestEnv(t, auth.Config{Enabled: true, Token: "s3cret"}, nil)

	if w := env.do(t, "POST", "/api/v1/simulation/start", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("start without token = %d, want 401", w.Code)
	}
	if env.tracker.Clock().Running() {
		t.Error("clock started without a token")
	}

	req := httptest.NewRequest("POST", "/api/v1/simulation/start", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("start with token = %d, want 200", w.Code)
	}

	if w := env.do(t, "GET", "/api/v1/routes", ""); w.Code != http.StatusOK {
		t.Errorf("public read = %d, want 200", w.Code)
	}
}

func TestTraffic(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)
	if err := env.tracker.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	w := env.do(t, "GET", "/api/v1/traffic?cell=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	cells, _ := decode(t, w)["traffic_density"].([]any)
	// east starts at (0,0) and north at (0,10): two cells, both at full weight.
	if len(cells) != 2 {
		t.Fatalf("cells = %d, want 2", len(cells))
	}
	if c := cells[0].([]any); c[2] != 1.0 {
		t.Errorf("weight = %v, want 1", c[2])
	}

	for _, q := range []string{"?cell=0", "?cell=-1", "?cell=x", "?cell=100"} {
		if w := env.do(t, "GET", "/api/v1/traffic"+q, ""); w.Code != http.StatusBadRequest {
			t.Errorf("traffic%s = %d, want 400", q, w.Code)
		}
	}
}

func TestPanels(t *testing.T) {
	sched := panels.NewScheduler(nil, testLogger())
	err := sched.Add(panels.Task{
		Name:     "weather",
		Interval: time.Minute,
		Fetch: func(ctx context.Context) (any, error) {
			return map[string]float64{"temperature": 290}, nil
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	env := newTestEnv(t, auth.Config{}, sched)

	w := env.do(t, "GET", "/api/v1/panels", "")
	if w.Code != http.StatusOK {
		t.Fatalf("panels = %d, want 200", w.Code)
	}
	if list, _ := decode(t, w)["panels"].([]any); len(list) != 1 {
		t.Errorf("panels = %d, want 1", len(list))
	}

	w = env.do(t, "GET", "/api/v1/panels/weather", "")
	if w.Code != http.StatusOK {
		t.Fatalf("panel = %d, want 200", w.Code)
	}
	if decode(t, w)["name"] != "weather" {
		t.Error("expected weather panel state")
	}

	if w := env.do(t, "GET", "/api/v1/panels/tides", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown panel = %d, want 404", w.Code)
	}
}

func TestPanelsWithoutScheduler(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)
	w := env.do(t, "GET", "/api/v1/panels", "")
	if w.Code != http.StatusOK {
		t.Fatalf("panels = %d, want 200", w.Code)
	}
	if list, ok := decode(t, w)["panels"].([]any); !ok || len(list) != 0 {
		t.Errorf("panels = %v, want empty list", list)
	}
}

func TestPlannerEndpoints(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantKey    string
	}{
		{"route", "/api/v1/predict_route",
			`{"start":{"lat":1.29,"lon":103.85},"end":{"lat":51.95,"lon":4.14}}`,
			http.StatusOK, "eta"},
		{"route bad latitude", "/api/v1/predict_route",
			`{"start":{"lat":91,"lon":0},"end":{"lat":0,"lon":0}}`,
			http.StatusBadRequest, "error"},
		{"speed", "/api/v1/speed_prediction",
			`{"location":{"lat":10,"lon":60},"time":"2024-05-01T12:00:00Z"}`,
			http.StatusOK, "predicted_speed"},
		{"ports", "/api/v1/ports",
			`{"selectedPorts":[{"name":"Singapore","lat":1.29,"lon":103.85},{"name":"Rotterdam","lat":51.95,"lon":4.14}]}`,
			http.StatusAccepted, "request_id"},
		{"no ports", "/api/v1/ports", `{"selectedPorts":[]}`, http.StatusBadRequest, "error"},
		{"bad body", "/api/v1/predict_route", `{`, http.StatusBadRequest, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", tt.target, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if m := decode(t, w); m[tt.wantKey] == nil {
				t.Errorf("missing %q in response", tt.wantKey)
			}
		})
	}
}

func TestRequestBodyLimit(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)
	body := `{"selectedPorts":[` + strings.Repeat(`{"lat":1,"lon":1},`, maxBodyBytes/10) + `{}]}`
	if w := env.do(t, "POST", "/api/v1/ports", body); w.Code != http.StatusBadRequest {
		t.Errorf("oversized body = %d, want 400", w.Code)
	}
}

func TestImpact(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)
	w := env.do(t, "GET", "/api/v1/stats/impact", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if m := decode(t, w); m["voyages"] == nil {
		t.Error("expected voyages in impact response")
	}
}

func TestDashboardServed(t *testing.T) {
	env := newTestEnv(t, auth.Config{}, nil)
	w := env.do(t, "GET", "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "dashboard") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestStatusRecorderPassesThroughFlusher(t *testing.T) {
	var _ http.Flusher = (*statusRecorder)(nil)
	var _ http.Hijacker = (*statusRecorder)(nil)

	w := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	sr.Flush()
	if !w.Flushed {
		t.Error("Flush did not reach the underlying writer")
	}
}
