package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searoute_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searoute_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	frameDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "searoute_frame_duration_seconds",
			Help:    "Time to interpolate all ships for one frame.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	framePositionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searoute_frame_positions_total",
			Help: "Ship positions computed, by result.",
		},
		[]string{"result"},
	)

	workersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "searoute_position_workers_active",
		Help: "Size of the interpolation worker pool.",
	})

	routesLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "searoute_routes_loaded",
		Help: "Number of routes in the active route set.",
	})

	routeSetAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "searoute_route_set_age_seconds",
		Help: "Seconds since the active route set was loaded.",
	})

	simTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searoute_simulation_ticks_total",
		Help: "Simulation clock ticks that advanced the clock.",
	})

	simTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "searoute_simulation_time",
		Help: "Current simulation progress in [0, 100].",
	})

	simRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "searoute_simulation_running",
		Help: "1 when the simulation clock is running.",
	})

	cutoversTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searoute_route_cutovers_total",
		Help: "Route set changes picked up by the tracker.",
	})

	panelFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searoute_panel_fetches_total",
			Help: "Panel fetches, by panel and result.",
		},
		[]string{"panel", "result"},
	)

	panelFetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "searoute_panel_fetch_duration_seconds",
			Help:    "Panel fetch duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"panel"},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searoute_stream_connections_total",
			Help: "Stream connection events, by transport and event.",
		},
		[]string{"transport", "event"},
	)

	streamsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "searoute_streams_active",
			Help: "Open stream connections, by transport.",
		},
		[]string{"transport"},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searoute_stream_errors_total",
			Help: "Stream errors, by reason.",
		},
		[]string{"reason"},
	)

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searoute_stream_messages_total",
		Help: "Messages written to stream clients.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searoute_stream_bytes_total",
		Help: "Bytes written to stream clients.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		frameDurationSeconds,
		framePositionsTotal,
		workersActive,
		routesLoaded,
		routeSetAgeSeconds,
		simTicksTotal,
		simTime,
		simRunning,
		cutoversTotal,
		panelFetchesTotal,
		panelFetchDurationSeconds,
		streamConnectionsTotal,
		streamsActive,
		streamErrorsTotal,
		streamMessagesTotal,
		streamBytesTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFrame records one frame computation.
func RecordFrame(d time.Duration, ok, failed int) {
	frameDurationSeconds.Observe(d.Seconds())
	framePositionsTotal.WithLabelValues("ok").Add(float64(ok))
	framePositionsTotal.WithLabelValues("error").Add(float64(failed))
}

// SetWorkersActive publishes the worker pool size.
func SetWorkersActive(n int) { workersActive.Set(float64(n)) }

// SetRoutesLoaded publishes the active route count.
func SetRoutesLoaded(n int) { routesLoaded.Set(float64(n)) }

// SetRouteSetAge publishes the active route set age.
func SetRouteSetAge(seconds float64) { routeSetAgeSeconds.Set(seconds) }

// RecordTick records a clock advance to simulation time t.
func RecordTick(t float64) {
	simTicksTotal.Inc()
	simTime.Set(t)
}

// SetSimulationTime publishes the simulation time without counting a tick.
func SetSimulationTime(t float64) { simTime.Set(t) }

// SetSimulationRunning publishes the clock state.
func SetSimulationRunning(running bool) {
	if running {
		simRunning.Set(1)
		return
	}
	simRunning.Set(0)
}

// IncCutovers counts a route set cutover.
func IncCutovers() { cutoversTotal.Inc() }

// RecordPanelFetch records one panel fetch attempt.
func RecordPanelFetch(panel string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	panelFetchesTotal.WithLabelValues(panel, result).Inc()
	panelFetchDurationSeconds.WithLabelValues(panel).Observe(d.Seconds())
}

// IncStreamConnections counts a connect or disconnect event.
func IncStreamConnections(transport, event string) {
	streamConnectionsTotal.WithLabelValues(transport, event).Inc()
}

// IncStreamsActive increments the open stream gauge.
func IncStreamsActive(transport string) { streamsActive.WithLabelValues(transport).Inc() }

// DecStreamsActive decrements the open stream gauge.
func DecStreamsActive(transport string) { streamsActive.WithLabelValues(transport).Dec() }

// IncStreamErrors counts a stream error.
func IncStreamErrors(reason string) { streamErrorsTotal.WithLabelValues(reason).Inc() }

// IncStreamMessages counts a message written to a client.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes counts bytes written to a client.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// knownRoutes are exact paths reported as their own label.
var knownRoutes = map[string]bool{
	"/":                          true,
	"/healthz":                   true,
	"/readyz":                    true,
	"/metrics":                   true,
	"/api/v1/routes":             true,
	"/api/v1/positions":          true,
	"/api/v1/positions/geojson":  true,
	"/api/v1/positions/timeline": true,
	"/api/v1/simulation":         true,
	"/api/v1/simulation/start":   true,
	"/api/v1/simulation/stop":    true,
	"/api/v1/simulation/reset":   true,
	"/api/v1/simulation/speed":   true,
	"/api/v1/traffic":            true,
	"/api/v1/panels":             true,
	"/api/v1/predict_route":      true,
	"/api/v1/speed_prediction":   true,
	"/api/v1/ports":              true,
	"/api/v1/stats/impact":       true,
	"/api/v1/stream/positions":   true,
	"/api/v1/ws/positions":       true,
	"/app.js":                    true,
	"/styles.css":                true,
}

// normalizeRoute maps a request path to a bounded set of metric labels.
// Parameterized paths collapse to their pattern; anything unknown is "other".
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/api/v1/routes/"); ok {
		if name, suffix, found := strings.Cut(rest, "/"); found && name != "" && suffix == "position" {
			return "/api/v1/routes/{name}/position"
		}
		return "other"
	}
	if name, ok := strings.CutPrefix(path, "/api/v1/panels/"); ok && name != "" && !strings.Contains(name, "/") {
		return "/api/v1/panels/{name}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE keeps working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
