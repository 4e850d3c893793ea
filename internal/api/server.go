// Package api wires the HTTP surface: probes, metrics, the embedded
// dashboard and the /api/v1 JSON endpoints.
package api

import (
	"bufio"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/star/searoute/internal/auth"
	"github.com/star/searoute/internal/fleet"
	"github.com/star/searoute/internal/health"
	"github.com/star/searoute/internal/httputil"
	"github.com/star/searoute/internal/metrics"
	"github.com/star/searoute/internal/panels"
	"github.com/star/searoute/internal/route"
	"github.com/star/searoute/internal/stream"
	"github.com/star/searoute/internal/tracker"
)

// Deps are the components the handlers read from and control.
type Deps struct {
	Store      *route.Store
	Positioner *fleet.Positioner
	Tracker    *tracker.Tracker
	Panels     *panels.Scheduler
	Stream     *stream.Handler
	Web        fs.FS // Dashboard files; nil disables "/"
	TrustProxy bool  // Log the X-Forwarded-For client address
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, authCfg auth.Config, deps Deps) *Server {
	handler := NewHandler(logger, authCfg, deps)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second, // Streams clear their own deadlines.
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the routed handler with the middleware chain applied.
func NewHandler(logger *slog.Logger, authCfg auth.Config, deps Deps) http.Handler {
	mux := http.NewServeMux()

	// Probes and metrics.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(readiness(deps)))
	mux.Handle("GET /metrics", metrics.Handler())

	// Routes and positions.
	mux.HandleFunc("GET /api/v1/routes", routesHandler(deps.Store))
	mux.HandleFunc("GET /api/v1/routes/{name}/position", routePositionHandler(deps.Store))
	mux.HandleFunc("GET /api/v1/positions", positionsHandler(deps.Tracker))
	mux.HandleFunc("GET /api/v1/positions/geojson", positionsGeoJSONHandler(deps.Tracker))
	mux.HandleFunc("GET /api/v1/positions/timeline", timelineHandler(logger, deps.Positioner))

	// Simulation control.
	mux.HandleFunc("GET /api/v1/simulation", simulationHandler(deps.Tracker, deps.Stream))
	mux.HandleFunc("POST /api/v1/simulation/start", simulationStartHandler(deps.Tracker))
	mux.HandleFunc("POST /api/v1/simulation/stop", simulationStopHandler(deps.Tracker))
	mux.HandleFunc("POST /api/v1/simulation/reset", simulationResetHandler(logger, deps.Tracker))
	mux.HandleFunc("POST /api/v1/simulation/speed", simulationSpeedHandler(deps.Tracker))

	// Dashboard panels.
	mux.HandleFunc("GET /api/v1/traffic", trafficHandler(deps.Tracker))
	mux.HandleFunc("GET /api/v1/panels", panelsHandler(deps.Panels))
	mux.HandleFunc("GET /api/v1/panels/{name}", panelHandler(deps.Panels))
	mux.HandleFunc("POST /api/v1/predict_route", predictRouteHandler())
	mux.HandleFunc("POST /api/v1/speed_prediction", speedPredictionHandler())
	mux.HandleFunc("POST /api/v1/ports", portsHandler(logger))
	mux.HandleFunc("GET /api/v1/stats/impact", impactHandler(deps.Store))

	// Streams.
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/positions", deps.Stream.HandlePositions)
		mux.HandleFunc("GET /api/v1/ws/positions", deps.Stream.HandleWebSocket)
	}

	if deps.Web != nil {
		mux.Handle("GET /", http.FileServerFS(deps.Web))
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)
	return handler
}

// readiness reports ready once routes are loaded and the tracker has a frame.
func readiness(deps Deps) func() error {
	return func() error {
		if deps.Store == nil || deps.Store.Get() == nil {
			return fleet.ErrNoRouteSet
		}
		if deps.Tracker != nil && deps.Tracker.Latest() == nil {
			return errors.New("no frame computed yet")
		}
		return nil
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so SSE keeps working behind the middleware.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets websocket upgrades pass through the middleware.
func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(sr.ResponseWriter).Hijack()
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
