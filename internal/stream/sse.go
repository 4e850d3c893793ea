// Package stream pushes simulation frames to dashboards over Server-Sent
// Events (GET /api/v1/stream/positions) and websockets (GET /api/v1/ws/positions).
//
// Message format (SSE shown; websocket text messages carry the same JSON):
//
//	id: 7\ndata: {"type":"frame","t":42.4,"running":true,"speed":2,"ships":[...]}\n\n
//
// First message is always metadata:
//
//	id: 1\ndata: {"type":"metadata","connection_id":"...","route_set_loaded_at":"...","ships":3,"clock":{...}}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval to prevent timeout.
// Reconnecting clients receive a fresh metadata message on each connection.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/star/searoute/internal/httputil"
	"github.com/star/searoute/internal/metrics"
	"github.com/star/searoute/internal/route"
	"github.com/star/searoute/internal/tracker"
)

// MaxTrail bounds the trail query parameter.
const MaxTrail = 100

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxConcurrent      int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	DefaultTrail       int           // Trail samples per ship when ?trail is absent (default: 5).
	TrustProxy         bool          // Take client IP from X-Forwarded-For.
	AllowedOrigins     []string      // Extra websocket origins; same-host is always allowed.
}

// Simulation is the part of the tracker the stream handlers use.
type Simulation interface {
	Snapshot() tracker.Update
	Subscribe() (<-chan tracker.Update, func())
	StartClock()
	StopClock()
	Reset(ctx context.Context) error
	SetSpeed(speed float64) error
}

// Handler manages streaming connections.
type Handler struct {
	sim      Simulation
	store    *route.Store
	config   Config
	limiter  *streamLimiter
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(sim Simulation, store *route.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxConcurrentPerIP <= 0 {
		config.MaxConcurrentPerIP = 10
	}
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	if config.DefaultTrail < 0 {
		config.DefaultTrail = 0
	}
	h := &Handler{
		sim:     sim,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// parseTrail reads ?trail=N, falling back to the configured default.
func (h *Handler) parseTrail(r *http.Request) (int, error) {
	v := r.URL.Query().Get("trail")
	if v == "" {
		return h.config.DefaultTrail, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > MaxTrail {
		return 0, fmt.Errorf("invalid trail parameter, must be 0-%d", MaxTrail)
	}
	return n, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// admit applies the concurrent stream limit. On success the caller must
// call the returned release function when the stream ends.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request, transport string) (ip string, release func(), ok bool) {
	ip = httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"transport", transport,
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return ip, nil, false
	}
	return ip, func() { h.limiter.release(ip) }, true
}

// HandlePositions serves the SSE position stream.
// GET /api/v1/stream/positions?trail=5
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	trail, err := h.parseTrail(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Verify flusher support (required for SSE).
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ip, release, ok := h.admit(w, r, "sse")
	if !ok {
		return
	}

	connID := uuid.NewString()
	metrics.IncStreamConnections("sse", "connect")
	metrics.IncStreamsActive("sse")

	startTime := time.Now()
	h.logger.Info("stream connected",
		"transport", "sse",
		"connection_id", connID,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"trail", trail,
	)

	c := &sseConn{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		id:      connID,
		logger:  h.logger,
	}

	// Cleanup on disconnect: release rate limit slot and update metrics.
	defer func() {
		release()
		metrics.IncStreamConnections("sse", "disconnect")
		metrics.DecStreamsActive("sse")
		h.logger.Info("stream disconnected",
			"transport", "sse",
			"connection_id", connID,
			"remote_ip", ip,
			"messages", c.messages,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// Set SSE response headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	retryMs := 3000 + rand.Intn(4000)
	fmt.Fprintf(w, "retry: %d\n\n", retryMs)
	flusher.Flush()

	// Subscribe before taking the snapshot so no frame falls in between.
	updates, unsubscribe := h.sim.Subscribe()
	defer unsubscribe()

	snap := h.sim.Snapshot()
	if err := c.event(buildMetadataMessage(connID, h.store.Get(), snap.Clock)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "connection_id", connID, "error", err)
		return
	}
	if snap.Frame != nil {
		if err := c.event(buildFrameMessage(snap, trail)); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "connection_id", connID, "error", err)
			return
		}
	}

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case u := <-updates:
			if u.Frame == nil {
				continue
			}
			if err := c.event(buildFrameMessage(u, trail)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "connection_id", connID, "error", err)
				return
			}
			// Reset keepalive since we just sent data.
			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.comment(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "connection_id", connID, "error", err)
				return
			}
		}
	}
}

// ActiveStreams returns the number of open SSE and websocket streams.
func (h *Handler) ActiveStreams() int {
	return h.limiter.active()
}
