package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/star/searoute/internal/metrics"
)

const (
	// wsPongWait is how long the server waits for any client frame.
	wsPongWait = 60 * time.Second
	// wsPingPeriod must be shorter than wsPongWait.
	wsPingPeriod = wsPongWait * 9 / 10
	// wsMaxMessage bounds client control messages.
	wsMaxMessage = 4096
)

// Websocket control actions.
const (
	actionStart = "start"
	actionStop  = "stop"
	actionReset = "reset"
	actionSpeed = "speed"
)

// checkOrigin allows same-host origins, requests without an Origin header and
// any origin listed in AllowedOrigins.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return slices.Contains(h.config.AllowedOrigins, origin)
}

// HandleWebSocket serves the websocket position stream. Besides frames, the
// client may send control messages:
//
//	{"action":"start"} {"action":"stop"} {"action":"reset"} {"action":"speed","value":2}
//
// Each is answered with an ack carrying the new clock state, or an error message.
// GET /api/v1/ws/positions?trail=5
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	trail, err := h.parseTrail(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ip, release, ok := h.admit(w, r, "ws")
	if !ok {
		return
	}
	defer release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.IncStreamErrors("upgrade_error")
		h.logger.Warn("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	metrics.IncStreamConnections("ws", "connect")
	metrics.IncStreamsActive("ws")
	startTime := time.Now()
	h.logger.Info("stream connected",
		"transport", "ws",
		"connection_id", connID,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"trail", trail,
	)

	var sent int64
	defer func() {
		metrics.IncStreamConnections("ws", "disconnect")
		metrics.DecStreamsActive("ws")
		h.logger.Info("stream disconnected",
			"transport", "ws",
			"connection_id", connID,
			"remote_ip", ip,
			"messages", sent,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	// gorilla/websocket allows one concurrent writer: the reader hands its
	// replies to this goroutine instead of writing itself.
	replies := make(chan any, 4)
	readerDone := make(chan struct{})
	go h.readControl(r, conn, connID, replies, readerDone)

	send := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			metrics.IncStreamErrors("marshal_error")
			return fmt.Errorf("json marshal: %w", err)
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
		sent++
		metrics.IncStreamMessages()
		metrics.AddStreamBytes(int64(len(data)))
		return nil
	}

	updates, unsubscribe := h.sim.Subscribe()
	defer unsubscribe()

	snap := h.sim.Snapshot()
	if err := send(buildMetadataMessage(connID, h.store.Get(), snap.Clock)); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "connection_id", connID, "error", err)
		return
	}
	if snap.Frame != nil {
		if err := send(buildFrameMessage(snap, trail)); err != nil {
			metrics.IncStreamErrors("send_error")
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-readerDone:
			return

		case reply := <-replies:
			if err := send(reply); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "connection_id", connID, "error", err)
				return
			}

		case u := <-updates:
			if u.Frame == nil {
				continue
			}
			if err := send(buildFrameMessage(u, trail)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "connection_id", connID, "error", err)
				return
			}

		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Debug("websocket ping failed", "connection_id", connID, "error", err)
				return
			}
		}
	}
}

// readControl reads client messages until the connection fails and queues a
// reply for each one. It closes done on return.
func (h *Handler) readControl(r *http.Request, conn *websocket.Conn, connID string, replies chan<- any, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "connection_id", connID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))

		reply := h.applyControl(r, data, connID)
		select {
		case replies <- reply:
		case <-r.Context().Done():
			return
		}
	}
}

// errUnknownAction is returned for control messages with an unsupported action.
var errUnknownAction = errors.New("unknown action")

// applyControl executes one control message and returns the reply payload.
func (h *Handler) applyControl(r *http.Request, data []byte, connID string) any {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorMessage{Type: "error", Error: "invalid control message"}
	}

	var err error
	switch msg.Action {
	case actionStart:
		h.sim.StartClock()
	case actionStop:
		h.sim.StopClock()
	case actionReset:
		err = h.sim.Reset(r.Context())
	case actionSpeed:
		err = h.sim.SetSpeed(msg.Value)
	default:
		err = fmt.Errorf("%w %q", errUnknownAction, msg.Action)
	}
	if err != nil {
		h.logger.Info("websocket control rejected", "connection_id", connID, "action", msg.Action, "error", err)
		return errorMessage{Type: "error", Error: err.Error()}
	}

	h.logger.Info("websocket control applied", "connection_id", connID, "action", msg.Action)
	return ackMessage{Type: "ack", Action: msg.Action, Clock: h.sim.Snapshot().Clock}
}
