package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/searoute/internal/metrics"
)

// writeTimeout bounds each write on a long-lived stream.
const writeTimeout = 30 * time.Second

// sseConn writes events to one SSE response. Every data event carries an
// increasing id so browsers report the last one seen on reconnect.
type sseConn struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	id      string
	logger  *slog.Logger

	seq      uint64
	messages int64
}

// event writes v as "id: N\ndata: {json}\n\n".
func (c *sseConn) event(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		metrics.IncStreamErrors("marshal_error")
		return fmt.Errorf("json marshal: %w", err)
	}
	c.seq++
	buf := make([]byte, 0, len(data)+32)
	buf = append(buf, "id: "...)
	buf = strconv.AppendUint(buf, c.seq, 10)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)

	if err := c.write(buf); err != nil {
		return err
	}
	c.messages++
	metrics.IncStreamMessages()
	return nil
}

// comment writes an SSE comment line, used as a keepalive.
func (c *sseConn) comment() error {
	return c.write([]byte(":\n\n"))
}

// write pushes raw bytes with a fresh deadline; the server-wide WriteTimeout
// is cleared for streams.
func (c *sseConn) write(b []byte) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "connection_id", c.id, "error", err)
	}
	n, err := c.w.Write(b)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	metrics.AddStreamBytes(int64(n))
	return nil
}
