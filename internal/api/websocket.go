package api //nolint:revive // package name is intentional

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blueberrycongee/vecrelay/internal/hub"
	"github.com/blueberrycongee/vecrelay/internal/ingest"
	"github.com/blueberrycongee/vecrelay/internal/metrics"
	"github.com/blueberrycongee/vecrelay/internal/observability"
	"github.com/blueberrycongee/vecrelay/internal/ratelimit"
	relayerrors "github.com/blueberrycongee/vecrelay/pkg/errors"
)

var (
	errConnClosed    = errors.New("connection closed")
	errSendQueueFull = errors.New("send queue full")
)

// wsConn adapts a WebSocket connection to hub.Conn. Outbound frames go
// through a buffered queue drained by writePump, which is the only writer.
type wsConn struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newWSConn(conn *websocket.Conn, queue int) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan []byte, queue),
		done: make(chan struct{}),
	}
}

// Send enqueues message without blocking. A closed connection or a full
// queue is reported to the caller.
func (c *wsConn) Send(_ context.Context, message []byte) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}

	select {
	case c.send <- message:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errSendQueueFull
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}

// writePump writes queued frames and keepalive pings until the connection
// is closed, then sends a close frame and releases the socket.
func (c *wsConn) writePump(cfg WebSocketConfig, logger *slog.Logger) {
	var ping <-chan time.Time
	if cfg.PingInterval > 0 {
		ticker := time.NewTicker(cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer c.conn.Close()

	for {
		select {
		case message := <-c.send:
			c.setWriteDeadline(cfg.WriteTimeout)
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write failed", "error", err)
				c.close()
				return
			}
		case <-ping:
			c.setWriteDeadline(cfg.WriteTimeout)
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("websocket ping failed", "error", err)
				c.close()
				return
			}
		case <-c.done:
			c.setWriteDeadline(cfg.WriteTimeout)
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *wsConn) setWriteDeadline(timeout time.Duration) {
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
}

// ServeWS handles GET /ws/{session} requests. The connection is subscribed
// for its whole lifetime; every text frame it sends is ingested as a vector
// submission and relayed to the rest of the session.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logger.Warn("websocket upgrade failed", "session", session, "error", err)
		return
	}

	conn := newWSConn(ws, h.ws.SendQueue)
	token := h.registry.Subscribe(session, conn)
	logger = logger.With("session", session, "token", string(token))
	logger.Info("subscriber connected")

	defer func() {
		h.registry.Unsubscribe(session, token)
		conn.close()
		logger.Info("subscriber disconnected")
	}()

	go conn.writePump(h.ws, logger)
	h.readLoop(r.Context(), session, token, ratelimit.ClientKey(r), conn, logger)
}

func (h *Handler) readLoop(ctx context.Context, session string, token hub.Token, clientKey string, conn *wsConn, logger *slog.Logger) {
	ws := conn.conn
	if h.ws.ReadLimit > 0 {
		ws.SetReadLimit(h.ws.ReadLimit)
	}
	if h.ws.PongTimeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(h.ws.PongTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(h.ws.PongTimeout))
		})
	}

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		select {
		case <-conn.done:
			return
		default:
		}

		if msgType != websocket.TextMessage {
			logger.Debug("ignoring non-text frame", "type", msgType)
			continue
		}

		if !h.limiter.Allow(clientKey) {
			metrics.RateLimited.WithLabelValues(ingest.SourceWS).Inc()
			logger.Warn("frame dropped", "error", relayerrors.NewRateLimitError(session, "too many frames"))
			continue
		}

		n, err := h.gateway.IngestFrame(ctx, session, token, data)
		if err != nil {
			if relayerrors.IsRecoverable(err) {
				logger.Warn("skipping frame", "error", err)
				continue
			}
			logger.Error("closing connection", "error", err)
			return
		}
		logger.Debug("frame ingested", "vectors", n)
	}
}

// originChecker accepts requests without an Origin header and, when
// allowed is non-empty, only the listed origins.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(strings.TrimSpace(origin))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
