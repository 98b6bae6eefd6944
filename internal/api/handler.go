// Package api provides the HTTP and WebSocket handlers of the relay.
package api //nolint:revive // package name is intentional

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blueberrycongee/vecrelay/internal/httputil"
	"github.com/blueberrycongee/vecrelay/internal/hub"
	"github.com/blueberrycongee/vecrelay/internal/ingest"
	"github.com/blueberrycongee/vecrelay/internal/metrics"
	"github.com/blueberrycongee/vecrelay/internal/observability"
	"github.com/blueberrycongee/vecrelay/internal/ratelimit"
	"github.com/blueberrycongee/vecrelay/internal/store"
	relayerrors "github.com/blueberrycongee/vecrelay/pkg/errors"
)

// LivenessStatus is reported by GET /.
const LivenessStatus = "symbolic-relay-online"

// WebSocketConfig contains subscriber connection settings.
type WebSocketConfig struct {
	ReadLimit      int64
	SendQueue      int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	AllowedOrigins []string // empty allows any origin
}

// HandlerConfig holds the dependencies of Handler.
type HandlerConfig struct {
	Store        *store.Store
	Registry     *hub.Registry
	Gateway      *ingest.Gateway
	Limiter      *ratelimit.Limiter // nil disables rate limiting
	Logger       *slog.Logger
	WebSocket    WebSocketConfig
	MaxBodyBytes int64
}

// Handler serves the relay endpoints.
type Handler struct {
	store    *store.Store
	registry *hub.Registry
	gateway  *ingest.Gateway
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	ws       WebSocketConfig
	upgrader websocket.Upgrader
	maxBody  int64
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = httputil.DefaultMaxBodyBytes
	}
	if cfg.WebSocket.SendQueue <= 0 {
		cfg.WebSocket.SendQueue = 64
	}

	h := &Handler{
		store:    cfg.Store,
		registry: cfg.Registry,
		gateway:  cfg.Gateway,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
		ws:       cfg.WebSocket,
		maxBody:  cfg.MaxBodyBytes,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.WebSocket.AllowedOrigins),
	}
	return h
}

// Root handles GET / requests.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, StatusResponse{Status: LivenessStatus})
}

// HealthCheck handles GET /health/live and GET /health/ready requests.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, StatusResponse{Status: "ok"})
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Store         store.Stats `json:"store"`
	Subscribers   int         `json:"subscribed_sessions"`
	BroadcastMode string      `json:"broadcast_mode"`
	TTLSeconds    float64     `json:"ttl_seconds"`
}

// Stats handles GET /stats requests.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, StatsResponse{
		Store:         h.store.Stats(),
		Subscribers:   h.registry.Sessions(),
		BroadcastMode: string(h.gateway.Mode()),
		TTLSeconds:    h.store.TTL().Seconds(),
	})
}

// GetSession handles GET /sessions/{session} requests. The response maps
// every live vector id of the session to its payload.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")
	writeJSON(w, h.logger, http.StatusOK, h.store.Get(session))
}

// PutVector handles POST and PUT /sessions/{session}/{vectorID} requests.
func (h *Handler) PutVector(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")
	vectorID := r.PathValue("vectorID")
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	if !h.allow(r, ingest.SourceHTTP) {
		writeError(w, logger, relayerrors.NewRateLimitError(session, "too many writes"))
		return
	}

	body, err := httputil.ReadLimitedBody(r.Body, h.maxBody)
	if err != nil {
		msg := "failed to read request body"
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			msg = "request body too large"
		}
		writeError(w, logger, relayerrors.NewDecodeError(session, msg).WithCause(err))
		return
	}
	defer r.Body.Close()

	if err := h.gateway.PutHTTP(r.Context(), session, vectorID, body); err != nil {
		writeError(w, logger, err)
		return
	}

	logger.Debug("vector stored", "session", session, "vector_id", vectorID)
	writeJSON(w, logger, http.StatusOK, StatusResponse{Status: "ok"})
}

// DeleteVector handles DELETE /sessions/{session}/{vectorID} requests.
func (h *Handler) DeleteVector(w http.ResponseWriter, r *http.Request) {
	session := r.PathValue("session")
	vectorID := r.PathValue("vectorID")
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	if !h.allow(r, ingest.SourceHTTP) {
		writeError(w, logger, relayerrors.NewRateLimitError(session, "too many writes"))
		return
	}

	if err := h.store.Delete(session, vectorID); err != nil {
		writeError(w, logger, err)
		return
	}

	logger.Debug("vector deleted", "session", session, "vector_id", vectorID)
	writeJSON(w, logger, http.StatusOK, StatusResponse{Status: "deleted"})
}

func (h *Handler) allow(r *http.Request, surface string) bool {
	if h.limiter.Allow(ratelimit.ClientKey(r)) {
		return true
	}
	metrics.RateLimited.WithLabelValues(surface).Inc()
	return false
}
