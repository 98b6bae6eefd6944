package api //nolint:revive // package name is intentional

import (
	"net/http"
)

// RegisterRoutes registers the relay routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health/live", h.HealthCheck)
	mux.HandleFunc("GET /health/ready", h.HealthCheck)
	mux.HandleFunc("GET /stats", h.Stats)

	// Vector store
	mux.HandleFunc("GET /sessions/{session}", h.GetSession)
	mux.HandleFunc("POST /sessions/{session}/{vectorID}", h.PutVector)
	mux.HandleFunc("PUT /sessions/{session}/{vectorID}", h.PutVector)
	mux.HandleFunc("DELETE /sessions/{session}/{vectorID}", h.DeleteVector)

	// Live relay
	mux.HandleFunc("GET /ws/{session}", h.ServeWS)
}
