package api //nolint:revive // package name is intentional

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	relayerrors "github.com/blueberrycongee/vecrelay/pkg/errors"
)

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes the error payload.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// StatusResponse is the body of simple acknowledgements.
type StatusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps err onto its HTTP status and writes the error envelope.
// Errors that are not RelayErrors are reported as internal errors without
// exposing their text.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	relayErr, ok := relayerrors.As(err)
	if !ok {
		logger.Error("unexpected handler error", "error", err)
		relayErr = relayerrors.NewInternalError("", "internal server error")
	}

	writeJSON(w, logger, relayErr.HTTPStatusCode(), ErrorResponse{
		Error: ErrorDetail{
			Message: relayErr.Message,
			Type:    relayErr.Type,
		},
	})
}
