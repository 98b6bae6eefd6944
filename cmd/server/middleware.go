package main

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/vecrelay/internal/config"
	"github.com/blueberrycongee/vecrelay/internal/metrics"
	"github.com/blueberrycongee/vecrelay/internal/observability"
)

// buildMiddlewareStack wraps the mux. Metrics sits innermost so it sees the
// request the mux records the matched pattern on.
func buildMiddlewareStack(cfg *config.Config, logger *slog.Logger, tracer trace.Tracer) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			return nil
		}
		handler := next
		if cfg.Metrics.Enabled {
			handler = metrics.Middleware(handler)
		}
		if tracer != nil {
			handler = observability.TraceMiddleware(tracer)(handler)
		}
		handler = observability.RequestIDMiddleware(logger)(handler)
		handler = corsMiddleware(cfg.CORS, handler)
		return handler
	}, nil
}
