package main

import (
	"log/slog"
	"sync/atomic"

	"github.com/blueberrycongee/vecrelay/internal/config"
	"github.com/blueberrycongee/vecrelay/internal/ingest"
	"github.com/blueberrycongee/vecrelay/internal/observability"
	"github.com/blueberrycongee/vecrelay/internal/ratelimit"
	"github.com/blueberrycongee/vecrelay/internal/store"
)

// relayReloader pushes the hot-reloadable settings of a new configuration
// into the running components. Listener and transport settings need a
// restart.
type relayReloader struct {
	logger     *slog.Logger
	store      *store.Store
	gateway    *ingest.Gateway
	limiter    *ratelimit.Limiter
	level      *slog.LevelVar
	inProgress atomic.Bool
}

func newRelayReloader(logger *slog.Logger, st *store.Store, gw *ingest.Gateway, limiter *ratelimit.Limiter, level *slog.LevelVar) *relayReloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &relayReloader{
		logger:  logger,
		store:   st,
		gateway: gw,
		limiter: limiter,
		level:   level,
	}
}

func (r *relayReloader) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if !r.inProgress.CompareAndSwap(false, true) {
		r.logger.Warn("relay reload already in progress")
		return
	}
	defer r.inProgress.Store(false)

	mode, err := ingest.ParseMode(cfg.Relay.BroadcastMode)
	if err != nil {
		r.logger.Error("keeping broadcast mode", "error", err)
		mode = r.gateway.Mode()
	}

	r.store.SetTTL(cfg.Relay.TTL)
	r.gateway.SetMode(mode)
	if r.limiter != nil {
		r.limiter.Update(limiterConfig(cfg.RateLimit))
	}
	if r.level != nil {
		if lvl, err := observability.ParseLevel(cfg.Logging.Level); err == nil {
			r.level.Set(lvl)
		}
	}

	r.logger.Info("relay settings reloaded",
		"ttl", r.store.TTL(),
		"broadcast_mode", string(mode),
		"rate_limit", cfg.RateLimit.Enabled,
	)
}

func limiterConfig(cfg config.RateLimitConfig) ratelimit.Config {
	return ratelimit.Config{
		Enabled:           cfg.Enabled,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Burst:             cfg.BurstSize,
		IdleTTL:           cfg.IdleTTL,
	}
}
