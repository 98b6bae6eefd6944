// Package ratelimit provides per-client token buckets for vector writes.
// Buckets live in a TTL cache so clients that go quiet are forgotten.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Config contains configuration for the limiter.
type Config struct {
	Enabled           bool
	RequestsPerMinute int           // Sustained rate per client
	Burst             int           // Bucket size
	IdleTTL           time.Duration // Forget a client after this long without traffic
}

// Limiter hands out one token bucket per client key.
type Limiter struct {
	enabled atomic.Bool

	mu      sync.RWMutex
	limit   rate.Limit
	burst   int
	buckets *cache.Cache
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	l := &Limiter{
		buckets: cache.New(cfg.IdleTTL, cfg.IdleTTL*2),
	}
	l.Update(cfg)
	return l
}

// Update applies new settings. Existing buckets are dropped so every client
// starts again from a full bucket at the new rate.
func (l *Limiter) Update(cfg Config) {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}

	l.mu.Lock()
	l.limit = rate.Limit(float64(rpm) / 60.0)
	l.burst = burst
	l.buckets.Flush()
	l.mu.Unlock()

	l.enabled.Store(cfg.Enabled)
}

// Enabled reports whether limiting is active.
func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled.Load()
}

// Allow reports whether key may submit one more write now.
// A nil or disabled Limiter allows everything.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	return l.bucket(key).Allow()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if v, found := l.buckets.Get(key); found {
		if b, ok := v.(*rate.Limiter); ok {
			// Touch so active clients are not expired.
			l.buckets.SetDefault(key, b)
			return b
		}
	}

	b := rate.NewLimiter(l.limit, l.burst)
	if err := l.buckets.Add(key, b, cache.DefaultExpiration); err != nil {
		// Lost the race to another request for the same key.
		if v, found := l.buckets.Get(key); found {
			if existing, ok := v.(*rate.Limiter); ok {
				return existing
			}
		}
	}
	return b
}

// Clients returns the number of tracked client buckets.
func (l *Limiter) Clients() int {
	return l.buckets.ItemCount()
}

// ClientKey derives the limiter key for a request from its remote address.
// Forwarded headers are ignored since they are client-controlled.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
