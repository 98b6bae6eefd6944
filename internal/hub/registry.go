// Package hub tracks live subscriber connections grouped by session and fans
// messages out to them.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/blueberrycongee/vecrelay/internal/metrics"
	relayerrors "github.com/blueberrycongee/vecrelay/pkg/errors"
)

// Conn is a subscriber connection. Send must be safe to call concurrently
// with the connection's own read loop and should not block for long; a
// closed or backed-up connection returns an error instead.
type Conn interface {
	Send(ctx context.Context, message []byte) error
}

// Token identifies one subscription. The zero Token matches no subscription.
type Token string

// NewToken returns a fresh random Token.
func NewToken() Token {
	return Token(uuid.NewString())
}

// Result summarizes one broadcast.
type Result struct {
	Delivered int
	Failed    int
}

type subscriber struct {
	token Token
	conn  Conn
}

// Registry owns the set of live connections per session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[Token]Conn
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[string]map[Token]Conn),
		logger:   logger,
	}
}

// Subscribe registers conn under session and returns its token.
// Subscribing the same connection twice yields two tokens, and the
// connection then receives every broadcast twice.
func (r *Registry) Subscribe(session string, conn Conn) Token {
	token := NewToken()

	r.mu.Lock()
	subs, ok := r.sessions[session]
	if !ok {
		subs = make(map[Token]Conn)
		r.sessions[session] = subs
	}
	subs[token] = conn
	r.mu.Unlock()

	metrics.Subscribers.Inc()
	return token
}

// Unsubscribe removes the subscription. Removing an unknown or already
// removed token is a no-op.
func (r *Registry) Unsubscribe(session string, token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.sessions[session]
	if !ok {
		return
	}
	if _, ok := subs[token]; !ok {
		return
	}
	delete(subs, token)
	if len(subs) == 0 {
		delete(r.sessions, session)
	}
	metrics.Subscribers.Dec()
}

// Broadcast delivers message to every subscriber of session except exclude.
// The subscriber list is snapshotted first, so delivery runs without the
// lock held. A failed delivery is logged and counted; it neither stops
// delivery to the others nor removes the subscriber.
func (r *Registry) Broadcast(ctx context.Context, session string, message []byte, exclude Token) Result {
	targets := r.snapshot(session, exclude)
	metrics.Broadcasts.Inc()

	var res Result
	for _, sub := range targets {
		if err := sub.conn.Send(ctx, message); err != nil {
			deliveryErr := relayerrors.NewDeliveryError(session, err)
			r.logger.Debug("broadcast delivery failed",
				"session", session,
				"token", string(sub.token),
				"error", deliveryErr,
			)
			metrics.RecordDelivery(false)
			res.Failed++
			continue
		}
		metrics.RecordDelivery(true)
		res.Delivered++
	}
	return res
}

func (r *Registry) snapshot(session string, exclude Token) []subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.sessions[session]
	out := make([]subscriber, 0, len(subs))
	for token, conn := range subs {
		if exclude != "" && token == exclude {
			continue
		}
		out = append(out, subscriber{token: token, conn: conn})
	}
	return out
}

// Subscribers returns the number of live subscriptions in session.
func (r *Registry) Subscribers(session string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[session])
}

// Sessions returns the number of sessions with at least one subscriber.
func (r *Registry) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
