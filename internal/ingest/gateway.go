// Package ingest normalizes vector submissions from the HTTP and WebSocket
// surfaces into store writes and fans each stored vector out to the session.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/vecrelay/internal/hub"
	"github.com/blueberrycongee/vecrelay/internal/metrics"
	relayerrors "github.com/blueberrycongee/vecrelay/pkg/errors"
)

// Mode selects whether the sender of a WebSocket vector receives its own
// broadcast.
type Mode string

const (
	// ModePeer relays to every subscriber except the sender.
	ModePeer Mode = "peer"
	// ModeEcho relays to every subscriber, sender included.
	ModeEcho Mode = "echo"
)

// ParseMode validates a configured broadcast mode. Empty means ModePeer.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModePeer:
		return ModePeer, nil
	case ModeEcho:
		return ModeEcho, nil
	default:
		return "", fmt.Errorf("unknown broadcast mode %q", s)
	}
}

// Source labels used for metrics and spans.
const (
	SourceHTTP = "http"
	SourceWS   = "ws"
)

const tracerName = "vecrelay/ingest"

// VectorWriter is the store side of the gateway.
type VectorWriter interface {
	Put(session, vectorID string, payload json.RawMessage)
}

// Broadcaster is the fan-out side of the gateway.
type Broadcaster interface {
	Broadcast(ctx context.Context, session string, message []byte, exclude hub.Token) hub.Result
}

// Config holds configuration for Gateway.
type Config struct {
	Mode   Mode
	Logger *slog.Logger
	Tracer trace.Tracer // default: global OpenTelemetry tracer
}

// Gateway writes submissions into the store, then broadcasts them.
// It owns neither the entries nor the connections.
type Gateway struct {
	store  VectorWriter
	hub    Broadcaster
	mode   atomic.Value // Mode
	logger *slog.Logger
	tracer trace.Tracer
}

// NewGateway creates a new Gateway.
func NewGateway(store VectorWriter, broadcaster Broadcaster, cfg Config) *Gateway {
	if cfg.Mode == "" {
		cfg.Mode = ModePeer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}

	g := &Gateway{
		store:  store,
		hub:    broadcaster,
		logger: cfg.Logger,
		tracer: cfg.Tracer,
	}
	g.mode.Store(cfg.Mode)
	return g
}

// Mode returns the current broadcast mode.
func (g *Gateway) Mode() Mode {
	return g.mode.Load().(Mode)
}

// SetMode switches the broadcast mode for subsequent frames.
func (g *Gateway) SetMode(mode Mode) {
	g.mode.Store(mode)
}

// PutHTTP stores body under the caller-supplied id and broadcasts it to every
// subscriber of the session. The body may be any JSON value.
func (g *Gateway) PutHTTP(ctx context.Context, session, vectorID string, body []byte) error {
	ctx, span := g.startSpan(ctx, "ingest.http", session)
	defer span.End()
	span.SetAttributes(attribute.String("relay.vector_id", vectorID))

	payload, err := DecodeValue(session, body)
	if err != nil {
		g.fail(span, SourceHTTP, err)
		return err
	}

	g.store.Put(session, vectorID, payload)
	metrics.RecordWrite(SourceHTTP)

	res := g.hub.Broadcast(ctx, session, payload, "")
	span.SetAttributes(
		attribute.Int("relay.delivered", res.Delivered),
		attribute.Int("relay.failed", res.Failed),
	)
	return nil
}

// IngestFrame handles one WebSocket text frame from sender. Every item's id
// is derived before anything is written, so a frame is either stored whole
// or rejected whole. It returns the number of vectors stored.
func (g *Gateway) IngestFrame(ctx context.Context, session string, sender hub.Token, frame []byte) (int, error) {
	ctx, span := g.startSpan(ctx, "ingest.frame", session)
	defer span.End()

	items, err := DecodeBatch(session, frame)
	if err != nil {
		g.fail(span, SourceWS, err)
		return 0, err
	}

	ids := make([]string, len(items))
	for i, item := range items {
		id, err := DeriveID(session, item)
		if err != nil {
			g.fail(span, SourceWS, err)
			return 0, err
		}
		ids[i] = id
	}

	exclude := sender
	if g.Mode() == ModeEcho {
		exclude = ""
	}

	var delivered, failed int
	for i, item := range items {
		g.store.Put(session, ids[i], item)
		metrics.RecordWrite(SourceWS)

		res := g.hub.Broadcast(ctx, session, item, exclude)
		delivered += res.Delivered
		failed += res.Failed
	}

	span.SetAttributes(
		attribute.Int("relay.items", len(items)),
		attribute.Int("relay.delivered", delivered),
		attribute.Int("relay.failed", failed),
	)
	return len(items), nil
}

func (g *Gateway) startSpan(ctx context.Context, name, session string) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("relay.session", session)),
	)
}

func (g *Gateway) fail(span trace.Span, source string, err error) {
	errType := relayerrors.TypeInternalError
	if relayErr, ok := relayerrors.As(err); ok {
		errType = relayErr.Type
	}
	metrics.RecordIngestError(source, errType)
	g.logger.Debug("vector submission rejected", "source", source, "type", errType, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, errType)
}
