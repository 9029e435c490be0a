// Package server exposes the settlement engine over HTTP/JSON and gRPC.
// Every successful mutation is recorded as an event, published to the
// configured publisher and fanned out to SSE clients.
package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/events"
	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

// Server is the transport-independent service behind both the HTTP
// handler and the gRPC service.
type Server struct {
	engine    *engine.Engine
	store     store.Store
	publisher events.Publisher
	sseHub    *sseHub
	logger    *slog.Logger
}

// New returns a Server over eng. A nil publisher drops events; a nil
// logger uses slog.Default.
func New(eng *engine.Engine, pub events.Publisher, logger *slog.Logger) *Server {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    eng,
		store:     eng.Store(),
		publisher: pub,
		sseHub:    newSSEHub(),
		logger:    logger,
	}
}

// Engine returns the engine the server drives.
func (s *Server) Engine() *engine.Engine { return s.engine }

// recordAndPublish persists an event to the store and publishes it.
// Both steps are best-effort; failures are logged and never fail the
// operation that already committed.
func (s *Server) recordAndPublish(ctx context.Context, topic, ref, actor string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event", "topic", topic, "ref", ref, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:   topic,
		Ref:     ref,
		Actor:   actor,
		Payload: payload,
	}); err != nil {
		s.logger.Warn("failed to record event", "topic", topic, "ref", ref, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "ref", ref, "error", err)
	}
	s.sseHub.broadcast(topic, payload)
}
