// Package engine implements the claim settlement core: rooms and their
// vaults, claims, whitelist-gated voting, threshold settlement and the
// reputation ledger. Every mutating operation runs as one store transaction
// under a process-wide lock, so a failure at any step leaves no trace.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/deepesh-sr/Trustplay/internal/model"
	"github.com/deepesh-sr/Trustplay/internal/store"
)

const tracerName = "github.com/deepesh-sr/Trustplay/internal/engine"

// Policy switches optional gates on claim submission and voting.
type Policy struct {
	// GateRoomStatus rejects submissions and votes on resolved or
	// cancelled rooms with model.ErrRoomClosed.
	GateRoomStatus  bool
	// EnforceDeadline rejects submissions and votes after the room
	// deadline with model.ErrDeadlinePassed.
	EnforceDeadline bool
}

// Engine applies settlement operations to a store.
type Engine struct {
	store   store.Store
	clock   func() time.Time
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	policy  Policy

	// mu serializes mutating operations within the process.
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source. Times are normalized to UTC.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithLogger sets the logger for settlement outcomes and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records operation counters and latencies into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithPolicy sets the optional gates.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// New returns an Engine over s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  time.Now,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying store for read paths outside the engine.
func (e *Engine) Store() store.Store { return e.store }

// Policy returns the active gates.
func (e *Engine) Policy() Policy { return e.policy }

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// mutate runs fn as one locked transaction and records its outcome.
func (e *Engine) mutate(ctx context.Context, op string, fn func(ctx context.Context, tx store.Store) error) error {
	ctx, span := e.tracer.Start(ctx, "engine."+op)
	defer span.End()

	start := time.Now()
	e.mu.Lock()
	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		return fn(ctx, tx)
	})
	e.mu.Unlock()

	e.metrics.observe(op, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("trustplay.error_code", model.ErrorCode(err)))
	}
	return err
}

// view wraps a read in a span. Reads do not take the operation lock.
func (e *Engine) view(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "engine."+op)
}

// authorize is the single ownership predicate behind every organizer and
// admin check.
func authorize(caller, owner string) error {
	if caller == "" || caller != owner {
		return model.ErrUnauthorized
	}
	return nil
}

func requireOrganizer(caller string, room *model.Room) error {
	if err := authorize(caller, room.Organizer); err != nil {
		return fmt.Errorf("room %s: %w", room.RoomID, err)
	}
	return nil
}

func requireAdmin(caller string, w *model.Whitelist) error {
	if err := authorize(caller, w.Admin); err != nil {
		return fmt.Errorf("whitelist: %w", err)
	}
	return nil
}

// checkOpen applies the optional room gates for submissions and votes.
func (e *Engine) checkOpen(room *model.Room) error {
	if e.policy.GateRoomStatus && room.Status.IsTerminal() {
		return fmt.Errorf("room %s is %s: %w", room.RoomID, room.Status, model.ErrRoomClosed)
	}
	if e.policy.EnforceDeadline && !room.DeadlineAt.IsZero() && e.now().After(room.DeadlineAt) {
		return fmt.Errorf("room %s: %w", room.RoomID, model.ErrDeadlinePassed)
	}
	return nil
}
