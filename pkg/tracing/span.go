// Package tracing provides lightweight span-based tracing. Spans carry the
// request id as their trace id, form parent-child trees through the context,
// and are emitted as structured slog records when they end.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey struct{}

// Span is a timed operation within a trace.
type Span struct {
	name    string
	traceID string
	parent  *Span
	started time.Time

	mu    sync.Mutex
	attrs []any
}

// StartSpan opens a root span and stores it in the returned context.
func StartSpan(ctx context.Context, name string, traceID string) (context.Context, *Span) {
	span := &Span{
		name:    name,
		traceID: traceID,
		started: time.Now(),
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// StartChildSpan opens a span nested under the one in ctx, if any.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{
		name:    name,
		parent:  SpanFromContext(ctx),
		started: time.Now(),
	}
	if child.parent != nil {
		child.traceID = child.parent.traceID
	}
	return context.WithValue(ctx, contextKey{}, child), child
}

// SpanFromContext returns the current span, or nil if ctx carries none.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End closes the span and emits it as a structured log record.
func (s *Span) End() {
	elapsed := time.Since(s.started)

	s.mu.Lock()
	attrs := make([]any, 0, len(s.attrs)+8)
	attrs = append(attrs,
		"span", s.name,
		"trace_id", s.traceID,
		"duration_ms", elapsed.Milliseconds(),
	)
	if s.parent != nil {
		attrs = append(attrs, "parent", s.parent.name)
	}
	attrs = append(attrs, s.attrs...)
	s.mu.Unlock()

	slog.Debug("span", attrs...)
}
