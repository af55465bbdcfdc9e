package tracing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/id"
)

const (
	TraceHeader = "X-Trace-ID"
	bufferSize  = 1000
)

// Span represents a single traced operation.
type Span struct {
	TraceID   id.TraceID
	SpanID    id.SpanID
	ParentID  id.SpanID
	Name      string
	StartTime time.Time
	Duration  time.Duration
	Tags      map[string]string
	Err       error
}

// SetTag adds a tag to the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// Tracer collects finished spans.
type Tracer struct {
	logger *logging.Logger
	spans  chan *Span
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New creates a tracer and starts its collector.
func New(logger *logging.Logger) *Tracer {
	t := &Tracer{
		logger: logging.OrNop(logger).Named("trace"),
		spans:  make(chan *Span, bufferSize),
		done:   make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan creates a span that is a child of whatever span ctx carries.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		traceID = id.NewTraceID()
	}
	parentID, _ := ctx.Value(spanIDKey).(id.SpanID)

	span := &Span{
		TraceID:   traceID,
		SpanID:    id.NewSpanID(),
		ParentID:  parentID,
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	return span, ctx
}

// End finishes span with the outcome err and submits it.
func (t *Tracer) End(span *Span, err error) {
	span.Duration = time.Since(span.StartTime)
	span.Err = err

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("Span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span", span.Name),
		)
	}
}

// Close stops accepting spans and waits for the buffered ones to be logged.
func (t *Tracer) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.spans)
	t.mu.Unlock()
	<-t.done
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		fields := make([]zap.Field, 0, 6+len(span.Tags))
		fields = append(fields,
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
			zap.String("span", span.Name),
			zap.Duration("duration", span.Duration),
		)
		if span.ParentID != "" {
			fields = append(fields, zap.String("parent_id", string(span.ParentID)))
		}
		for k, v := range span.Tags {
			fields = append(fields, zap.String(k, v))
		}
		if span.Err != nil {
			fields = append(fields, zap.Error(span.Err))
		}
		t.logger.Debug("Span finished", fields...)
	}
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
)

// TraceIDFrom returns the trace ID carried by ctx, if any.
func TraceIDFrom(ctx context.Context) id.TraceID {
	traceID, _ := ctx.Value(traceIDKey).(id.TraceID)
	return traceID
}

// WithTraceID returns a context that continues the trace traceID.
func WithTraceID(ctx context.Context, traceID id.TraceID) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}
