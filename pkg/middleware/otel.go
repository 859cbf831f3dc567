package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// Default tracer name.
const defaultTracerName = "vdiff"

// OTelConfig configures the OpenTelemetry tracer.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "vdiff").
	TracerName string

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider

	// Filter determines which operations to trace.
	// Return true to trace the operation, false to skip.
	// If nil, all operations are traced.
	Filter func(name string) bool

	// Attributes are added to every span.
	Attributes []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry tracer.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.Provider = tp
	}
}

// WithFilter sets a filter function on operation names.
func WithFilter(filter func(name string) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributes adds attributes to every span.
func WithAttributes(attrs ...attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.Attributes = append(c.Attributes, attrs...)
	}
}

// Tracer starts spans for reconciliation passes and session operations.
// A nil *Tracer starts no spans.
type Tracer struct {
	tracer trace.Tracer
	filter func(string) bool
	attrs  []attribute.KeyValue
}

// OpenTelemetry creates a Tracer.
//
// The tracer uses the global OpenTelemetry tracer provider unless one is
// given. Configure it in main() before starting the server:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
func OpenTelemetry(opts ...OTelOption) *Tracer {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	var tracer trace.Tracer
	if config.Provider != nil {
		tracer = config.Provider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}
	return &Tracer{tracer: tracer, filter: config.Filter, attrs: config.Attributes}
}

// Span is a started operation. End must be called exactly once.
type Span struct {
	span trace.Span
}

// Start starts a span named name as a child of any span in ctx. The returned
// context carries the new span.
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	if t == nil || (t.filter != nil && !t.filter(name)) {
		return ctx, &Span{}
	}
	all := make([]attribute.KeyValue, 0, len(t.attrs)+len(attrs))
	all = append(all, t.attrs...)
	all = append(all, attrs...)

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(all...),
		trace.WithTimestamp(time.Now()),
	)
	return ctx, &Span{span: span}
}

// Recording reports whether the span records anything.
func (s *Span) Recording() bool {
	return s.span != nil && s.span.IsRecording()
}

// SetAttributes adds attributes to the span.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	if s.span != nil {
		s.span.SetAttributes(attrs...)
	}
}

// End records the pass statistics and the outcome, then ends the span.
func (s *Span) End(err error, stats vdom.Stats) {
	if s.span == nil {
		return
	}
	s.span.SetAttributes(
		attribute.Int("vdiff.materialized", stats.Materialized),
		attribute.Int("vdiff.inserted", stats.Inserted),
		attribute.Int("vdiff.moved", stats.Moved),
		attribute.Int("vdiff.removed", stats.Removed),
		attribute.Int("vdiff.updated", stats.Updated),
	)
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// SpanFromContext retrieves the current trace span from ctx, or nil when ctx
// carries no valid span.
func SpanFromContext(ctx context.Context) trace.Span {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}
