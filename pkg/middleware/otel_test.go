package middleware

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/vdiff/pkg/vdom"
)

// fakeSpan records what the Tracer does to it. Methods not overridden come
// from the embedded noop span.
type fakeSpan struct {
	trace.Span
	name   string
	attrs  map[attribute.Key]attribute.Value
	status codes.Code
	errs   []error
	ended  int
}

func (s *fakeSpan) SetAttributes(kv ...attribute.KeyValue) {
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}

func (s *fakeSpan) SetStatus(code codes.Code, _ string)             { s.status = code }
func (s *fakeSpan) RecordError(err error, _ ...trace.EventOption) { s.errs = append(s.errs, err) }
func (s *fakeSpan) End(...trace.SpanEndOption)                     { s.ended++ }
func (s *fakeSpan) IsRecording() bool                              { return true }

func (s *fakeSpan) SpanContext() trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{1},
	})
}

type fakeTracer struct {
	trace.Tracer
	spans []*fakeSpan
}

func (t *fakeTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &fakeSpan{Span: noop.Span{}, name: name, attrs: make(map[attribute.Key]attribute.Value)}
	s.SetAttributes(cfg.Attributes()...)
	t.spans = append(t.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

type fakeProvider struct {
	trace.TracerProvider
	tracer *fakeTracer
	name   string
}

func (p *fakeProvider) Tracer(name string, _ ...trace.TracerOption) trace.Tracer {
	p.name = name
	return p.tracer
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		TracerProvider: noop.NewTracerProvider(),
		tracer:         &fakeTracer{Tracer: noop.NewTracerProvider().Tracer("")},
	}
}

func TestTracerRecordsStats(t *testing.T) {
	tp := newFakeProvider()
	tr := OpenTelemetry(
		WithTracerProvider(tp),
		WithAttributes(attribute.String("service", "test")),
	)
	if tp.name != defaultTracerName {
		t.Errorf("tracer name = %q, want %q", tp.name, defaultTracerName)
	}

	ctx, span := tr.Start(context.Background(), "vdiff.render", attribute.String("vdiff.session_id", "s1"))
	if !span.Recording() {
		t.Fatal("span should be recording")
	}
	if SpanFromContext(ctx) == nil {
		t.Fatal("SpanFromContext should find the started span")
	}
	span.End(nil, vdom.Stats{Inserted: 2, Moved: 1})

	if len(tp.tracer.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tp.tracer.spans))
	}
	s := tp.tracer.spans[0]
	if s.name != "vdiff.render" {
		t.Errorf("name = %q", s.name)
	}
	for key, want := range map[attribute.Key]attribute.Value{
		"service":          attribute.StringValue("test"),
		"vdiff.session_id": attribute.StringValue("s1"),
		"vdiff.inserted":   attribute.IntValue(2),
		"vdiff.moved":      attribute.IntValue(1),
		"vdiff.removed":    attribute.IntValue(0),
	} {
		if got := s.attrs[key]; got != want {
			t.Errorf("attr %s = %v, want %v", key, got.Emit(), want.Emit())
		}
	}
	if s.status != codes.Ok {
		t.Errorf("status = %v, want Ok", s.status)
	}
	if s.ended != 1 {
		t.Errorf("ended = %d, want 1", s.ended)
	}
}

func TestTracerRecordsError(t *testing.T) {
	tp := newFakeProvider()
	tr := OpenTelemetry(WithTracerProvider(tp), WithTracerName("custom"))
	if tp.name != "custom" {
		t.Errorf("tracer name = %q, want custom", tp.name)
	}

	wantErr := errors.New("boom")
	_, span := tr.Start(context.Background(), "vdiff.reconcile")
	span.End(wantErr, vdom.Stats{})

	s := tp.tracer.spans[0]
	if s.status != codes.Error {
		t.Errorf("status = %v, want Error", s.status)
	}
	if len(s.errs) != 1 || !errors.Is(s.errs[0], wantErr) {
		t.Errorf("recorded errors = %v", s.errs)
	}
}

func TestTracerFilterSkips(t *testing.T) {
	tp := newFakeProvider()
	tr := OpenTelemetry(
		WithTracerProvider(tp),
		WithFilter(func(name string) bool { return name != "vdiff.ack" }),
	)

	ctx, span := tr.Start(context.Background(), "vdiff.ack")
	if span.Recording() {
		t.Error("filtered span should not record")
	}
	if SpanFromContext(ctx) != nil {
		t.Error("filtered operation should not put a span in the context")
	}
	span.SetAttributes(attribute.Int("x", 1))
	span.End(nil, vdom.Stats{})

	if len(tp.tracer.spans) != 0 {
		t.Errorf("spans = %d, want 0", len(tp.tracer.spans))
	}
}

func TestNilTracer(t *testing.T) {
	var tr *Tracer
	ctx, span := tr.Start(context.Background(), "x")
	if SpanFromContext(ctx) != nil {
		t.Error("nil tracer should not start spans")
	}
	span.End(errors.New("ignored"), vdom.Stats{})
}

func TestSpanFromContext_NoSpan(t *testing.T) {
	if SpanFromContext(context.Background()) != nil {
		t.Fatal("expected nil span when no span is stored")
	}
}
