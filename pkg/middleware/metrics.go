package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/vdiff/pkg/protocol"
	"github.com/vango-dev/vdiff/pkg/vdom"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "vdiff").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for pass duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer

	// Gatherer serves Handler. It defaults to Registry when Registry is
	// also a Gatherer, and to prometheus.DefaultGatherer otherwise.
	Gatherer prometheus.Gatherer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
		if g, ok := registry.(prometheus.Gatherer); ok {
			c.Gatherer = g
		}
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "vdiff",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
		Gatherer:  prometheus.DefaultGatherer,
	}
}

// Metrics holds the Prometheus collectors for reconciliation passes and
// sessions. All methods are safe on a nil *Metrics and do nothing, so callers
// can run with metrics disabled.
type Metrics struct {
	opsTotal       *prometheus.CounterVec
	passesTotal    *prometheus.CounterVec
	passDuration   prometheus.Histogram
	passErrors     *prometheus.CounterVec
	patchesSent    prometheus.Counter
	framesSent     *prometheus.CounterVec
	activeSessions prometheus.Gauge
	resumesTotal   *prometheus.CounterVec
	evictionsTotal prometheus.Counter
	wsErrors       *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// Prometheus registers the vdiff metrics and returns them.
//
// Metrics collected:
//   - vdiff_ops_total: primitives issued to the live tree, by op
//   - vdiff_passes_total: reconciliation passes by status
//   - vdiff_pass_duration_seconds: reconciliation pass duration
//   - vdiff_pass_errors_total: failed passes by error type
//   - vdiff_patches_sent_total: patches sent to clients
//   - vdiff_frames_sent_total: frames sent to clients, by frame type
//   - vdiff_active_sessions: connected WebSocket sessions
//   - vdiff_session_resumes_total: resumes by result (replay, resync, failed)
//   - vdiff_session_evictions_total: sessions dropped by the session cache
//   - vdiff_websocket_errors_total: WebSocket errors by type
//
// Registering twice on the same registry panics, as with promauto.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	m := middleware.Prometheus(middleware.WithRegistry(reg))
//	r.Handle("/metrics", m.Handler())
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		opsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "ops_total",
			Help:        "Total number of live tree primitives issued",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		passesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "passes_total",
			Help:        "Total number of reconciliation passes",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pass_duration_seconds",
			Help:        "Reconciliation pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		passErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pass_errors_total",
			Help:        "Total number of failed reconciliation passes",
			ConstLabels: config.ConstLabels,
		}, []string{"error_type"}),

		patchesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "patches_sent_total",
			Help:        "Total number of patches sent to clients",
			ConstLabels: config.ConstLabels,
		}),

		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frames_sent_total",
			Help:        "Total number of frames sent to clients",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of connected WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		resumesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "session_resumes_total",
			Help:        "Total number of session resume attempts by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		evictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "session_evictions_total",
			Help:        "Total number of sessions evicted from the session cache",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_errors_total",
			Help:        "Total WebSocket errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		gatherer: config.Gatherer,
	}
}

// Handler serves the gathered metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObservePass records one reconciliation pass.
func (m *Metrics) ObservePass(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.passDuration.Observe(d.Seconds())
	status := "success"
	if err != nil {
		status = "error"
		m.passErrors.WithLabelValues(categorizeError(err)).Inc()
	}
	m.passesTotal.WithLabelValues(status).Inc()
}

// RecordPatches records the number of patches sent.
func (m *Metrics) RecordPatches(count int) {
	if m != nil {
		m.patchesSent.Add(float64(count))
	}
}

// RecordFrame records a frame sent to a client.
func (m *Metrics) RecordFrame(ft protocol.FrameType) {
	if m != nil {
		m.framesSent.WithLabelValues(strings.ToLower(ft.String())).Inc()
	}
}

// RecordSessionOpen records a new WebSocket connection.
func (m *Metrics) RecordSessionOpen() {
	if m != nil {
		m.activeSessions.Inc()
	}
}

// RecordSessionClose records a WebSocket connection going away.
func (m *Metrics) RecordSessionClose() {
	if m != nil {
		m.activeSessions.Dec()
	}
}

// RecordResume records a resume attempt: "replay", "resync" or "failed".
func (m *Metrics) RecordResume(result string) {
	if m != nil {
		m.resumesTotal.WithLabelValues(result).Inc()
	}
}

// RecordEviction records a session dropped by the session cache.
func (m *Metrics) RecordEviction() {
	if m != nil {
		m.evictionsTotal.Inc()
	}
}

// RecordWebSocketError records a WebSocket error.
func (m *Metrics) RecordWebSocketError(errorType string) {
	if m != nil {
		m.wsErrors.WithLabelValues(errorType).Inc()
	}
}

// categorizeError returns a category for the error type.
// This prevents high-cardinality labels from error messages.
func categorizeError(err error) string {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline"):
		return "timeout"
	case strings.Contains(s, "canceled"):
		return "canceled"
	case strings.Contains(s, "destroyed"):
		return "destroyed"
	case strings.Contains(s, "not a child"), strings.Contains(s, "already attached"):
		return "tree"
	case strings.Contains(s, "handle"):
		return "handle"
	default:
		return "internal"
	}
}

// Wrap returns an Applier that forwards to a and counts every primitive that
// succeeds. The result implements vdom.Clearer, falling back to one
// RemoveChild per node when a does not.
func (m *Metrics) Wrap(a vdom.Applier) vdom.Applier {
	if m == nil {
		return a
	}
	return &countingApplier{Applier: a, ops: m.opsTotal}
}

type countingApplier struct {
	vdom.Applier
	ops *prometheus.CounterVec
}

func (c *countingApplier) inc(op string, err error) error {
	if err == nil {
		c.ops.WithLabelValues(op).Inc()
	}
	return err
}

func (c *countingApplier) Materialize(node *vdom.VNode) (vdom.Handle, error) {
	h, err := c.Applier.Materialize(node)
	return h, c.inc("materialize", err)
}

func (c *countingApplier) InsertBefore(parent, node, ref vdom.Handle) error {
	return c.inc("insert", c.Applier.InsertBefore(parent, node, ref))
}

func (c *countingApplier) RemoveChild(parent, node vdom.Handle) error {
	return c.inc("remove", c.Applier.RemoveChild(parent, node))
}

func (c *countingApplier) MoveBefore(parent, node, ref vdom.Handle) error {
	return c.inc("move", c.Applier.MoveBefore(parent, node, ref))
}

func (c *countingApplier) UpdateInPlace(prev, next *vdom.VNode, h vdom.Handle) error {
	return c.inc("update", c.Applier.UpdateInPlace(prev, next, h))
}

func (c *countingApplier) RemoveAllChildren(parent vdom.Handle, nodes []vdom.Handle) error {
	cl, ok := c.Applier.(vdom.Clearer)
	if !ok {
		for _, n := range nodes {
			if err := c.RemoveChild(parent, n); err != nil {
				return err
			}
		}
		return nil
	}
	if err := cl.RemoveAllChildren(parent, nodes); err != nil {
		return err
	}
	c.ops.WithLabelValues("remove").Add(float64(len(nodes)))
	return nil
}
