// Package middleware provides instrumentation for reconciliation passes and
// sessions.
//
// # Prometheus Metrics
//
// Prometheus registers counters for live tree primitives, passes, patches,
// frames and sessions. Wrap an Applier to count every primitive it issues:
//
//	m := middleware.Prometheus(middleware.WithNamespace("myapp"))
//	r := vdom.New(m.Wrap(doc))
//
//	start := time.Now()
//	err := r.Reconcile(root, prev, next)
//	m.ObservePass(time.Since(start), err)
//
// Then expose the metrics:
//
//	http.Handle("/metrics", m.Handler())
//
// # OpenTelemetry
//
// OpenTelemetry returns a Tracer whose spans carry the pass statistics:
//
//	ctx, span := tracer.Start(ctx, "vdiff.render",
//	    attribute.String("vdiff.session_id", id))
//	err := r.Reconcile(root, prev, next)
//	span.End(err, counter.Stats)
//
// Both are nil-safe: a nil *Metrics or *Tracer records nothing.
package middleware
