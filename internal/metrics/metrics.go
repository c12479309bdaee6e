// Package metrics records operation outcomes for the benchbook stores.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder observes a store operation outcome. Implementations must be safe
// for concurrent use.
type Recorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Noop discards all observations. Useful default for tests.
type Noop struct{}

func (Noop) Observe(context.Context, string, bool, time.Duration) {}

// PrometheusRecorder publishes operation counters and duration histograms to
// a prometheus registry.
type PrometheusRecorder struct {
	results   *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewPrometheusRecorder constructs a recorder and registers its collectors.
// A nil registerer falls back to the default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	results := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "benchbook",
		Name:      "operations_total",
		Help:      "Store operations by operation name and outcome.",
	}, []string{"operation", "status"})
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "benchbook",
		Name:      "operation_duration_seconds",
		Help:      "Store operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	for _, c := range []prometheus.Collector{results, durations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return &PrometheusRecorder{results: results, durations: durations}, nil
}

// Observe implements Recorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.results.WithLabelValues(operation, status).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// Observed wraps fn with timing and outcome recording under the operation
// name. The returned error is fn's error, untouched.
func Observed(ctx context.Context, rec Recorder, operation string, fn func() error) error {
	if rec == nil {
		return fn()
	}
	start := time.Now()
	err := fn()
	rec.Observe(ctx, operation, err == nil, time.Since(start))
	return err
}
