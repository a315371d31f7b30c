package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records execution metrics for health checks and uptime probes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCheck records a dependency health check run with its duration
	// and resulting status (healthy, degraded, unhealthy).
	RecordCheck(ctx context.Context, meta CheckMeta, duration time.Duration, status string)

	// RecordProbe records an uptime probe run with its duration and outcome.
	RecordProbe(ctx context.Context, meta CheckMeta, duration time.Duration, up bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter          metric.Meter
	checkCount     metric.Int64Counter
	checkUnhealthy metric.Int64Counter
	checkDuration  metric.Float64Histogram
	probeCount     metric.Int64Counter
	probeFailures  metric.Int64Counter
	probeDuration  metric.Float64Histogram
}

// NewMetrics creates a Metrics instance recording through the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	checkCount, err := meter.Int64Counter(
		"monitor.check.total",
		metric.WithDescription("Total number of health check runs"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	checkUnhealthy, err := meter.Int64Counter(
		"monitor.check.unhealthy",
		metric.WithDescription("Total number of health checks that reported unhealthy"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	checkDuration, err := meter.Float64Histogram(
		"monitor.check.duration_ms",
		metric.WithDescription("Health check duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	probeCount, err := meter.Int64Counter(
		"monitor.probe.total",
		metric.WithDescription("Total number of uptime probe runs"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	probeFailures, err := meter.Int64Counter(
		"monitor.probe.failures",
		metric.WithDescription("Total number of failed uptime probe runs"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	probeDuration, err := meter.Float64Histogram(
		"monitor.probe.duration_ms",
		metric.WithDescription("Uptime probe duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:          meter,
		checkCount:     checkCount,
		checkUnhealthy: checkUnhealthy,
		checkDuration:  checkDuration,
		probeCount:     probeCount,
		probeFailures:  probeFailures,
		probeDuration:  probeDuration,
	}, nil
}

// RecordCheck records metrics for one health check run.
func (m *metricsImpl) RecordCheck(ctx context.Context, meta CheckMeta, duration time.Duration, status string) {
	opt := metric.WithAttributes(m.attrs(meta, attribute.String("check.status", status))...)

	m.checkCount.Add(ctx, 1, opt)
	if status == "unhealthy" {
		m.checkUnhealthy.Add(ctx, 1, opt)
	}
	m.checkDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

// RecordProbe records metrics for one uptime probe run.
func (m *metricsImpl) RecordProbe(ctx context.Context, meta CheckMeta, duration time.Duration, up bool) {
	opt := metric.WithAttributes(m.attrs(meta, attribute.Bool("probe.up", up))...)

	m.probeCount.Add(ctx, 1, opt)
	if !up {
		m.probeFailures.Add(ctx, 1, opt)
	}
	m.probeDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) attrs(meta CheckMeta, extra ...attribute.KeyValue) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("check.name", meta.Name),
	}
	if meta.Kind != "" {
		attrs = append(attrs, attribute.String("check.kind", meta.Kind))
	}
	return append(attrs, extra...)
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordCheck(ctx context.Context, meta CheckMeta, duration time.Duration, status string) {
}

func (m *noopMetrics) RecordProbe(ctx context.Context, meta CheckMeta, duration time.Duration, up bool) {
}

// NopMetrics returns a Metrics implementation that discards everything.
func NopMetrics() Metrics {
	return &noopMetrics{}
}
