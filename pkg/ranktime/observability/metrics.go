package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records ranktime metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordPut records one finished event folded into the local aggregate.
	RecordPut(ctx context.Context, name string, duration time.Duration)

	// RecordCollect records a completed collect phase with the number of
	// local events shipped.
	RecordCollect(ctx context.Context, events int, duration time.Duration)

	// RecordRun records a finalized run.
	RecordRun(ctx context.Context, rank int, runtime time.Duration)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	puts           metric.Int64Counter
	eventLatency   metric.Float64Histogram
	collectLatency metric.Float64Histogram
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("ranktime")

	puts, err := meter.Int64Counter("ranktime.event.puts",
		metric.WithDescription("Number of events folded into local aggregates"),
	)
	if err != nil {
		return nil, err
	}

	eventLatency, err := meter.Float64Histogram("ranktime.event.duration_ms",
		metric.WithDescription("Measured event duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	collectLatency, err := meter.Float64Histogram("ranktime.collect.duration_ms",
		metric.WithDescription("Collect phase duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("ranktime.runs",
		metric.WithDescription("Number of finalized runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("ranktime.run.duration_ms",
		metric.WithDescription("Whole-run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		puts:           puts,
		eventLatency:   eventLatency,
		collectLatency: collectLatency,
		runs:           runs,
		runLatency:     runLatency,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordPut records one aggregated event.
func (m *otelMetrics) RecordPut(ctx context.Context, name string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("event", name),
	}
	m.puts.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.eventLatency.Record(ctx, float64(duration)/float64(time.Millisecond),
		metric.WithAttributes(attrs...))
}

// RecordCollect records a completed collect phase.
func (m *otelMetrics) RecordCollect(ctx context.Context, events int, duration time.Duration) {
	m.collectLatency.Record(ctx, float64(duration)/float64(time.Millisecond),
		metric.WithAttributes(attribute.Int("events", events)))
}

// RecordRun records a finalized run.
func (m *otelMetrics) RecordRun(ctx context.Context, rank int, runtime time.Duration) {
	attrs := metric.WithAttributes(attribute.Int("rank", rank))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(runtime)/float64(time.Millisecond), attrs)
}
