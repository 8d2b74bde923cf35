package observability

import (
	"context"
	"time"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordPut does nothing.
func (NoopMetrics) RecordPut(_ context.Context, _ string, _ time.Duration) {}

// RecordCollect does nothing.
func (NoopMetrics) RecordCollect(_ context.Context, _ int, _ time.Duration) {}

// RecordRun does nothing.
func (NoopMetrics) RecordRun(_ context.Context, _ int, _ time.Duration) {}
