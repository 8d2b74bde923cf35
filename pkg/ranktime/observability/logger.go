// Package observability provides structured logging, metrics, and
// tracing hooks for ranktime.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds rank context to a logger. Returns a new logger with
// run_id, rank, and group_size fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", 2, 8)
//	enriched.Info("collecting") // includes run_id, rank, group_size
func EnrichLogger(logger *slog.Logger, runID string, rank, size int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.Int("rank", rank),
		slog.Int("group_size", size),
	)
}

// LogInitialize logs registry initialization.
func LogInitialize(logger *slog.Logger, applicationName, runName string) {
	if logger == nil {
		return
	}
	logger.Info("registry initialized",
		slog.String("application", applicationName),
		slog.String("run", runName),
	)
}

// LogNormalize logs clock normalization with the adopted zero time and
// this rank's skew against it.
func LogNormalize(logger *slog.Logger, t0Ns int64, skew time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("clocks normalized",
		slog.Int64("t0_ns", t0Ns),
		slog.Duration("skew", skew),
	)
}

// LogCollectStart logs entry into the collect protocol.
func LogCollectStart(logger *slog.Logger, events int) {
	if logger == nil {
		return
	}
	logger.Debug("collect starting",
		slog.Int("local_events", events),
	)
}

// LogCollectComplete logs successful collection on the coordinator.
func LogCollectComplete(logger *slog.Logger, ranks int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("collect completed",
		slog.Int("ranks", ranks),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFinalized logs registry finalization.
func LogFinalized(logger *slog.Logger, runtime time.Duration) {
	if logger == nil {
		return
	}
	logger.Info("registry finalized",
		slog.Duration("runtime", runtime),
	)
}

// LogBestEffortShutdown logs the local-only fault-path shutdown.
func LogBestEffortShutdown(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Warn("best-effort shutdown: finalizing local data without collectives")
}

// TimedOperation measures the duration of an operation. Returns a
// function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
