// Package recovery provides panic recovery utilities for goroutines.
package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rchat-io/rchat/internal/metrics"
)

// RecoverWithLog recovers from panics and logs them with the provided logger.
// Use this with defer at the start of goroutines to prevent crashes and log diagnostics.
//
// Example:
//
//	go func() {
//	    defer recovery.RecoverWithLog(logger, "myGoroutine")
//	    // ... goroutine work
//	}()
func RecoverWithLog(logger *slog.Logger, name string) {
	if r := recover(); r != nil {
		stack := string(debug.Stack())
		logger.Error("panic recovered",
			"goroutine", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", stack)
	}
}

// RecoverWithCallback recovers from panics, logs them, and calls the optional callback.
// The callback can be used for cleanup or metrics reporting.
func RecoverWithCallback(logger *slog.Logger, name string, callback func(recovered interface{})) {
	if r := recover(); r != nil {
		stack := string(debug.Stack())
		logger.Error("panic recovered",
			"goroutine", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", stack)
		if callback != nil {
			callback(r)
		}
	}
}

// RecoverWithMetrics recovers from panics, logs them, and increments
// m.PanicsRecovered under the goroutine's name. The relay's per-connection
// read and write loops and the client engine's Session.Run use this
// instead of RecoverWithLog so an operator watching
// rchat_panics_recovered_total notices a misbehaving goroutine without
// grepping logs. Pass nil for m to skip the metric, e.g. in tests. It
// calls recover itself: recover only stops a panic when called directly
// by the deferred function, so delegating to RecoverWithCallback would
// recover nothing.
func RecoverWithMetrics(logger *slog.Logger, name string, m *metrics.Metrics) {
	if r := recover(); r != nil {
		logger.Error("panic recovered",
			"goroutine", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()))
		if m != nil {
			m.RecordPanicRecovered(name)
		}
	}
}

// RecoverNoop silently recovers from panics without logging.
// Use only in tests or when logging is not available.
func RecoverNoop() {
	recover()
}
