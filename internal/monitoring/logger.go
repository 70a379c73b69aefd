// Package monitoring carries the process-wide diagnostic loggers.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// but may be replaced by SetLogger. Tests or production code can redirect
// or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Tracef is the high-frequency telemetry logger (per-shift slab counts
// and similar). Disabled by default; enable with SetTraceLogger.
var Tracef func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetTraceLogger replaces the trace logger. Passing nil disables tracing.
func SetTraceLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Tracef = func(string, ...interface{}) {}
		return
	}
	Tracef = f
}
