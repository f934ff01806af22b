// Package monitoring holds the shared service logger used by the long
// running components (HTTP server, recorder, alert sinks). Per-frame
// pipeline tracing has its own writers in the pipeline package; this
// logger covers service lifecycle and error reporting.
package monitoring

import "log"

// Logf is the service logger. It defaults to log.Printf and can be
// swapped with SetLogger to redirect or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the service logger. Passing nil installs a no-op
// logger, which is useful in tests that exercise error paths.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
