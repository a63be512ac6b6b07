// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger so tests can capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs through Logf with the WARNING: prefix used across the code base.
func Warnf(format string, v ...interface{}) {
	Logf("WARNING: "+format, v...)
}

// Errorf logs a failure that was surfaced to the user.
func Errorf(format string, v ...interface{}) {
	Logf("ERROR: "+format, v...)
}
