// Package logging provides the process-wide logger.
//
// Output is plain timestamped logging to stderr so it never interleaves
// with supervised CLI stdout. Debug messages are suppressed unless
// DEBUG=true is set in the environment (or SetDebug is called).
package logging

import (
	"log"
	"os"
)

var (
	disabled = false
	debug    = os.Getenv("DEBUG") == "true"
	logger   = log.New(os.Stderr, "", log.LstdFlags)
)

// Disable turns off all logging
func Disable() {
	disabled = true
}

// Enable turns logging back on
func Enable() {
	disabled = false
}

// SetDebug toggles debug output (normally driven by DEBUG=true)
func SetDebug(on bool) {
	debug = on
}

// DebugEnabled reports whether debug output is active
func DebugEnabled() bool {
	return debug && !disabled
}

// Info logs an info message
func Info(v ...any) {
	if !disabled {
		logger.Println(v...)
	}
}

// Infof logs a formatted info message
func Infof(format string, v ...any) {
	if !disabled {
		logger.Printf(format, v...)
	}
}

// Warn logs a warning message
func Warn(v ...any) {
	if !disabled {
		logger.Println(v...)
	}
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...any) {
	if !disabled {
		logger.Printf(format, v...)
	}
}

// Error logs an error message
func Error(v ...any) {
	if !disabled {
		logger.Println(v...)
	}
}

// Errorf logs a formatted error message
func Errorf(format string, v ...any) {
	if !disabled {
		logger.Printf(format, v...)
	}
}

// Debug logs a debug message when DEBUG=true
func Debug(v ...any) {
	if debug && !disabled {
		logger.Println(v...)
	}
}

// Debugf logs a formatted debug message when DEBUG=true
func Debugf(format string, v ...any) {
	if debug && !disabled {
		logger.Printf(format, v...)
	}
}
