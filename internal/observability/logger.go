// Package observability holds the logging and metrics seams the simulator's
// packages log and report through. Both default to noops so library code can
// log unconditionally; the binary installs real implementations at startup.
package observability

import (
	"fmt"
	"log"
	"strings"
)

// Logger is the structured logging surface used throughout the simulator.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

var defaultLogger Logger = noopLogger{}

// SetLogger installs the process-global logger; nil restores the noop.
func SetLogger(logger Logger) {
	if logger == nil {
		defaultLogger = noopLogger{}
		return
	}
	defaultLogger = logger
}

// Log returns the process-global logger.
func Log() Logger {
	return defaultLogger
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// NewStdLogger adapts a stdlib logger to the Logger interface, rendering
// fields as key=value pairs. Debug output is suppressed unless verbose is set.
func NewStdLogger(base *log.Logger, verbose bool) Logger {
	return &stdLogger{base: base, verbose: verbose}
}

type stdLogger struct {
	base    *log.Logger
	verbose bool
}

func (l *stdLogger) Debug(msg string, fields ...Field) {
	if !l.verbose {
		return
	}
	l.print("DEBUG", msg, fields)
}

func (l *stdLogger) Info(msg string, fields ...Field) {
	l.print("INFO", msg, fields)
}

func (l *stdLogger) Error(msg string, fields ...Field) {
	l.print("ERROR", msg, fields)
}

func (l *stdLogger) print(level, msg string, fields []Field) {
	if len(fields) == 0 {
		l.base.Printf("%s %s", level, msg)
		return
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}
	l.base.Printf("%s %s %s", level, msg, strings.Join(parts, " "))
}
