package utm

import (
	"go.uber.org/zap"
)

// Sink receives human-readable diagnostics, such as the list of repaired
// features.
type Sink interface {
	Warn(msg string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg string)

// Warn implements Sink.
func (f SinkFunc) Warn(msg string) { f(msg) }

// LogSink writes diagnostics to the global zap logger at warn level.
type LogSink struct{}

// Warn implements Sink.
func (LogSink) Warn(msg string) {
	zap.L().With(zap.String("component", "utm")).Warn(msg)
}

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(string) {})
