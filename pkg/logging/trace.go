package logging

import "log/slog"

// EnableTrace turns on Trace output. Init sets it when the server log level
// is TRACE.
var EnableTrace = false

// Trace logs high-frequency controller chatter at DEBUG, only when
// EnableTrace is set.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if !EnableTrace {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug(msg, args...)
}
