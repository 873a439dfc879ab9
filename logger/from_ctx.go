package logger

import (
	"context"
	"log/slog"
)

// LoggerFromCtx returns the default logger with the run, kind and project
// attached. Handler already adds them when the *Context logging methods are
// used; this covers the call sites that log without a context.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	for _, field := range fields {
		if v, ok := ctx.Value(field).(string); ok {
			logger = logger.With(string(field), v)
		}
	}
	return logger
}
