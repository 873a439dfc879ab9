package shared

import (
	"log/slog"
	"os"
)

func NewSlogHandlerOptions() *slog.HandlerOptions {
	if level, ok := os.LookupEnv("INVENTORY_LOG_LEVEL"); ok {
		var ll slog.Level
		switch level {
		case "DEBUG":
			ll = slog.LevelDebug
		case "WARN":
			ll = slog.LevelWarn
		case "ERROR":
			ll = slog.LevelError
		default:
			ll = slog.LevelInfo
		}
		return &slog.HandlerOptions{
			Level: ll,
		}
	}
	return nil
}
