package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide structured logger. Production and
// "json" formats emit JSON records, everything else uses the text handler
// with source locations for easier local debugging.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg.IsProduction() || cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		})
	}
	return slog.New(handler)
}
