package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger: JSON records when LOG_FORMAT
// is "json" (machine collection), plain text otherwise. Source locations
// are attached either way; consistency failures are only investigable with
// the emitting call site.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
