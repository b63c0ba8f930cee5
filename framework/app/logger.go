package app

import (
	"io"
	"log/slog"

	"github.com/km-arc/go-magnet/framework/config"
)

// NewLogger builds the application logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
