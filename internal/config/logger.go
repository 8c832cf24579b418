package config

import (
	"io"
	"log/slog"
)

// NewLogger returns a JSON slog.Logger writing to w at level ("debug",
// "info", "warn" or "error"). Unknown levels fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: l}))
}
