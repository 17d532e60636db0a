// Package logging builds the slog loggers used across wutboard.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Common attribute keys.
const (
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldResource  = "resource"
	FieldDuration  = "duration_ms"
	FieldStatus    = "status"
	FieldKind      = "kind"
)

// ParseLevel maps debug, info, warn and error (case-insensitive) to slog levels.
// An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger writing to w. format is "text" (default) or "json";
// an unknown level falls back to info.
func New(level, format string, w io.Writer) *slog.Logger {
	lvl, err := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h)
	if err != nil {
		logger.Warn("falling back to info level", "error", err)
	}
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
