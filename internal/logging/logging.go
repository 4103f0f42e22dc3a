// Package logging provides the structured logger factory for flagport.
//
// It configures [log/slog] with a text or JSON handler and a configurable
// minimum level. Logs go to stderr so that reports on stdout stay clean.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a [slog.Logger] that writes to stderr.
// Accepted level strings (case-insensitive): "debug", "info", "warn", "error".
// An empty string defaults to "info"; any format other than "json" is text.
func New(level, format string) *slog.Logger {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter creates a [slog.Logger] writing to w.
func NewWithWriter(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel converts a level string to a [slog.Level].
// Returns [slog.LevelInfo] for unrecognised values.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
