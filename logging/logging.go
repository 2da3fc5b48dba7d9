// Package logging builds the slog logger shared by every coordd component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	perrors "github.com/jmgilman/go/errors"

	"github.com/krisalay/coordcache/config"
)

// ParseLevel maps debug, info, warn/warning and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, perrors.New(perrors.CodeInvalidConfig, fmt.Sprintf("unknown log level %q", level))
	}
}

// New returns a logger writing to w in the configured format and level.
func New(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch cfg.Format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, perrors.New(perrors.CodeInvalidConfig, fmt.Sprintf("unknown log format %q", cfg.Format))
	}
	return slog.New(h), nil
}

// Nop discards everything.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
