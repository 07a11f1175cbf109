// Package logging sets up the process logger. Records go to stderr and,
// when configured, to a log file as well.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	logFileMode = 0o644
	logDirMode  = 0o755
)

// Config holds logging configuration.
type Config struct {
	// Level is debug, info, warn or error.
	Level string
	// Format is json or text.
	Format string
	// File, if set, receives a copy of every record.
	File string
}

// ParseLevel parses a level name. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// Setup builds the logger. The returned cleanup closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	return setup(cfg, os.Stderr)
}

func setup(cfg Config, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	writer := stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), logDirMode); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFileMode)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		writer = io.MultiWriter(f, stderr)
		cleanup = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		cleanup()
		return nil, nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	return slog.New(handler), cleanup, nil
}
