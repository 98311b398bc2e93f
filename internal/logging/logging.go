// Package logging wires slog JSON output to a size-rotated log file
// under ~/.grantwell/logs, optionally mirrored to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string
	// FilePath is the log file; empty logs to stderr only.
	FilePath string
	// MaxSizeMB caps a log generation before rotation.
	MaxSizeMB int
	// MaxFiles is how many rotated generations to keep.
	MaxFiles int
	// WriteToStderr mirrors log lines to stderr as well.
	WriteToStderr bool
}

func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DefaultLogPath is ~/.grantwell/logs/retrieval.log, falling back to
// the temp directory when the home directory cannot be resolved.
func DefaultLogPath() string {
	base, err := os.UserHomeDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, ".grantwell", "logs", "retrieval.log")
}

// Setup builds the logger and returns it with a cleanup function that
// flushes and closes the log file. The caller decides whether to
// install it as the slog default.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if cfg.FilePath == "" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), func() {}, nil
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = writer
	if cfg.WriteToStderr {
		out = io.MultiWriter(writer, os.Stderr)
	}

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return slog.New(slog.NewJSONHandler(out, opts)), cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
