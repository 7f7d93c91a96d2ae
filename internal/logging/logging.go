// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/kozaktomas/lookalike/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	fileMaxSizeMB  = 50
	fileMaxBackups = 3
	fileMaxAgeDays = 14
)

// New returns a logger configured from cfg together with a closer for the
// rotated log file (nil when logging only to stderr).
// Logs go to stderr so that CLI commands can print JSON on stdout.
func New(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	w, closer := buildWriter(os.Stderr, cfg.FilePath)
	return slog.New(buildHandler(w, ParseLevel(cfg.Level), cfg.Format)), closer
}

// ParseLevel converts a string to slog.Level, defaulting to Info.
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

func buildWriter(base io.Writer, path string) (io.Writer, io.Closer) {
	if path == "" {
		return base, nil
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: fileMaxBackups,
		MaxAge:     fileMaxAgeDays,
	}
	return io.MultiWriter(base, lj), lj
}

func buildHandler(w io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
