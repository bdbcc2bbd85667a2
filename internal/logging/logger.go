// Package logging configures the runtime's structured logging output:
// an append-only JSON log file, one object per line, millisecond
// timestamps (spec §6).
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Runtime bundles the configured logger and its open file handle
// lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// levelFromString maps output.log_level (spec §6) to a charmbracelet/log
// level, defaulting to Info on an unrecognized value.
func levelFromString(level string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// New builds the runtime logger: dcr-transcribe.log under outputDir, one
// JSON object per line, at levelName or above.
func New(outputDir, levelName string) (Runtime, error) {
	path := filepath.Join(outputDir, "dcr-transcribe.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Runtime{}, err
	}

	charm := charmlog.NewWithOptions(f, charmlog.Options{
		Formatter:       charmlog.JSONFormatter,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02T15:04:05.000Z07:00",
		Level:           levelFromString(levelName),
	})

	return Runtime{Logger: slog.New(charm), Path: path, closer: f}, nil
}
