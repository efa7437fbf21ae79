// Package logging builds the debug logger shared by every agentos command.
// Logs are JSON lines written to <log_dir>/agentos-debug.log, and only when
// AGENT_OS_DEBUG is set; otherwise a discard logger is returned so callers
// never need nil checks.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// FileName is the debug log file name inside the log directory.
const FileName = "agentos-debug.log"

// New returns a logger and a close function. With debug disabled the logger
// discards everything and close is a no-op.
func New(logDir string, debug bool) (*slog.Logger, func() error, error) {
	if !debug {
		return Discard(), func() error { return nil }, nil
	}

	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(logDir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return NewWriter(file, slog.LevelDebug), file.Close, nil
}

// NewWriter returns a JSON logger writing to w at the given level.
func NewWriter(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Truncate shortens s for log attributes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
