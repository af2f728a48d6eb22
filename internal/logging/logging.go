// Package logging builds the zerolog loggers used across corpusfork.
//
// Logs never go to stdout: stdout carries pipeline output only. A logger writes
// either to stderr or to a log file, falling back to stderr when the file
// cannot be opened.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Output targets.
const (
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// DefaultLevel is used when the configured level cannot be parsed.
const DefaultLevel = zerolog.InfoLevel

// Config describes how to build a logger.
type Config struct {
	Level  string
	Format string
	Output string
	File   string
	Caller bool
}

// LogPathResult is the outcome of NewLoggerWithPath.
type LogPathResult struct {
	Logger         zerolog.Logger
	UsingFile      bool
	FilePath       string
	FallbackUsed   bool
	FallbackReason string

	mu   sync.Mutex
	file *os.File
}

// Close closes the log file, if one was opened. Safe to call more than once.
func (r *LogPathResult) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ParseLevel parses level, returning DefaultLevel for empty or unknown values.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return DefaultLevel
	}
	return lvl
}

// NewLogger builds a logger writing to w.
func NewLogger(w io.Writer, cfg Config) zerolog.Logger {
	if !strings.EqualFold(cfg.Format, FormatJSON) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger().Hook(TracingHook{})
}

// NewLoggerWithPath builds a logger from cfg. When cfg asks for a file that
// cannot be opened, the logger writes to stderr and the result records why.
func NewLoggerWithPath(cfg Config) *LogPathResult {
	return newLoggerWithPath(cfg, os.Stderr)
}

func newLoggerWithPath(cfg Config, stderr io.Writer) *LogPathResult {
	result := &LogPathResult{}

	if cfg.Output != OutputFile || cfg.File == "" {
		result.Logger = NewLogger(stderr, cfg)
		return result
	}

	file, err := openLogFile(cfg.File)
	if err != nil {
		result.FallbackUsed = true
		result.FallbackReason = err.Error()
		result.Logger = NewLogger(stderr, cfg)
		return result
	}

	result.file = file
	result.UsingFile = true
	result.FilePath = cfg.File
	result.Logger = NewLogger(file, cfg)
	return result
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return file, nil
}

// ComponentLogger returns a child logger tagged with the component name.
func ComponentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// FromContext returns the logger stored in ctx, or a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// PrintLogPathMessage tells the user where the logs of this run are written.
func PrintLogPathMessage(w io.Writer, path string) {
	_, _ = fmt.Fprintf(w, "Logging to %s\n", path)
}

// PrintFallbackWarning reports that file logging failed and stderr is used instead.
func PrintFallbackWarning(w io.Writer, reason string) {
	_, _ = fmt.Fprintf(w, "Warning: could not open log file (%s), logging to stderr\n", reason)
}
