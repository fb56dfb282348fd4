// Package logging wraps log/slog with file output and rotation. The REPL
// owns stdout, so logs always go to a file (or nowhere); nothing in this
// package may write to the terminal.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps slog.Logger with convenience methods for click.
type Logger struct {
	logger *slog.Logger
}

// Format selects the log output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config holds logger initialization options.
type Config struct {
	// FilePath is the log file destination; empty disables logging.
	FilePath string
	// Level is the minimum level to emit.
	Level slog.Level
	// Format is text or json.
	Format Format
	// MaxSizeMB triggers rotation; MaxBackups bounds retained files.
	MaxSizeMB  int
	MaxBackups int
}

var (
	globalLogger *Logger
	noopLogger   = &Logger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
)

// Init configures the package-level logger. With an empty FilePath the
// noop logger is installed and all output is discarded.
func Init(config Config) (*Logger, error) {
	if config.FilePath == "" {
		globalLogger = noopLogger
		return globalLogger, nil
	}

	if config.MaxSizeMB <= 0 {
		config.MaxSizeMB = 10
	}
	if config.MaxBackups <= 0 {
		config.MaxBackups = 3
	}

	writer := &lumberjack.Logger{
		Filename:   config.FilePath,
		MaxSize:    config.MaxSizeMB,
		MaxBackups: config.MaxBackups,
		Compress:   true,
	}

	opts := &slog.HandlerOptions{Level: config.Level}
	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	globalLogger = &Logger{logger: slog.New(handler)}
	return globalLogger, nil
}

// Get returns the package-level logger, or a noop logger when Init was
// never called.
func Get() *Logger {
	if globalLogger == nil {
		return noopLogger
	}
	return globalLogger
}

// ParseLevel converts a config string into a slog.Level.
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
	return 0, fmt.Errorf("unknown log level %q", s)
}

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// With returns a child logger carrying the given key-value pairs.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}
