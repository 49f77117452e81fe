package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys used by the logger
type ContextKey string

const (
	// LoggerKey is the context key for the logger instance
	LoggerKey ContextKey = "logger"
)

// Options controls how New builds a logger.
type Options struct {
	// Level is a zerolog level name ("debug", "info", ...). Empty means info.
	Level string
	// Format is "console" for human output or "json" for one object per line.
	Format string
	// Output defaults to os.Stdout.
	Output io.Writer
}

// New creates a new structured logger with default configuration
func New() zerolog.Logger {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a logger with the given level and output format.
func NewWithOptions(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if !strings.EqualFold(opts.Format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Caller().Logger()
}

// NewWithWriter creates a new structured logger with a custom writer
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// Nop returns a disabled logger, handy in tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// ParseLevel converts a level name into a zerolog level, falling back to info.
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from the context or returns a default logger
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return New()
}

// FromContextOr retrieves the logger from the context, or fallback when
// none was attached.
func FromContextOr(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return fallback
}

// WithFields adds structured fields to a logger
func WithFields(logger zerolog.Logger, fields map[string]interface{}) zerolog.Logger {
	ctx := logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}
