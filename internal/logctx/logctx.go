// Package logctx carries a zerolog logger through context.Context.
//
// The CLI attaches a logger with the run ID; the processor derives a child
// per file so every event about that file carries its name and worker:
//
//	ctx = logctx.WithLogger(ctx, base)
//	ctx = logctx.WithFile(ctx, "tile_0042.las", 3)
//	log := logctx.FromContext(ctx)
//	log.Debug().Msg("reading metadata")
package logctx

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

var (
	defaultLogger     zerolog.Logger
	defaultLoggerOnce sync.Once
)

func initDefaultLogger() {
	defaultLoggerOnce.Do(func() {
		defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
}

// DefaultLogger returns the logger used when a context carries none: JSON
// to stderr with timestamps.
func DefaultLogger() zerolog.Logger {
	initDefaultLogger()
	return defaultLogger
}

// SetDefaultLogger overrides the default logger. Call it during startup
// only; it is not safe to call concurrently with FromContext.
func SetDefaultLogger(l zerolog.Logger) {
	initDefaultLogger()
	defaultLogger = l
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the context's logger, or the default logger when ctx
// is nil or carries none. It never returns a zero-value logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return DefaultLogger()
}

// WithStr adds a string field to the context's logger.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithInt adds an int field to the context's logger.
func WithInt(ctx context.Context, key string, value int) context.Context {
	logger := FromContext(ctx).With().Int(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithRunID tags every event with the scan's run ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return WithStr(ctx, "run_id", runID)
}

// WithFile tags every event with the survey file name and the worker that
// owns it.
func WithFile(ctx context.Context, name string, worker int) context.Context {
	logger := FromContext(ctx).With().Str("file", name).Int("worker", worker).Logger()
	return WithLogger(ctx, logger)
}

// NewConfiguredLogger builds a logger at debug or info level, writing JSON
// or, when human is true, console-formatted lines to stderr.
func NewConfiguredLogger(debug, human bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var output zerolog.LevelWriter
	if human {
		output = zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}}
	} else {
		output = zerolog.LevelWriterAdapter{Writer: os.Stderr}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
