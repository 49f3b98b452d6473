// Package logging provides the zap-backed implementation of types.Logger.
package logging

import (
	"fmt"
	"strings"

	"github.com/eshaffer321/steamtotwitter-go/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level and encoding
type Config struct {
	// Level is one of debug, info, warn, error
	Level string

	// Format is console or json
	Format string
}

// Logger adapts a *zap.Logger to types.Logger. Key/value pairs become
// structured fields.
type Logger struct {
	logger *zap.Logger
}

// New builds a logger writing to stderr
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	switch cfg.Format {
	case "", "console":
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zcfg.DisableStacktrace = true
	zcfg.Sampling = nil

	zl, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{logger: zl}, nil
}

// Wrap adapts an existing zap logger
func Wrap(zl *zap.Logger) *Logger {
	return &Logger{logger: zl}
}

// Named returns a logger tagged with a component name
func (l *Logger) Named(component string) *Logger {
	return &Logger{logger: l.logger.Named(component)}
}

// With returns a logger that adds ctx to every entry
func (l *Logger) With(ctx ...interface{}) *Logger {
	return &Logger{logger: l.logger.With(convertCtx(ctx)...)}
}

func (l *Logger) Debug(msg string, ctx ...interface{}) {
	l.logger.Debug(msg, convertCtx(ctx)...)
}

func (l *Logger) Info(msg string, ctx ...interface{}) {
	l.logger.Info(msg, convertCtx(ctx)...)
}

func (l *Logger) Warn(msg string, ctx ...interface{}) {
	l.logger.Warn(msg, convertCtx(ctx)...)
}

func (l *Logger) Error(msg string, ctx ...interface{}) {
	l.logger.Error(msg, convertCtx(ctx)...)
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

func convertCtx(ctx []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(ctx)/2+1)
	for i := 0; i+1 < len(ctx); i += 2 {
		key, ok := ctx[i].(string)
		if !ok {
			key = fmt.Sprint(ctx[i])
		}
		if err, ok := ctx[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, ctx[i+1]))
	}
	if len(ctx)%2 == 1 {
		fields = append(fields, zap.Any("extra", ctx[len(ctx)-1]))
	}
	return fields
}

var _ types.Logger = (*Logger)(nil)
