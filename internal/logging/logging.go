// Package logging builds Kestrel's process logger. Code logs through
// log/slog; records are encoded and written by zap.
package logging

import (
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Logger is a slog.Logger backed by a zap core.
type Logger struct {
	*slog.Logger
	zap *zap.Logger
}

// New builds a logger from configuration. Development mode switches to the
// console encoder with caller and stack traces.
func New(cfg domain.LoggingConfig) (*Logger, error) {
	level := parseLevel(cfg.Level)

	var encoderConfig zapcore.EncoderConfig
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	format := cfg.Format
	if cfg.Development && format == "" {
		format = "console"
	}
	if format != "console" {
		format = "json"
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		DisableCaller:     !cfg.Development,
		DisableStacktrace: !cfg.Development,
		Encoding:          format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}

	zl, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return fromZap(zl, cfg.Development), nil
}

// NewFromCore wraps an existing zap core, e.g. an observer in tests.
func NewFromCore(core zapcore.Core) *Logger {
	return fromZap(zap.New(core), false)
}

// NewNoOp returns a logger that discards everything.
func NewNoOp() *Logger {
	return fromZap(zap.NewNop(), false)
}

func fromZap(zl *zap.Logger, withCaller bool) *Logger {
	handler := zapslog.NewHandler(zl.Core(),
		zapslog.WithName("kestrel"),
		zapslog.WithCaller(withCaller),
	)
	return &Logger{
		Logger: slog.New(handler),
		zap:    zl,
	}
}

// SetDefault installs l as the slog default so package-level slog calls
// reach zap.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.Logger)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// parseLevel converts a level name to a zap level. Unknown names mean info.
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
