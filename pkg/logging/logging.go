// Package logging builds the service logger.
package logging

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level and output format.
type Config struct {
	AppName string
	Level   string
	Pretty  bool
}

// ParseLevel maps a LOG_LEVEL value onto a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// New returns an ectologger backed by zap. Pretty output uses the zap
// development encoder, everything else is JSON.
func New(cfg Config) (ectologger.Logger, *zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Pretty {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build zap logger: %w", err)
	}
	if cfg.AppName != "" {
		zapLogger = zapLogger.With(zap.String("app", cfg.AppName))
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil), zapLogger, nil
}

// Discard returns a logger that drops every message.
func Discard() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
