// Package logging builds the structured loggers shared by loom components.
// Components accept an injected *zap.Logger and default to a no-op logger,
// so library callers pay nothing unless they opt in.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger at the requested level. Level accepts
// debug/info/warn/error; anything else falls back to info.
func New(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parseLevel(level))
	config.DisableStacktrace = true
	return config.Build()
}

// Nop returns a logger that discards everything. Used as the default for
// injected component loggers.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// OrNop normalizes a possibly-nil injected logger.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
