// File: internal/platform/logger/zap.go
package logger

import (
	"strings"

	"donation_match_backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New initializes a new Zap logger based on the application configuration.
// Release mode builds a production logger; every other mode gets the
// human-readable development encoder.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.GinMode == "release" {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.LogLevel))

	if strings.ToLower(cfg.LogFormat) == "json" {
		zapConfig.Encoding = "json"
		// Colour codes make no sense inside JSON values.
		zapConfig.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	} else {
		zapConfig.Encoding = "console"
	}

	return zapConfig.Build()
}

// ParseLevel maps a configured level name onto a zap level, defaulting to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sync flushes buffered entries; safe to call with a nil logger.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}
