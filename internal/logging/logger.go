// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log entry.
const ServiceName = "coreapi"

// New builds a zap.Logger configured for development or production.
// Development output is colored console text; production output is JSON.
func New(development bool, opts ...zap.Option) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"

	logger, err := cfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger (development=%t): %w", development, err)
	}
	return logger.With(zap.String("service", ServiceName)), nil
}

// Install makes logger the zap global and returns a func restoring the previous one.
func Install(logger *zap.Logger) func() {
	return zap.ReplaceGlobals(logger)
}
