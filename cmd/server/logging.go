package main

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"carimport/internal/config"
)

// newLogger builds the zap logger for cfg and routes slog through it, so
// packages keep logging with slog while zap owns encoding and levels.
// POST: slog.Default writes through the returned logger; call Sync on exit
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zc := zap.NewDevelopmentConfig()
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	logger = logger.With(zap.String("version", version), zap.String("env", cfg.Env))
	slog.SetDefault(slog.New(zapslog.NewHandler(logger.Core())))
	return logger, nil
}
