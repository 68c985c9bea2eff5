package conf

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from logging configuration
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Level))
	switch name {
	case "":
		name = "info"
	case "warning":
		name = "warn"
	case "critical":
		name = "fatal"
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil {
		return nil, fmt.Errorf("unknown LOG_LEVEL %q: %w", cfg.Level, err)
	}

	var zcfg zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		zcfg = zap.NewProductionConfig()
	case "", "console", "text":
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Development = false
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	default:
		return nil, fmt.Errorf("unknown LOG_FORMAT: %s", cfg.Format)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stdout"}

	return zcfg.Build()
}
