package config

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a Zap logger from "logging.level" (debug, info, warn,
// error) and "logging.format" (json, console).
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	return BuildLogger(v.GetString("logging.level"), v.GetString("logging.format"))
}

// BuildLogger constructs a Zap logger for the given level and format.
// An empty format means console: this is an interactive client, not a
// service shipping logs to a collector.
func BuildLogger(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}
