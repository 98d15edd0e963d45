package config

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger from the logging.* keys of v.
// logging.level accepts the zap level names (debug, info, warn, error),
// defaulting to info. logging.format is "json" (default) for production
// output or "console" for human-readable development output.
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	raw := v.GetString("logging.level")

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", raw, err)
	}

	var cfg zap.Config
	switch format := v.GetString("logging.format"); format {
	case "json", "":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}
