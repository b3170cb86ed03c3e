package observability

import (
	"go.uber.org/zap"
)

// NewLogger builds the service logger. format "json" selects the production
// encoder; anything else the human-readable development one. An unparseable
// level falls back to info.
func NewLogger(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl

	logger, err := cfg.Build(zap.Fields(zap.String("service", "aiplanner")))
	if err != nil {
		return nil, err
	}
	return logger, nil
}
