package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New builds the process logger. format "console" gives human-readable output,
// anything else JSON. An empty level means info.
func New(level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		cfg = zap.NewDevelopmentConfig()
	}

	if lvl := strings.TrimSpace(level); lvl != "" {
		atomic, err := zap.ParseAtomicLevel(strings.ToLower(lvl))
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = atomic
	}

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log.With(zap.String("service", "signal-bot")), nil
}
