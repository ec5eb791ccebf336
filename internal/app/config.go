package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PolicyPaths []string // hcl/yaml files or directories

	LogFormat   string
	LogLevel    string
	Trace       bool
	CheckOnly   bool
	MetricsPort int
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.CheckOnly && len(cfg.PolicyPaths) == 0 {
		return nil, errors.New("check mode needs at least one policy path")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return nil, fmt.Errorf("invalid metrics-port %d", cfg.MetricsPort)
	}
	return &cfg, nil
}
