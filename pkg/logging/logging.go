// Package logging builds the structured loggers every component in this
// module uses, following the same zap development-config pattern a
// consensus engine's own per-component logger is built from.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects a logger's encoding and level; see pkg/config for the
// YAML-level shape this is built from.
type Config struct {
	Encoding string // "console" or "json"
	Level    string // zap level name, e.g. "debug", "info", "warn"
	Path     string // "" (stderr) or a file path
}

// New builds a *zap.Logger for module, tagged with
// With(zap.String("module", ...)) the way every component in this module
// identifies its own log lines.
func New(module string, cfg Config) (*zap.Logger, error) {
	cc := zap.NewDevelopmentConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.Encoding = "console"
	if cfg.Encoding != "" {
		cc.Encoding = cfg.Encoding
	}
	if cfg.Level != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("colview/logging: %w", err)
		}
		cc.Level = lvl
	}
	if cfg.Path != "" {
		cc.OutputPaths = []string{cfg.Path}
		cc.ErrorOutputPaths = []string{cfg.Path}
	}

	log, err := cc.Build()
	if err != nil {
		return nil, fmt.Errorf("colview/logging: build %s logger: %w", module, err)
	}
	return log.With(zap.String("module", module)), nil
}

// Nop returns a logger that discards everything, for tests and callers
// that have not configured logging.
func Nop() *zap.Logger {
	return zap.NewNop()
}
