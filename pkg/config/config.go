// Package config is a YAML-driven configuration struct selecting the
// store backend and its decorators, following the shape and Validate()
// convention of a typical node config's Logger section.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nspcc-dev/colview/pkg/logging"
	"github.com/nspcc-dev/colview/pkg/store"
)

// Backend names a store.Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendBolt   Backend = "bolt"
	BackendLevel  Backend = "level"
)

// StoreConfig selects and decorates the underlying store.Store.
type StoreConfig struct {
	Backend    Backend `yaml:"Backend"`
	Path       string  `yaml:"Path,omitempty"`
	Cache      bool    `yaml:"Cache,omitempty"`
	CacheSize  int     `yaml:"CacheSize,omitempty"`
	Compressed bool    `yaml:"Compressed,omitempty"`
}

// Validate returns an error if StoreConfig is not valid.
func (s StoreConfig) Validate() error {
	switch s.Backend {
	case BackendMemory:
	case BackendBolt, BackendLevel:
		if s.Path == "" {
			return fmt.Errorf("colview/config: %s backend requires a Path", s.Backend)
		}
	default:
		return fmt.Errorf("colview/config: invalid Backend: %q", s.Backend)
	}
	if s.Cache && s.CacheSize < 0 {
		return fmt.Errorf("colview/config: negative CacheSize")
	}
	return nil
}

// Open builds the store.Store this config describes, applying the
// Cache/Compressed decorators in cache-outside-compression order so that
// decompressed values are what gets cached.
func (s StoreConfig) Open() (store.Store, error) {
	var base store.Store
	switch s.Backend {
	case BackendMemory:
		base = store.NewMemoryStore()
	case BackendBolt:
		bolt, err := store.OpenBoltStore(s.Path)
		if err != nil {
			return nil, fmt.Errorf("colview/config: open bolt store: %w", err)
		}
		base = bolt
	case BackendLevel:
		level, err := store.OpenLevelStore(s.Path)
		if err != nil {
			return nil, fmt.Errorf("colview/config: open level store: %w", err)
		}
		base = level
	default:
		return nil, fmt.Errorf("colview/config: invalid Backend: %q", s.Backend)
	}

	if s.Compressed {
		base = store.NewCompressedStore(base)
	}
	if s.Cache {
		size := s.CacheSize
		if size <= 0 {
			size = 4096
		}
		cached, err := store.NewCachedStore(base, size)
		if err != nil {
			return nil, fmt.Errorf("colview/config: wrap cached store: %w", err)
		}
		base = cached
	}
	return base, nil
}

// Logger is the YAML-level logger configuration, adapted to this module's
// logging.Config.
type Logger struct {
	LogEncoding string `yaml:"LogEncoding"`
	LogLevel    string `yaml:"LogLevel"`
	LogPath     string `yaml:"LogPath,omitempty"`
}

// Validate returns an error if Logger configuration is not valid.
func (l Logger) Validate() error {
	if l.LogEncoding != "" && l.LogEncoding != "console" && l.LogEncoding != "json" {
		return fmt.Errorf("colview/config: invalid LogEncoding: %s", l.LogEncoding)
	}
	return nil
}

// ToLoggingConfig adapts Logger to logging.Config.
func (l Logger) ToLoggingConfig() logging.Config {
	return logging.Config{Encoding: l.LogEncoding, Level: l.LogLevel, Path: l.LogPath}
}

// Config is the top-level configuration for a colview-backed service.
type Config struct {
	Store  StoreConfig `yaml:"Store"`
	Logger Logger      `yaml:"Logger"`
}

// Validate returns an error if any sub-configuration is not valid.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	return c.Logger.Validate()
}

// Load reads and parses a YAML config file at path.
func Load(path string) (Config, error) {
	var c Config
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("colview/config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("colview/config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}
