// Package config loads and hot-reloads the deskmuxd configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree, split across config_*.go files by
// concern the way the rest of this codebase splits per-concern state.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Limits      LimitsConfig      `yaml:"limits"`
	ReloadCache ReloadCacheConfig `yaml:"reload_cache"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Provider    ProviderConfig    `yaml:"provider"`
}

// Default returns a Config populated with every documented default.
func Default() Config {
	return Config{
		Server:      defaultServerConfig(),
		Limits:      defaultLimitsConfig(),
		ReloadCache: defaultReloadCacheConfig(),
		Gateway:     defaultGatewayConfig(),
		Auth:        defaultAuthConfig(),
		Logging:     defaultLoggingConfig(),
		Provider:    defaultProviderConfig(),
	}
}

// Load reads and parses a YAML config file, starting from Default() so any
// field the file omits keeps its documented default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyHotReloadable copies the subset of fields safe to apply without a
// process restart: every Limits field (queue caps, budget values, ...), the
// ReloadCache fuzzy threshold and top-K, and the log level. Structural fields
// (bind address, auth secret) require a restart.
func (c Config) applyHotReloadable(next Config) Config {
	c.Limits = next.Limits
	c.ReloadCache.FuzzyThreshold = next.ReloadCache.FuzzyThreshold
	c.ReloadCache.TopK = next.ReloadCache.TopK
	c.Logging.Level = next.Logging.Level
	return c
}
