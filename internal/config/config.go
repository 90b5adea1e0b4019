// Package config holds the process-wide stig configuration.
//
// Configuration is loaded once at startup from ~/.stigmergy/config.yaml
// (when present) on top of built-in defaults. The Status Board path is
// per-project and is never stored here; callers supply it explicitly.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the stig configuration
type Config struct {
	// DataDir is the per-user stig directory (default: ~/.stigmergy)
	DataDir string `yaml:"data_dir"`

	// InvokeTimeoutSecs is the default CLI invocation timeout.
	// 0 means unbounded: only cancellation stops the child.
	InvokeTimeoutSecs int `yaml:"invoke_timeout_secs"`

	// MaxRetries is the resume-and-retry budget per CLI before fallback
	MaxRetries int `yaml:"max_retries"`

	// Parallelism caps concurrent CLI invocations in parallel mode
	Parallelism int `yaml:"parallelism"`

	// PatternTTLHours controls how long cached CLI patterns stay fresh
	PatternTTLHours int `yaml:"pattern_ttl_hours"`

	// Recovery toggles
	EnableResume   bool `yaml:"enable_resume"`
	EnableFallback bool `yaml:"enable_fallback"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir:           DefaultDataDir(),
		InvokeTimeoutSecs: 120,
		MaxRetries:        2,
		Parallelism:       3,
		PatternTTLHours:   24,
		EnableResume:      true,
		EnableFallback:    true,
	}
}

// DefaultDataDir returns the per-user stig directory.
// Falls back to a relative .stigmergy when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stigmergy"
	}
	return filepath.Join(home, ".stigmergy")
}

// Load loads config from the stig data directory's config.yaml
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := filepath.Join(cfg.DataDir, "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Config doesn't exist, use defaults
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.expand()
	return cfg, nil
}

// LoadFrom loads config from a specific path
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.expand()
	return cfg, nil
}

// Save saves the config to the stig data directory's config.yaml
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configPath := filepath.Join(c.DataDir, "config.yaml")
	return os.WriteFile(configPath, data, 0600)
}

// expand resolves ~ and environment references in path fields
func (c *Config) expand() {
	if strings.HasPrefix(c.DataDir, "~/") {
		home, _ := os.UserHomeDir()
		c.DataDir = filepath.Join(home, c.DataDir[2:])
	}
	c.DataDir = os.ExpandEnv(c.DataDir)
}

// PatternCachePath returns the JSON pattern cache location
func (c *Config) PatternCachePath() string {
	return filepath.Join(c.DataDir, "cli-patterns", "cli-patterns.json")
}

// RegistryOverridePath returns the optional per-user registry override file
func (c *Config) RegistryOverridePath() string {
	return filepath.Join(c.DataDir, "registry.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0700)
}
