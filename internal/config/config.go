// Package config loads and persists Aether configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Aether configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Workspace mirror configuration
	Mirror MirrorConfig `yaml:"mirror"`

	// Preview server
	Preview PreviewConfig `yaml:"preview"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the Gemini gateway.
type LLMConfig struct {
	APIKey             string `yaml:"api_key"`
	Model              string `yaml:"model"`
	BaseURL            string `yaml:"base_url"`
	Timeout            string `yaml:"timeout"`
	MaxOutputTokens    int    `yaml:"max_output_tokens"`
	EnableGoogleSearch bool   `yaml:"enable_google_search"`
	HistoryWindow      int    `yaml:"history_window"` // prior turns sent as context
}

// StorageConfig configures the File Store.
type StorageConfig struct {
	DatabasePath  string `yaml:"database_path"`
	SnapshotLimit int    `yaml:"snapshot_limit"`
}

// MirrorConfig configures the on-disk workspace mirror.
type MirrorConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
}

// PreviewConfig configures the preview server.
type PreviewConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures logging. Read independently by the logging
// package to avoid a circular import.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "Aether",
		Version: "1.0.0",

		LLM: LLMConfig{
			Model:              "gemini-3-flash-preview",
			BaseURL:            "https://generativelanguage.googleapis.com/v1beta",
			Timeout:            "120s",
			MaxOutputTokens:    65536,
			EnableGoogleSearch: true,
			HistoryWindow:      10,
		},

		Storage: StorageConfig{
			DatabasePath:  "data/aether.db",
			SnapshotLimit: 10,
		},

		Mirror: MirrorConfig{
			Enabled:   false,
			Directory: "workspace",
		},

		Preview: PreviewConfig{
			Addr: "localhost:8099",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("AETHER_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("AETHER_DB"); path != "" {
		c.Storage.DatabasePath = path
	}
	if addr := os.Getenv("AETHER_PREVIEW_ADDR"); addr != "" {
		c.Preview.Addr = addr
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}
