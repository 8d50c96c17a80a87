package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-pathcov/internal/log"
)

// Config holds all configuration for pcov
type Config struct {
	// SnapshotFile is where scan writes and report reads coverage data
	SnapshotFile string `yaml:"snapshot_file" env:"PCOV_SNAPSHOT_FILE"`

	// Workers bounds the number of files parsed concurrently
	Workers int `yaml:"workers" env:"PCOV_WORKERS"`

	// IgnoreFile holds gitignore-style patterns excluded from scans
	IgnoreFile string `yaml:"ignore_file" env:"PCOV_IGNORE_FILE"`

	// IncludeTests also builds graphs for _test.go files
	IncludeTests bool `yaml:"include_tests" env:"PCOV_INCLUDE_TESTS"`

	// Logging
	LogLevel string `yaml:"log_level" env:"PCOV_LOG_LEVEL"`
	JSONLogs bool   `yaml:"json_logs" env:"PCOV_JSON_LOGS"`

	// MinPercentage makes report fail when any file is below it; 0 disables
	MinPercentage int `yaml:"min_percentage" env:"PCOV_MIN_PERCENTAGE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SnapshotFile:  ".pcov/coverage.snapshot",
		Workers:       4,
		IgnoreFile:    ".pcovignore",
		IncludeTests:  false,
		LogLevel:      "info",
		JSONLogs:      false,
		MinPercentage: 0,
	}
}

// globalConfigFilePath returns the global config file path (~/.pcov/config.yaml)
func globalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pcov/config.yaml"
	}
	return filepath.Join(home, ".pcov", "config.yaml")
}

// projectConfigFilePath returns the project-level config file path (./.pcov/config.yaml)
func projectConfigFilePath() string {
	return ".pcov/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.pcov/config.yaml)
// 3. Global config (~/.pcov/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{globalConfigFilePath(), projectConfigFilePath()} {
		if err := mergeFile(cfg, path, true); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := mergeFile(cfg, path, false); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile overlays the YAML file at path onto cfg.
func mergeFile(cfg *Config, path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PCOV_SNAPSHOT_FILE"); v != "" {
		cfg.SnapshotFile = v
	}
	if v := os.Getenv("PCOV_WORKERS"); v != "" {
		cfg.Workers = parseInt(v)
	}
	if v := os.Getenv("PCOV_IGNORE_FILE"); v != "" {
		cfg.IgnoreFile = v
	}
	if v := os.Getenv("PCOV_INCLUDE_TESTS"); v != "" {
		cfg.IncludeTests = parseBool(v)
	}
	if v := os.Getenv("PCOV_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PCOV_JSON_LOGS"); v != "" {
		cfg.JSONLogs = parseBool(v)
	}
	if v := os.Getenv("PCOV_MIN_PERCENTAGE"); v != "" {
		cfg.MinPercentage = parseInt(v)
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.SnapshotFile == "" {
		return fmt.Errorf("snapshot_file must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.MinPercentage < 0 || c.MinPercentage > 100 {
		return fmt.Errorf("min_percentage must be between 0 and 100, got %d", c.MinPercentage)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Level returns the parsed log level. Validate guarantees it parses.
func (c *Config) Level() log.Level {
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// parseInt attempts to parse a string as int
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0
	}
	return i
}

// parseBool accepts the usual spellings of true; anything else is false
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
