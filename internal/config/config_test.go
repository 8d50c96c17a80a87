package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l3aro/go-pathcov/internal/log"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"SnapshotFile", cfg.SnapshotFile, ".pcov/coverage.snapshot"},
		{"Workers", cfg.Workers, 4},
		{"IgnoreFile", cfg.IgnoreFile, ".pcovignore"},
		{"IncludeTests", cfg.IncludeTests, false},
		{"LogLevel", cfg.LogLevel, "info"},
		{"JSONLogs", cfg.JSONLogs, false},
		{"MinPercentage", cfg.MinPercentage, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		errContains string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty snapshot file", func(c *Config) { c.SnapshotFile = "" }, "snapshot_file"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"negative min", func(c *Config) { c.MinPercentage = -1 }, "min_percentage"},
		{"min above 100", func(c *Config) { c.MinPercentage = 101 }, "min_percentage"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `snapshot_file: out/cov.snapshot
workers: 8
include_tests: true
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.SnapshotFile != "out/cov.snapshot" {
		t.Errorf("SnapshotFile = %q", cfg.SnapshotFile)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if !cfg.IncludeTests {
		t.Error("IncludeTests = false, want true")
	}
	if cfg.Level() != log.DebugLevel {
		t.Errorf("Level() = %v, want DEBUG", cfg.Level())
	}
	if cfg.IgnoreFile != ".pcovignore" {
		t.Errorf("IgnoreFile = %q, default should survive", cfg.IgnoreFile)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("workers: [oops"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}

	invalid := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalid, []byte("workers: 0\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(invalid); err == nil {
		t.Error("expected validation error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PCOV_SNAPSHOT_FILE", "/tmp/x.snapshot")
	t.Setenv("PCOV_WORKERS", "2")
	t.Setenv("PCOV_IGNORE_FILE", ".ignoreme")
	t.Setenv("PCOV_INCLUDE_TESTS", "yes")
	t.Setenv("PCOV_LOG_LEVEL", "warn")
	t.Setenv("PCOV_JSON_LOGS", "true")
	t.Setenv("PCOV_MIN_PERCENTAGE", "75")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.SnapshotFile != "/tmp/x.snapshot" {
		t.Errorf("SnapshotFile = %q", cfg.SnapshotFile)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d", cfg.Workers)
	}
	if cfg.IgnoreFile != ".ignoreme" {
		t.Errorf("IgnoreFile = %q", cfg.IgnoreFile)
	}
	if !cfg.IncludeTests || !cfg.JSONLogs {
		t.Error("boolean overrides not applied")
	}
	if cfg.Level() != log.WarnLevel {
		t.Errorf("Level() = %v", cfg.Level())
	}
	if cfg.MinPercentage != 75 {
		t.Errorf("MinPercentage = %d", cfg.MinPercentage)
	}
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".pcov"), 0755); err != nil {
		t.Fatal(err)
	}
	global := "workers: 3\nmin_percentage: 40\n"
	if err := os.WriteFile(filepath.Join(home, ".pcov", "config.yaml"), []byte(global), 0644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	t.Chdir(project)
	cfg := DefaultConfig()
	cfg.Workers = 6
	if err := cfg.Save(filepath.Join(project, ".pcov", "config.yaml")); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Workers != 6 {
		t.Errorf("Workers = %d, project config should win", loaded.Workers)
	}
	if loaded.MinPercentage != 0 {
		t.Errorf("MinPercentage = %d, saved project config sets every key", loaded.MinPercentage)
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "YES", " on "} {
		if !parseBool(s) {
			t.Errorf("parseBool(%q) = false", s)
		}
	}
	for _, s := range []string{"0", "false", "nope", ""} {
		if parseBool(s) {
			t.Errorf("parseBool(%q) = true", s)
		}
	}
}
