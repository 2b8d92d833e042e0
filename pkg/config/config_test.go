package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/objectloader/internal/bytesize"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, `
logging:
  level: "info"

cache:
  type: badger
  badger:
    path: "`+yamlSafePath(tmpDir)+`/cache"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default output 'stderr', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if got := cfg.Cache.Badger["path"]; got != yamlSafePath(tmpDir)+"/cache" {
		t.Errorf("Expected badger path to be preserved, got %v", got)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config so that
	// one-off fetches work without running `config init` first.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.Cache.Type != "badger" {
		t.Errorf("Expected default cache type 'badger', got %q", cfg.Cache.Type)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: debug
  format: json
  output: stdout

server:
  url: https://app.speckle.systems/
  requests_per_second: 4
  max_batch_wait: 500ms
  max_line_size: 64Mi
  headers:
    X-Client: cli

loader:
  read_batch_size: 500
  read_max_wait: 10ms
  write_batch_size: 2000
  write_max_wait: 2s
  deferment:
    ttl: 2m
    max_entries: 100
    memory_cache_size: 1Gi
  use_worker: true
  worker:
    capacity: 4Mi
    timeout: 5s

cache:
  type: memory

shutdown_timeout: 10s
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stdout" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Server.URL != "https://app.speckle.systems" {
		t.Errorf("Expected trailing slash to be trimmed, got %q", cfg.Server.URL)
	}
	if cfg.Server.RequestsPerSecond != 4 {
		t.Errorf("Expected 4 requests per second, got %v", cfg.Server.RequestsPerSecond)
	}
	if cfg.Server.MaxBatchWait != 500*time.Millisecond {
		t.Errorf("Expected max_batch_wait 500ms, got %v", cfg.Server.MaxBatchWait)
	}
	if cfg.Server.MaxLineSize != 64*bytesize.MiB {
		t.Errorf("Expected max_line_size 64Mi, got %v", cfg.Server.MaxLineSize)
	}
	if cfg.Server.Headers["x-client"] != "cli" && cfg.Server.Headers["X-Client"] != "cli" {
		t.Errorf("Expected custom header, got %v", cfg.Server.Headers)
	}
	if cfg.Loader.ReadBatchSize != 500 || cfg.Loader.ReadMaxWait != 10*time.Millisecond {
		t.Errorf("Unexpected read settings: %d %v", cfg.Loader.ReadBatchSize, cfg.Loader.ReadMaxWait)
	}
	if cfg.Loader.WriteBatchSize != 2000 || cfg.Loader.WriteMaxWait != 2*time.Second {
		t.Errorf("Unexpected write settings: %d %v", cfg.Loader.WriteBatchSize, cfg.Loader.WriteMaxWait)
	}
	if cfg.Loader.Deferment.TTL != 2*time.Minute || cfg.Loader.Deferment.MaxEntries != 100 {
		t.Errorf("Unexpected deferment settings: %+v", cfg.Loader.Deferment)
	}
	if cfg.Loader.Deferment.MemoryCacheSize != bytesize.GiB {
		t.Errorf("Expected memory_cache_size 1Gi, got %v", cfg.Loader.Deferment.MemoryCacheSize)
	}
	if !cfg.Loader.UseWorker || cfg.Loader.Worker.Capacity != 4*bytesize.MiB || cfg.Loader.Worker.Timeout != 5*time.Second {
		t.Errorf("Unexpected worker settings: %+v", cfg.Loader.Worker)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Expected cache type 'memory', got %q", cfg.Cache.Type)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown_timeout 10s, got %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, `
cache:
  type: postgres
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for unknown cache type")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "logging: [unterminated")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: INFO
cache:
  type: memory
`)

	t.Setenv("OBJECTLOADER_LOGGING_LEVEL", "ERROR")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected env override 'ERROR', got %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvWithoutFile(t *testing.T) {
	t.Setenv("OBJECTLOADER_SERVER_TOKEN", "secret")
	t.Setenv("OBJECTLOADER_CACHE_TYPE", "memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Token != "secret" {
		t.Errorf("Expected token from environment, got %q", cfg.Server.Token)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Expected cache type from environment, got %q", cfg.Cache.Type)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Cache.Type = "memory"
	cfg.Cache.Badger = nil
	cfg.Loader.Worker.Capacity = 2 * bytesize.MiB
	cfg.Server.MaxBatchWait = 750 * time.Millisecond

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to reload saved config: %v", err)
	}
	if loaded.Loader.Worker.Capacity != 2*bytesize.MiB {
		t.Errorf("Expected worker capacity 2Mi, got %v", loaded.Loader.Worker.Capacity)
	}
	if loaded.Server.MaxBatchWait != 750*time.Millisecond {
		t.Errorf("Expected max_batch_wait 750ms, got %v", loaded.Server.MaxBatchWait)
	}
	if loaded.Cache.Type != "memory" {
		t.Errorf("Expected cache type 'memory', got %q", loaded.Cache.Type)
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if got := GetConfigDir(); got != filepath.Join(tmpDir, "objectloader") {
		t.Errorf("Unexpected config dir %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(tmpDir, "objectloader", "config.yaml") {
		t.Errorf("Unexpected config path %q", got)
	}
	if DefaultConfigExists() {
		t.Error("Expected no default config in a fresh directory")
	}
}
