package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig_Success(t *testing.T) {
	// XDG_CONFIG_HOME works on every platform; HOME is ignored on Windows.
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if configPath != filepath.Join(tmpDir, "objectloader", "config.yaml") {
		t.Errorf("Unexpected config path %q", configPath)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	for _, section := range []string{
		"# objectloader configuration file",
		"logging:",
		"telemetry:",
		"metrics:",
		"server:",
		"loader:",
		"cache:",
		"shutdown_timeout:",
	} {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_Force(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("garbage"), 0600); err != nil {
		t.Fatalf("Failed to overwrite config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if strings.Contains(string(content), "garbage") {
		t.Error("Expected forced init to replace the file")
	}
}

func TestInitConfigToPath_Loadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom", "objectloader.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config failed to load: %v", err)
	}

	defaults := GetDefaultConfig()
	if cfg.Loader.ReadBatchSize != defaults.Loader.ReadBatchSize {
		t.Errorf("read_batch_size = %d, want %d", cfg.Loader.ReadBatchSize, defaults.Loader.ReadBatchSize)
	}
	if cfg.Loader.Deferment.MemoryCacheSize != defaults.Loader.Deferment.MemoryCacheSize {
		t.Errorf("memory_cache_size = %v, want %v", cfg.Loader.Deferment.MemoryCacheSize, defaults.Loader.Deferment.MemoryCacheSize)
	}
	if cfg.Server.MaxLineSize != defaults.Server.MaxLineSize {
		t.Errorf("max_line_size = %v, want %v", cfg.Server.MaxLineSize, defaults.Server.MaxLineSize)
	}
	if cfg.Cache.Type != defaults.Cache.Type {
		t.Errorf("cache.type = %q, want %q", cfg.Cache.Type, defaults.Cache.Type)
	}
}
