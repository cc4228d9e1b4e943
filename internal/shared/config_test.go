package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Backend.BaseURL != "http://127.0.0.1:8000" {
			t.Errorf("expected backend url http://127.0.0.1:8000, got %s", config.Backend.BaseURL)
		}

		if config.Backend.Timeout != 15*time.Second {
			t.Errorf("expected backend timeout 15s, got %v", config.Backend.Timeout)
		}

		if config.Storage.Driver != "sqlite" {
			t.Errorf("expected sqlite storage driver, got %s", config.Storage.Driver)
		}

		if config.Sync.RefreshDelay != 30*time.Second {
			t.Errorf("expected refresh delay 30s, got %v", config.Sync.RefreshDelay)
		}

		if len(config.Sync.Platforms) != 3 {
			t.Errorf("expected 3 default platforms, got %v", config.Sync.Platforms)
		}

		if config.Server.Addr() != "127.0.0.1:5173" {
			t.Errorf("expected server addr 127.0.0.1:5173, got %s", config.Server.Addr())
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Storage.Path != DefaultConfig().Storage.Path {
			t.Errorf("created config storage path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[backend]
base_url = "http://backend:8000"
timeout = "2s"

[storage]
driver = "redis"
redis_addr = "redis:6379"

[sync]
refresh_delay = "45s"
platforms = ["spotify"]
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Backend.BaseURL != "http://backend:8000" {
			t.Errorf("expected base url http://backend:8000, got %s", config.Backend.BaseURL)
		}
		if config.Backend.Timeout != 2*time.Second {
			t.Errorf("expected timeout 2s, got %v", config.Backend.Timeout)
		}
		if config.Storage.Driver != "redis" || config.Storage.RedisAddr != "redis:6379" {
			t.Errorf("unexpected storage config %+v", config.Storage)
		}
		if config.Sync.RefreshDelay != 45*time.Second {
			t.Errorf("expected refresh delay 45s, got %v", config.Sync.RefreshDelay)
		}
		if len(config.Sync.Platforms) != 1 || config.Sync.Platforms[0] != "spotify" {
			t.Errorf("expected platforms [spotify], got %v", config.Sync.Platforms)
		}
		if config.Sync.PageSize != 50 {
			t.Errorf("expected default page size to survive, got %d", config.Sync.PageSize)
		}
	})

	t.Run("LoadConfig rejects unknown driver", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[storage]\ndriver = \"etcd\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
