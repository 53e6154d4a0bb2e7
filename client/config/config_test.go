package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	configData := `{
		"username": "testuser",
		"server_url": "http://localhost:9090",
		"theme": "slack"
	}`
	if err := os.WriteFile(configPath, []byte(configData), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Username != "testuser" {
		t.Errorf("Expected username 'testuser', got '%s'", cfg.Username)
	}
	if cfg.ServerURL != "http://localhost:9090" {
		t.Errorf("Expected server_url 'http://localhost:9090', got '%s'", cfg.ServerURL)
	}
	if cfg.Theme != "slack" {
		t.Errorf("Expected theme 'slack', got '%s'", cfg.Theme)
	}
}

func TestLoadConfigFileNotExist(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte("invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Error("Expected error when loading invalid JSON")
	}
}

func TestSaveConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := Config{Username: "testuser", ServerURL: "https://chat.example.com", Theme: "aim"}

	if err := SaveConfig(configPath, cfg); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	loaded, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded != cfg {
		t.Errorf("Expected %+v, got %+v", cfg, loaded)
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{Username: "bob"}.WithDefaults()
	if cfg.ServerURL != DefaultServerURL || cfg.Theme != DefaultTheme {
		t.Errorf("unexpected defaults %+v", cfg)
	}

	kept := Config{ServerURL: "http://other:1", Theme: "discord"}.WithDefaults()
	if kept.ServerURL != "http://other:1" || kept.Theme != "discord" {
		t.Errorf("set fields should be kept, got %+v", kept)
	}
}

func TestGetConfigPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "client")
	t.Setenv("CHATROOMS_CLIENT_CONFIG_DIR", dir)

	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("Failed to get config path: %v", err)
	}
	if configPath != filepath.Join(dir, "config.json") {
		t.Errorf("unexpected config path %s", configPath)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected config directory to exist: %v", err)
	}
}
