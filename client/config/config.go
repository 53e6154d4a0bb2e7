package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultServerURL = "http://localhost:8080"
	DefaultTheme     = "system"
)

type Config struct {
	Username  string `json:"username"`
	ServerURL string `json:"server_url"`
	Theme     string `json:"theme"`
}

// LoadConfig reads a JSON config file
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as indented JSON, creating the parent directory
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// WithDefaults fills unset fields
func (c Config) WithDefaults() Config {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.Theme == "" {
		c.Theme = DefaultTheme
	}
	return c
}

// GetConfigDir returns the per-user client directory, creating it if
// needed. CHATROOMS_CLIENT_CONFIG_DIR overrides the platform default.
func GetConfigDir() (string, error) {
	dir := os.Getenv("CHATROOMS_CLIENT_CONFIG_DIR")
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(base, "chatrooms")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigPath returns the default config.json location
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}
