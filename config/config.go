package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	// Server settings
	Port int `json:"port"`

	// TLS settings
	TLSCertFile string `json:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file"`

	// Database settings. DBPath is a file or directory for sqlite and
	// pebble and a connection string for postgres and mysql.
	DBType string `json:"db_type"`
	DBPath string `json:"db_path"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Config directory
	ConfigDir string `json:"config_dir"`

	// Seed data created on first start
	AdminUsername  string `json:"admin_username"`
	AdminPassword  string `json:"admin_password"`
	DefaultChannel string `json:"default_channel"`

	// Number of messages replayed on join, 0 replays everything
	HistoryLimit int `json:"history_limit"`
}

// LoadConfig loads configuration from environment variables and .env files
func LoadConfig(configDir string) (*Config, error) {
	cfg, err := LoadConfigWithoutValidation(configDir)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithoutValidation loads configuration without validation
func LoadConfigWithoutValidation(configDir string) (*Config, error) {
	cfg := &Config{}

	// Environment variable first, then parameter, then default
	if envConfigDir := os.Getenv("CHATROOMS_CONFIG_DIR"); envConfigDir != "" {
		cfg.ConfigDir = envConfigDir
	} else if configDir != "" {
		cfg.ConfigDir = configDir
	} else {
		cfg.ConfigDir = getDefaultConfigDir()
	}

	if err := ensureConfigDir(cfg.ConfigDir); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	// Values already present in the environment win over the .env file
	envPath := filepath.Join(cfg.ConfigDir, ".env")
	if err := loadEnvFile(envPath); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	if portStr := os.Getenv("CHATROOMS_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid CHATROOMS_PORT: %s", portStr)
		}
		c.Port = port
	} else {
		c.Port = 8080
	}

	c.DBType = strings.ToLower(GetEnvWithDefault("CHATROOMS_DB_TYPE", "sqlite"))

	if dbPath := os.Getenv("CHATROOMS_DB_PATH"); dbPath != "" {
		c.DBPath = dbPath
	} else {
		c.DBPath = DefaultDBPath(c.DBType, c.ConfigDir)
	}

	c.LogLevel = strings.ToLower(GetEnvWithDefault("CHATROOMS_LOG_LEVEL", "info"))
	c.LogFile = os.Getenv("CHATROOMS_LOG_FILE")

	c.TLSCertFile = os.Getenv("CHATROOMS_TLS_CERT_FILE")
	c.TLSKeyFile = os.Getenv("CHATROOMS_TLS_KEY_FILE")

	c.AdminUsername = GetEnvWithDefault("CHATROOMS_ADMIN_USER", "Admin")
	c.AdminPassword = GetEnvWithDefault("CHATROOMS_ADMIN_PASSWORD", "password")
	c.DefaultChannel = GetEnvWithDefault("CHATROOMS_DEFAULT_CHANNEL", "general")

	if limitStr := os.Getenv("CHATROOMS_HISTORY_LIMIT"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return fmt.Errorf("invalid CHATROOMS_HISTORY_LIMIT: %s", limitStr)
		}
		c.HistoryLimit = limit
	}

	return nil
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	switch c.DBType {
	case "sqlite", "pebble":
		if c.DBPath == "" {
			return fmt.Errorf("CHATROOMS_DB_PATH is required")
		}
	case "postgres", "mysql":
		if c.DBPath == "" {
			return fmt.Errorf("CHATROOMS_DB_PATH must hold a %s connection string", c.DBType)
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.DBType)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.LogLevel)
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("both CHATROOMS_TLS_CERT_FILE and CHATROOMS_TLS_KEY_FILE must be set to enable TLS")
	}

	if strings.TrimSpace(c.AdminUsername) == "" || c.AdminPassword == "" {
		return fmt.Errorf("seed admin username and password cannot be empty")
	}

	return nil
}

// DefaultDBPath returns the database location used when CHATROOMS_DB_PATH
// is unset. Server backends have no default.
func DefaultDBPath(dbType, configDir string) string {
	switch dbType {
	case "sqlite":
		return filepath.Join(configDir, "chatrooms.db")
	case "pebble":
		return filepath.Join(configDir, "chatrooms.pebble")
	default:
		return ""
	}
}

// getDefaultConfigDir returns the default configuration directory
func getDefaultConfigDir() string {
	// Development mode when running from the project root
	if _, err := os.Stat("go.mod"); err == nil {
		return "./config"
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "chatrooms")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config"
	}

	return filepath.Join(homeDir, ".config", "chatrooms")
}

func ensureConfigDir(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// loadEnvFile loads a .env file if one exists
func loadEnvFile(envPath string) error {
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	}

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("failed to load .env file %s: %w", envPath, err)
	}

	return nil
}

// GetEnvWithDefault returns an environment variable value or a default
func GetEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTLSEnabled returns true if both TLS certificate and key files are configured
func (c *Config) IsTLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// GetWebSocketScheme returns the websocket scheme matching the TLS setting
func (c *Config) GetWebSocketScheme() string {
	if c.IsTLSEnabled() {
		return "wss"
	}
	return "ws"
}
