package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all configuration for the application.
type Config struct {
	Env       string
	AdminPort string

	// ConfigDir holds agent documents (config/agents/<id>.json).
	ConfigDir string
	// DataDir holds MCP server records and layout preferences.
	DataDir string

	LogLevel zerolog.Level

	MCPServerName    string
	MCPServerVersion string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Env:              getEnv("VIBE_ENV", "development"),
		AdminPort:        getEnv("VIBE_PORT", "9090"),
		ConfigDir:        getEnv("VIBE_CONFIG_DIR", "./config"),
		DataDir:          getEnv("VIBE_DATA_DIR", "./data"),
		LogLevel:         parseLogLevel(getEnv("VIBE_LOG_LEVEL", "info")),
		MCPServerName:    getEnv("VIBE_MCP_SERVER_NAME", "vibecoder"),
		MCPServerVersion: getEnv("VIBE_MCP_SERVER_VERSION", "0.1.0"),
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// AgentsDir returns the directory holding per-agent JSON documents.
func (c *Config) AgentsDir() string {
	return filepath.Join(c.ConfigDir, "agents")
}

// ServersDir returns the directory holding per-server JSON documents.
func (c *Config) ServersDir() string {
	return filepath.Join(c.DataDir, "mcp_servers")
}

// PreferencesPath returns the layout preferences file path.
func (c *Config) PreferencesPath() string {
	return filepath.Join(c.DataDir, "layout_preferences.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseLogLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
