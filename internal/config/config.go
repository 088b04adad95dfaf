// Package config provides configuration management for Echomap.
// It loads settings from environment variables with the ECHOMAP_ prefix
// and provides sensible defaults for all configuration options.
//
// Named analysis profiles and stopword lists are loaded from YAML files;
// see profile.go.
package config

import (
	"os"
	"strconv"

	"github.com/lexfield/echomap/pkg/types"
)

// Config holds all configuration settings for the Echomap application.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Analysis types.AnalysisConfig
	Security SecurityConfig
	Features FeaturesConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    // Server port (default: 6480)
	Host string // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory for sqlite (default: ./data)
	PostgresDSN   string // Postgres connection string when engine is postgres
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string // Security mode: development, production (default: development)
	APIToken     string // API authentication token
}

// FeaturesConfig contains feature flags.
type FeaturesConfig struct {
	EnableWebUI       bool // Enable web UI (default: true)
	DefaultStopwords  bool // Seed new analyses with the built-in stopword list (default: false)
	ProgressBroadcast bool // Broadcast analysis progress over websocket (default: true)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the ECHOMAP_ prefix.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()
	if err := cfg.Analysis.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildBaseConfig constructs a Config with values from environment
// variables and defaults.
func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("ECHOMAP_PORT", 6480),
			Host: getEnv("ECHOMAP_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			StorageEngine: getEnv("ECHOMAP_STORAGE_ENGINE", "sqlite"),
			DataPath:      getEnv("ECHOMAP_DATA_PATH", "./data"),
			PostgresDSN:   getEnv("ECHOMAP_POSTGRES_DSN", ""),
		},
		Analysis: types.AnalysisConfig{
			KeyTerms:       getEnvInt("ECHOMAP_KEY_TERMS", types.DefaultKeyTerms),
			SentenceWindow: getEnvInt("ECHOMAP_SENTENCE_WINDOW", types.DefaultSentenceWindow),
			ShortWindow:    getEnvInt("ECHOMAP_SHORT_WINDOW", types.DefaultShortWindow),
			MediumWindow:   getEnvInt("ECHOMAP_MEDIUM_WINDOW", types.DefaultMediumWindow),
			LongWindow:     getEnvInt("ECHOMAP_LONG_WINDOW", types.DefaultLongWindow),
			NumWorkers:     getEnvInt("ECHOMAP_NUM_WORKERS", 4),
		},
		Security: SecurityConfig{
			SecurityMode: getEnv("ECHOMAP_SECURITY_MODE", "development"),
			APIToken:     getEnv("ECHOMAP_API_TOKEN", ""),
		},
		Features: FeaturesConfig{
			EnableWebUI:       getEnvBool("ECHOMAP_ENABLE_WEB_UI", true),
			DefaultStopwords:  getEnvBool("ECHOMAP_DEFAULT_STOPWORDS", false),
			ProgressBroadcast: getEnvBool("ECHOMAP_PROGRESS_BROADCAST", true),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the environment variable exists but cannot be parsed as an
// integer, it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a
// default value. Accepts the forms strconv.ParseBool accepts.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
