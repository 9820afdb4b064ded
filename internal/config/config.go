// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for databases and archives (always absolute)
	ArchiveDir     string // Directory for msgpack run snapshots (defaults to DataDir/archive)
	LogLevel       string
	Port           int
	DevMode        bool
	DefaultBackend string        // Backend used when a run does not name one
	DefaultShots   int           // 0 means exact expectation values
	MaxQubits      int           // Upper bound accepted by the statevector simulator
	Workers        int           // Size of the run execution worker pool
	RunTTL         time.Duration // Terminal runs older than this are cleaned up
	ArchiveTTL     time.Duration // Archived snapshots older than this are rotated out
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check QVAR_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("QVAR_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	archiveDir := getEnv("QVAR_ARCHIVE_DIR", filepath.Join(absDataDir, "archive"))
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		ArchiveDir:     archiveDir,
		Port:           getEnvAsInt("QVAR_PORT", 8040),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DefaultBackend: getEnv("QVAR_BACKEND", "statevector"),
		DefaultShots:   getEnvAsInt("QVAR_SHOTS", 0),
		MaxQubits:      getEnvAsInt("QVAR_MAX_QUBITS", 26),
		Workers:        getEnvAsInt("QVAR_WORKERS", 2),
		RunTTL:         getEnvAsDuration("QVAR_RUN_TTL", 30*24*time.Hour),
		ArchiveTTL:     getEnvAsDuration("QVAR_ARCHIVE_TTL", 90*24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxQubits < 1 {
		return fmt.Errorf("max qubits must be at least 1, got %d", c.MaxQubits)
	}
	if c.DefaultShots < 0 {
		return fmt.Errorf("default shots cannot be negative, got %d", c.DefaultShots)
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
