// Package config handles application configuration.
package config

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port            int
	BaseURL         string
	ShutdownTimeout time.Duration
	RateLimit       int // Requests per minute per client IP on the admin API

	// Database
	DatabaseURL      string
	TursoURL         string // Remote primary for embedded replica mode
	TursoAuthToken   string
	MigrateOnStartup bool // Apply pending versioned migrations before serving

	// Admin API authentication
	AdminJWTSecret   string
	AdminSigningKey  []byte // 32-byte HS256 key for admin bearer tokens
	AdminTokenExpiry time.Duration

	// CORS
	CORSOrigins []string

	// Schema optimization
	OptimizedSchemaPath string // Empty uses the built-in schema

	// Object Storage (Tigris/S3-compatible) for archiving backup tables
	StorageEnabled      bool
	StorageEndpoint     string // AWS_ENDPOINT_URL_S3
	StorageAccessKey    string // AWS_ACCESS_KEY_ID
	StorageSecretKey    string // AWS_SECRET_ACCESS_KEY
	StorageBucket       string // Bucket name (one per environment)
	StorageRegion       string // Region (auto for Tigris)
	BackupArchivePrefix string // Key prefix for archived backup tables
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		BaseURL:         getEnv("BASE_URL", "http://localhost:8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		RateLimit:       getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DatabaseURL:    getEnv("DATABASE_URL", "file:ledgerbook.db?_journal=WAL&_timeout=5000"),
		TursoURL:       getEnv("TURSO_URL", ""),
		TursoAuthToken: getEnv("TURSO_AUTH_TOKEN", ""),

		MigrateOnStartup: getEnvBool("MIGRATE_ON_STARTUP", true),

		AdminJWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
		AdminTokenExpiry: getEnvDuration("ADMIN_TOKEN_EXPIRY", time.Hour),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		OptimizedSchemaPath: getEnv("OPTIMIZED_SCHEMA_PATH", ""),

		// Object Storage (Tigris/S3-compatible) - uses Fly's standard env vars
		// BUCKET_NAME is set automatically by `fly storage create`
		StorageEndpoint:     getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey:    getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:       getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:       getEnv("AWS_REGION", "auto"),
		BackupArchivePrefix: getEnv("BACKUP_ARCHIVE_PREFIX", "backups"),
	}

	// Enable storage if bucket is configured
	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	if cfg.TursoURL != "" && cfg.TursoAuthToken == "" {
		return nil, fmt.Errorf("TURSO_AUTH_TOKEN is required when TURSO_URL is set")
	}

	// Signing key: explicit base64 key, else derived from the admin secret
	keyStr := getEnv("ADMIN_SIGNING_KEY", "")
	if keyStr != "" {
		decoded, err := base64.StdEncoding.DecodeString(keyStr)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("ADMIN_SIGNING_KEY must be a base64-encoded 32-byte key")
		}
		cfg.AdminSigningKey = decoded
	} else if cfg.AdminJWTSecret != "" {
		cfg.AdminSigningKey = deriveSigningKey(cfg.AdminJWTSecret)
	}

	return cfg, nil
}

// AdminEnabled returns true if admin API authentication is configured.
func (c *Config) AdminEnabled() bool {
	return len(c.AdminSigningKey) > 0
}

// ReplicaEnabled returns true if the database runs as a Turso embedded replica.
func (c *Config) ReplicaEnabled() bool {
	return c.TursoURL != "" && c.TursoAuthToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

// deriveSigningKey creates a 32-byte HS256 key from the admin secret using HKDF-SHA256.
func deriveSigningKey(secret string) []byte {
	salt := []byte("ledgerbook-admin-jwt-v1")
	info := []byte("hs256-admin-token")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// This should never happen with valid inputs
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
