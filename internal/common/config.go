package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Store     StoreConfig
	Runlog    RunlogConfig
	Reconcile ReconcileConfig
}

// StoreConfig holds document-store connection configuration
type StoreConfig struct {
	Driver           string `validate:"required,oneof=memory sqlite postgres mongo"`
	DSN              string `validate:"required_unless=Driver memory"`
	Database         string `validate:"required_if=Driver mongo"`
	MaxConns         int32  `validate:"gte=0"`
	MinConns         int32  `validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration `validate:"gt=0"`
	StatementTimeout time.Duration
}

// RunlogConfig holds audit-log configuration
type RunlogConfig struct {
	Dir string `validate:"required"`
}

// ReconcileConfig holds run-level settings
type ReconcileConfig struct {
	// LockTTL is the age after which a run lock is stale; 0 never expires
	LockTTL time.Duration `validate:"gte=0"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:           getEnv("STORE_DRIVER", "sqlite"),
			DSN:              getEnv("STORE_DSN", "file:housing.db?_pragma=busy_timeout(5000)"),
			Database:         getEnv("MONGO_DATABASE", "housing"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 5*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Runlog: RunlogConfig{
			Dir: getEnv("RUNLOG_DIR", "./runlogs"),
		},
		Reconcile: ReconcileConfig{
			LockTTL: getEnvAsDuration("RECONCILE_LOCK_TTL", 2*time.Hour),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return NewAppError(CodeConfig, "invalid configuration", err)
	}
	return nil
}
