package config

import (
	"os"
	"strconv"
	"time"
)

// GetEnv retrieves an environment variable value
// Returns empty string if not set
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
// This is a common pattern used across all configuration loading
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvUint16 retrieves an environment variable as a uint16 (useful for ports)
// Returns the default value if not set or invalid
func GetEnvUint16(key string, defaultValue uint16) uint16 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseUint(value, 10, 16); err == nil {
			return uint16(intVal)
		}
	}
	return defaultValue
}

// GetEnvDuration retrieves an environment variable as a time.Duration
// Returns the default value if not set or invalid
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvBool retrieves an environment variable as a boolean
// Returns the default value if not set or invalid
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
