package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds all configurable timeout values.
// These values can be customized via environment variables.
type Timeouts struct {
	Create            time.Duration // Timeout for resource creation operations
	Delete            time.Duration // Timeout for all delete operations
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - STACKZNER_TIMEOUT_CREATE (default: 10m)
//   - STACKZNER_TIMEOUT_DELETE (default: 5m)
//   - STACKZNER_RETRY_MAX_ATTEMPTS (default: 5)
//   - STACKZNER_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Create:            parseDuration("STACKZNER_TIMEOUT_CREATE", 10*time.Minute),
		Delete:            parseDuration("STACKZNER_TIMEOUT_DELETE", 5*time.Minute),
		RetryMaxAttempts:  parseInt("STACKZNER_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("STACKZNER_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
