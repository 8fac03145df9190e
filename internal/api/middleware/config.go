// Package middleware provides HTTP middleware components for the linelot API.
package middleware

import (
	"time"

	"github.com/linelot/linelot/internal/config"
)

// Config holds rate limiter configuration (spec §6).
//
// Burst, if zero, is computed automatically from RequestsPerMinute.
type Config struct {
	RequestsPerMinute int // spec §6 RATE_LIMIT_PER_MINUTE, default 30
	Burst             int // 0 = auto-compute

	CleanupInterval time.Duration // Default: 5 minutes
	IdleTimeout     time.Duration // Default: 1 hour
	MaxKeys         int           // Default: 10,000
}

// LoadConfig loads middleware config from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		RequestsPerMinute: config.GetEnvInt("RATE_LIMIT_PER_MINUTE", defaultPerMinute),
		Burst:             config.GetEnvInt("RATE_LIMIT_BURST", 0),
		CleanupInterval:   config.GetEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval),
		IdleTimeout:       config.GetEnvDuration("RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxKeys:           config.GetEnvInt("RATE_LIMIT_MAX_KEYS", defaultMaxKeys),
	}
}
