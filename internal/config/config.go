// Package config provides small env-var loading helpers used to size the
// HTTP server and the per-tenant engine, adapted from the teacher's
// infrastructure/config env-loading helpers (stripped of its Marble/TEE
// secret-store indirection, which has no analogue here).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the named environment variable, or fallback if unset or
// empty.
func GetEnv(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt parses the named environment variable as an int, or returns
// fallback if unset, empty, or unparsable.
func GetEnvInt(name string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// GetEnvBool parses the named environment variable as a bool, or returns
// fallback if unset, empty, or unparsable.
func GetEnvBool(name string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// GetEnvDuration parses the named environment variable via
// time.ParseDuration (e.g. "60s", "2m"), or returns fallback if unset,
// empty, or unparsable.
func GetEnvDuration(name string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Config holds the process-wide settings read once at startup.
type Config struct {
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	RateLimitWindow    time.Duration
	RulesCacheTTL      time.Duration
	InternalAuthSecret string
	StoreDialect       string
	StoreDSN           string
	LogLevel           string
	LogFormat          string
}

// FromEnv loads Config from the process environment, applying the same
// defaults the engine and server packages assume when a variable is unset.
func FromEnv() Config {
	return Config{
		Port:               GetEnv("PORT", "8080"),
		ReadTimeout:        GetEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       GetEnvDuration("WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout:    GetEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RateLimitWindow:    GetEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		RulesCacheTTL:      GetEnvDuration("RULES_CACHE_TTL", 60*time.Second),
		InternalAuthSecret: GetEnv("INTERNAL_AUTH_SECRET", ""),
		StoreDialect:       GetEnv("STORE_DIALECT", "sqlite"),
		StoreDSN:           GetEnv("STORE_DSN", "mockserver_%s.db"),
		LogLevel:           GetEnv("LOG_LEVEL", "info"),
		LogFormat:          GetEnv("LOG_FORMAT", "json"),
	}
}
