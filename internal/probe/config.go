package probe

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	TokenURL     string // Required: OAuth2 token endpoint
	RevokeURL    string // Optional: RFC 7009 revocation endpoint
	ClientID     string // Required: OAuth2 client identifier
	RefreshToken string // Required: initial refresh token

	TargetURL string // Required: URL probed with the authenticated client

	Interval        time.Duration // Optional: delay between probes (default: 30s)
	Count           int           // Optional: number of probes, 0 means run until interrupted
	TokenTTL        time.Duration // Optional: token cache TTL (default: 5m)
	IdempotencyKeys bool          // Optional: attach Idempotency-Key headers to mutating probes

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	return Config{
		TokenURL:        os.Getenv("PROBE_TOKEN_URL"),
		RevokeURL:       os.Getenv("PROBE_REVOKE_URL"),
		ClientID:        os.Getenv("PROBE_CLIENT_ID"),
		RefreshToken:    os.Getenv("PROBE_REFRESH_TOKEN"),
		TargetURL:       os.Getenv("PROBE_TARGET_URL"),
		Interval:        getEnvDurationOrDefault("PROBE_INTERVAL", 30*time.Second),
		Count:           getEnvIntOrDefault("PROBE_COUNT", 0),
		TokenTTL:        getEnvDurationOrDefault("PROBE_TOKEN_TTL", 5*time.Minute),
		IdempotencyKeys: getEnvBoolOrDefault("PROBE_IDEMPOTENCY_KEYS", false),
		Env:             getEnvOrDefault("ENV", "dev"),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are treated as seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
