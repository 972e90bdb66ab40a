package app

import (
	"os"
	"strconv"
	"time"

	"github.com/tabsync/oidcd/pkg/jwtx"
)

type Config struct {
	Issuer string // Required: issuer identifier, also the base URL in discovery

	Algorithm    string // Optional: JWT signing algorithm (RS256, ES256, EdDSA) (default: EdDSA)
	RSABits      int    // Optional: RSA key size for RS256 (default: 4096)
	NumKeys      int    // Optional: number of signing keys to generate (default: 3, min: 1, max: 10)
	SealKeyFile  string // Optional: path to the sealing key material file (default: ./seal.key)
	DatabaseFile string // Optional: path to SQLite database file (default: ./oidcd.db)

	DefaultScope string // Optional: scope applied when the request has none (default: openid)
	CookieACR    string // Optional: acr asserted for cookie-authenticated sessions

	CodeTTL         time.Duration // Authorization code lifetime (default: 5m)
	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 7 days)
	IDTokenTTL      time.Duration // ID token lifetime (default: 1h)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:       os.Getenv("OIDC_ISSUER"),
		Algorithm:    getEnvOrDefault("OIDC_ALGORITHM", "EdDSA"),
		DatabaseFile: getEnvOrDefault("OIDC_DATABASE_FILE", "oidcd.db"),
		SealKeyFile:  getEnvOrDefault("OIDC_SEAL_KEY_FILE", "seal.key"),
		DefaultScope: getEnvOrDefault("OIDC_DEFAULT_SCOPE", "openid"),
		CookieACR:    os.Getenv("OIDC_COOKIE_ACR"),

		CodeTTL:         getEnvDurationOrDefault("OIDC_CODE_TTL", 5*time.Minute),
		AccessTokenTTL:  getEnvDurationOrDefault("OIDC_ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("OIDC_REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),
		IDTokenTTL:      getEnvDurationOrDefault("OIDC_ID_TOKEN_TTL", jwtx.DefaultIDTokenTTL),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	// Parse RSA bits (only relevant for RS256)
	if rsaBitsStr := os.Getenv("OIDC_RSA_BITS"); rsaBitsStr != "" {
		if bits, err := strconv.Atoi(rsaBitsStr); err == nil {
			cfg.RSABits = bits
		}
	}

	// Parse number of keys (default: 3)
	if numKeysStr := os.Getenv("OIDC_NUM_KEYS"); numKeysStr != "" {
		if numKeys, err := strconv.Atoi(numKeysStr); err == nil {
			cfg.NumKeys = numKeys
		}
	}

	if cfg.Issuer == "" {
		cfg.Issuer = "http://localhost:8080"
	}

	return cfg
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer values are taken as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
