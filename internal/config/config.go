package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAccessTokenTTL   = "2h"
	defaultRefreshTTL       = "720h"
	defaultFileTokenTTL     = "5m"
	defaultTrustedDeviceTTL = "720h"

	// DefaultDevSecret is the sample value shipped in .env.example. The
	// server treats it as unconfigured and refuses protected traffic.
	DefaultDevSecret = "change-me-jwt-secret"

	minJWTSecretLength = 32

	defaultTokenIssuer = "vaultgate"
)

// RateLimits carries the lockout and fixed-window budget thresholds.
type RateLimits struct {
	LoginMaxAttempts int
	LoginLockout     time.Duration

	WriteRequestsPerWindow int
	SyncRequestsPerWindow  int
	WindowSeconds          int64

	CleanupProbability   float64
	LoginCleanupInterval time.Duration
	LoginRetention       time.Duration
	WindowCleanupInterval time.Duration
	WindowRetentionCount  int64
}

type Config struct {
	DatabaseURL string
	ListenAddr  string

	JWTSecret   string
	TokenIssuer string
	// TOTPSecret enables the second factor when non-empty.
	TOTPSecret string

	AccessTokenTTL   time.Duration
	RefreshTTL       time.Duration
	FileTokenTTL     time.Duration
	TrustedDeviceTTL time.Duration

	KdfDefaultIterations int

	RateLimits RateLimits

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
		TokenIssuer: getEnv("TOKEN_ISSUER", defaultTokenIssuer),
		TOTPSecret:  strings.TrimSpace(os.Getenv("TOTP_SECRET")),

		KdfDefaultIterations: 600000,

		RateLimits: RateLimits{
			LoginMaxAttempts:       10,
			LoginLockout:           2 * time.Minute,
			WriteRequestsPerWindow: 120,
			SyncRequestsPerWindow:  1000,
			WindowSeconds:          60,
			CleanupProbability:     0.05,
			LoginCleanupInterval:   10 * time.Minute,
			LoginRetention:         30 * 24 * time.Hour,
			WindowCleanupInterval:  5 * time.Minute,
			WindowRetentionCount:   120,
		},

		S3Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		S3Region:    getEnv("S3_REGION", "auto"),
		S3Bucket:    getEnv("S3_BUCKET", "vaultgate-attachments"),
		S3AccessKey: strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
		S3SecretKey: strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var err error
	if cfg.AccessTokenTTL, err = parseDurationEnv("ACCESS_TOKEN_TTL", defaultAccessTokenTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = parseDurationEnv("REFRESH_TTL", defaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.FileTokenTTL, err = parseDurationEnv("FILE_TOKEN_TTL", defaultFileTokenTTL); err != nil {
		return nil, err
	}
	if cfg.TrustedDeviceTTL, err = parseDurationEnv("TRUSTED_DEVICE_TTL", defaultTrustedDeviceTTL); err != nil {
		return nil, err
	}

	if cfg.AccessTokenTTL <= 0 {
		return nil, fmt.Errorf("ACCESS_TOKEN_TTL must be > 0")
	}
	if cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("REFRESH_TTL must be > 0")
	}
	if cfg.FileTokenTTL <= 0 {
		return nil, fmt.Errorf("FILE_TOKEN_TTL must be > 0")
	}

	if v := strings.TrimSpace(os.Getenv("KDF_DEFAULT_ITERATIONS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid KDF_DEFAULT_ITERATIONS value %q", v)
		}
		cfg.KdfDefaultIterations = n
	}

	return cfg, nil
}

// SigningSecretIssue reports why the signing secret is unsafe, or "" when it
// is usable. A non-empty result makes every protected endpoint (and
// registration) fail closed with a configuration error instead of running
// with a guessable secret.
func (c *Config) SigningSecretIssue() string {
	switch {
	case c.JWTSecret == "":
		return "JWT_SECRET is not set"
	case c.JWTSecret == DefaultDevSecret:
		return "JWT_SECRET is using the default/sample value"
	case len(c.JWTSecret) < minJWTSecretLength:
		return fmt.Sprintf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	return ""
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
