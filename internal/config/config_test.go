package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://:memory:")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("REFRESH_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 2*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 5*time.Minute, cfg.FileTokenTTL)
	assert.Equal(t, 10, cfg.RateLimits.LoginMaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.RateLimits.LoginLockout)
	assert.Equal(t, 120, cfg.RateLimits.WriteRequestsPerWindow)
	assert.Equal(t, 1000, cfg.RateLimits.SyncRequestsPerWindow)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite://:memory:")
	t.Setenv("ACCESS_TOKEN_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_TTL")
}

func TestSigningSecretIssue(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"missing", "", "JWT_SECRET is not set"},
		{"default sample", DefaultDevSecret, "JWT_SECRET is using the default/sample value"},
		{"too short", "short-secret", "JWT_SECRET must be at least 32 characters"},
		{"ok", "0123456789abcdef0123456789abcdef", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{JWTSecret: tt.secret}
			assert.Equal(t, tt.want, cfg.SigningSecretIssue())
		})
	}
}
