package identity

import (
	"context"
	"time"

	"vaultgate/internal/domain"
)

// UserRepositoryInterface — only the methods the identity service uses.
type UserRepositoryInterface interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// RefreshTokenRepositoryInterface — storage for single-use refresh tokens.
type RefreshTokenRepositoryInterface interface {
	Create(ctx context.Context, raw, userID string, expiresAt time.Time) error
	Consume(ctx context.Context, raw string, now time.Time) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, raw string) error
}

// TrustedDeviceRepositoryInterface — storage for TOTP remember tokens.
type TrustedDeviceRepositoryInterface interface {
	Create(ctx context.Context, raw, userID, deviceID string, expiresAt time.Time) error
	Valid(ctx context.Context, raw, userID, deviceID string, now time.Time) (bool, error)
}

// DeviceRepositoryInterface — device bookkeeping on login.
type DeviceRepositoryInterface interface {
	Upsert(ctx context.Context, d *domain.Device) error
	Exists(ctx context.Context, deviceID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
}

// LoginLimiterInterface — the lockout half of the rate-limit engine.
type LoginLimiterInterface interface {
	CheckLoginAttempt(ctx context.Context, ip string) (bool, time.Duration, error)
	RecordFailedLogin(ctx context.Context, ip string) (bool, time.Duration, error)
	ClearLoginAttempts(ctx context.Context, ip string) error
}

type tokenService interface {
	GenerateAccessToken(userID, email, name, securityStamp string) (string, error)
	AccessTokenTTL() time.Duration
}
