package accounts

import (
	"context"
	"time"

	"vaultgate/internal/domain"
)

// UserRepositoryInterface — only the methods the accounts service uses.
type UserRepositoryInterface interface {
	CreateFirst(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	Count(ctx context.Context) (int64, error)
}

// SessionRevokerInterface invalidates every outstanding session credential
// of a user after a credential change.
type SessionRevokerInterface interface {
	RevokeByUser(ctx context.Context, userID string) error
}

// TrustedDeviceRevokerInterface drops remembered 2FA devices.
type TrustedDeviceRevokerInterface interface {
	DeleteByUser(ctx context.Context, userID string) error
}

// RevisionReaderInterface reads the last vault mutation timestamp.
type RevisionReaderInterface interface {
	Get(ctx context.Context, userID string) (time.Time, error)
}
