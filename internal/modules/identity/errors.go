package identity

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrTwoFactorRequired    = errors.New("two-factor authentication required")
	ErrInvalidTwoFactor     = errors.New("invalid two-factor code")
	ErrUnsupportedTwoFactor = errors.New("unsupported two-factor provider")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
)

// LockoutError reports an active login lockout and how long it has left.
type LockoutError struct {
	RetryAfter time.Duration
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("too many failed login attempts, retry in %s", e.RetryAfter.Round(time.Second))
}
