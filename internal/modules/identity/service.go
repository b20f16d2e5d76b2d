package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"vaultgate/internal/domain"
	"vaultgate/internal/pkg/passwd"
	"vaultgate/internal/pkg/token"
	"vaultgate/internal/pkg/totp"
	"vaultgate/internal/repository"
)

const (
	twoFactorProviderAuthenticator = "0"

	tokenScope = "api offline_access"

	defaultDeviceName = "Unknown device"
	defaultDeviceType = 14
)

// Service contains the login, refresh and revocation business logic.
type Service struct {
	users   UserRepositoryInterface
	refresh RefreshTokenRepositoryInterface
	trusted TrustedDeviceRepositoryInterface
	devices DeviceRepositoryInterface
	limiter LoginLimiterInterface
	tokens  tokenService

	totpSecret           string
	refreshTTL           time.Duration
	trustedTTL           time.Duration
	defaultKdfIterations int

	now func() time.Time
}

func NewService(
	users UserRepositoryInterface,
	refresh RefreshTokenRepositoryInterface,
	trusted TrustedDeviceRepositoryInterface,
	devices DeviceRepositoryInterface,
	limiter LoginLimiterInterface,
	tokens tokenService,
	totpSecret string,
	refreshTTL time.Duration,
	trustedTTL time.Duration,
	defaultKdfIterations int,
) *Service {
	return &Service{
		users:                users,
		refresh:              refresh,
		trusted:              trusted,
		devices:              devices,
		limiter:              limiter,
		tokens:               tokens,
		totpSecret:           totpSecret,
		refreshTTL:           refreshTTL,
		trustedTTL:           trustedTTL,
		defaultKdfIterations: defaultKdfIterations,
		now:                  time.Now,
	}
}

// Login runs the password grant: lockout gate, credential check, optional
// TOTP challenge, device bookkeeping, then token minting.
//
// Failed credentials and failed TOTP codes both count toward the lockout;
// a granted login clears the counter. The lockout check happens before the
// user lookup so a locked client learns nothing about account existence.
func (s *Service) Login(ctx context.Context, req PasswordGrantRequest, clientIP string) (*TokenResponse, error) {
	locked, retryAfter, err := s.limiter.CheckLoginAttempt(ctx, clientIP)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, &LockoutError{RetryAfter: retryAfter}
	}

	email := strings.ToLower(strings.TrimSpace(req.Username))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			// The unknown-email error stays indistinguishable from a wrong
			// password, even on the failure that arms the lockout.
			if _, _, rlErr := s.limiter.RecordFailedLogin(ctx, clientIP); rlErr != nil {
				return nil, rlErr
			}
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !passwd.Verify(req.Password, user.MasterPasswordHash) {
		locked, retryAfter, rlErr := s.limiter.RecordFailedLogin(ctx, clientIP)
		if rlErr != nil {
			return nil, rlErr
		}
		if locked {
			return nil, &LockoutError{RetryAfter: retryAfter}
		}
		return nil, ErrInvalidCredentials
	}

	// Device bookkeeping happens before the second-factor step so the
	// knowndevice probe answers true once the password has checked out,
	// even while the client is still stuck at the 2FA challenge.
	if req.DeviceIdentifier != "" {
		name := req.DeviceName
		if name == "" {
			name = defaultDeviceName
		}
		deviceType := req.DeviceType
		if deviceType <= 0 {
			deviceType = defaultDeviceType
		}
		err = s.devices.Upsert(ctx, &domain.Device{
			UserID:           user.ID,
			DeviceIdentifier: req.DeviceIdentifier,
			Name:             name,
			Type:             deviceType,
		})
		if err != nil {
			return nil, err
		}
	}

	rememberToken := ""
	if totp.Enabled(s.totpSecret) {
		rememberToken, err = s.verifyTwoFactor(ctx, user, req, clientIP)
		if err != nil {
			return nil, err
		}
	}

	if err := s.limiter.ClearLoginAttempts(ctx, clientIP); err != nil {
		return nil, err
	}

	resp, err := s.mintTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	resp.TwoFactorToken = rememberToken
	return resp, nil
}

// verifyTwoFactor resolves the second factor. Clients resend a remembered
// device token in twoFactorToken regardless of the provider field they set,
// so the dispatch keys on the token's shape: anything that is not a 6-digit
// code is tried as a trusted-device token first, and only real codes reach
// the TOTP check. Returns a fresh remember token when the client asked to
// skip future prompts on this device.
func (s *Service) verifyTwoFactor(ctx context.Context, user *domain.User, req PasswordGrantRequest, clientIP string) (string, error) {
	provider := strings.TrimSpace(req.TwoFactorProvider)
	if provider != "" && provider != twoFactorProviderAuthenticator {
		return "", ErrUnsupportedTwoFactor
	}

	remembered := false
	if req.TwoFactorToken != "" && !isTotpCode(req.TwoFactorToken) && req.DeviceIdentifier != "" {
		ok, err := s.trusted.Valid(ctx, req.TwoFactorToken, user.ID, req.DeviceIdentifier, s.now())
		if err != nil {
			return "", err
		}
		remembered = ok
	}

	if !remembered {
		if req.TwoFactorToken == "" {
			return "", ErrTwoFactorRequired
		}
		if !totp.Verify(s.totpSecret, req.TwoFactorToken, s.now()) {
			locked, retryAfter, rlErr := s.limiter.RecordFailedLogin(ctx, clientIP)
			if rlErr != nil {
				return "", rlErr
			}
			if locked {
				return "", &LockoutError{RetryAfter: retryAfter}
			}
			return "", ErrInvalidTwoFactor
		}
	}

	if !req.TwoFactorRemember || req.DeviceIdentifier == "" {
		return "", nil
	}
	raw, err := token.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	err = s.trusted.Create(ctx, raw, user.ID, req.DeviceIdentifier, s.now().Add(s.trustedTTL))
	if err != nil {
		return "", err
	}
	return raw, nil
}

// isTotpCode reports whether the token looks like a 6-digit authenticator
// code rather than an opaque remember token.
func isTotpCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Refresh redeems a refresh token for a new token pair. Each token works
// exactly once; replaying one yields ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*TokenResponse, error) {
	if rawToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	row, err := s.refresh.Consume(ctx, rawToken, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	return s.mintTokenPair(ctx, user)
}

// Revoke invalidates a refresh token ahead of its expiry. Best effort:
// unknown tokens succeed silently, per RFC 7009.
func (s *Service) Revoke(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	return s.refresh.Revoke(ctx, rawToken)
}

// Prelogin tells the client which KDF settings to use before it derives the
// login hash. Unknown emails get the server defaults so the answer never
// reveals whether an account exists.
func (s *Service) Prelogin(ctx context.Context, email string) (*PreloginResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if repository.IsNotFound(err) {
			return &PreloginResponse{Kdf: 0, KdfIterations: s.defaultKdfIterations}, nil
		}
		return nil, err
	}
	return &PreloginResponse{
		Kdf:            user.KdfType,
		KdfIterations:  user.KdfIterations,
		KdfMemory:      user.KdfMemory,
		KdfParallelism: user.KdfParallelism,
	}, nil
}

// Devices lists every device that has logged into the account.
func (s *Service) Devices(ctx context.Context, userID string) ([]DeviceResponse, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]DeviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, DeviceResponse{
			ID:           d.DeviceIdentifier,
			Name:         d.Name,
			Type:         d.Type,
			Identifier:   d.DeviceIdentifier,
			CreationDate: d.CreatedAt,
			Object:       "device",
		})
	}
	return out, nil
}

// KnownDevice reports whether the device identifier has logged into the
// account behind the probed email. Missing headers and unknown emails both
// answer false; the endpoint never errors toward the client.
func (s *Service) KnownDevice(ctx context.Context, email, deviceID string) (bool, error) {
	if email == "" || deviceID == "" {
		return false, nil
	}
	if _, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email))); err != nil {
		if repository.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return s.devices.Exists(ctx, deviceID)
}

func (s *Service) mintTokenPair(ctx context.Context, user *domain.User) (*TokenResponse, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Name, user.SecurityStamp)
	if err != nil {
		return nil, err
	}

	rawRefresh, err := token.NewOpaqueToken()
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Create(ctx, rawRefresh, user.ID, s.now().Add(s.refreshTTL)); err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  access,
		ExpiresIn:    int(s.tokens.AccessTokenTTL().Seconds()),
		TokenType:    "Bearer",
		RefreshToken: rawRefresh,
		Scope:        tokenScope,

		Key:        user.Key,
		PrivateKey: user.PrivateKey,
		KdfInfo: KdfInfo{
			KdfType:        user.KdfType,
			KdfIterations:  user.KdfIterations,
			KdfMemory:      user.KdfMemory,
			KdfParallelism: user.KdfParallelism,
		},

		UnofficialServer:     true,
		MasterPasswordPolicy: masterPasswordPolicy{Object: "masterPasswordPolicy"},
		UserDecryptionOptions: UserDecryptionOptions{
			Object:            "userDecryptionOptions",
			HasMasterPassword: true,
			MasterPasswordUnlock: MasterPasswordUnlock{
				Kdf: masterPasswordUnlockKdf{
					KdfType:     user.KdfType,
					Iterations:  user.KdfIterations,
					Memory:      user.KdfMemory,
					Parallelism: user.KdfParallelism,
				},
				MasterKeyEncryptedUserKey: user.Key,
				Salt:                      strings.ToLower(user.Email),
			},
		},
	}, nil
}
