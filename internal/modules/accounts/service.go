package accounts

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"vaultgate/internal/domain"
	"vaultgate/internal/pkg/passwd"
)

// Service contains account lifecycle logic: registration, profile, key and
// password management.
type Service struct {
	users    UserRepositoryInterface
	sessions SessionRevokerInterface
	trusted  TrustedDeviceRevokerInterface
	revision RevisionReaderInterface

	totpEnabled          bool
	defaultKdfIterations int
}

func NewService(
	users UserRepositoryInterface,
	sessions SessionRevokerInterface,
	trusted TrustedDeviceRevokerInterface,
	revision RevisionReaderInterface,
	totpEnabled bool,
	defaultKdfIterations int,
) *Service {
	return &Service{
		users:                users,
		sessions:             sessions,
		trusted:              trusted,
		revision:             revision,
		totpEnabled:          totpEnabled,
		defaultKdfIterations: defaultKdfIterations,
	}
}

// Register creates the server's one and only account. Later attempts fail
// with ErrRegistrationClosed regardless of email, keeping the server
// single-tenant.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if !validEncString(req.Key) {
		return nil, ErrInvalidKey
	}
	if req.Keys != nil && req.Keys.EncryptedPrivateKey != "" && !validEncString(req.Keys.EncryptedPrivateKey) {
		return nil, ErrInvalidKey
	}

	iterations := req.KdfIterations
	if iterations <= 0 {
		iterations = s.defaultKdfIterations
	}

	user := &domain.User{
		ID:                 uuid.NewString(),
		Email:              strings.ToLower(strings.TrimSpace(req.Email)),
		Name:               req.Name,
		MasterPasswordHash: req.MasterPasswordHash,
		Key:                req.Key,
		KdfType:            req.KdfType,
		KdfIterations:      iterations,
		KdfMemory:          req.KdfMemory,
		KdfParallelism:     req.KdfParallelism,
		SecurityStamp:      uuid.NewString(),
	}
	if req.Keys != nil {
		user.PublicKey = req.Keys.PublicKey
		user.PrivateKey = req.Keys.EncryptedPrivateKey
	}

	if err := s.users.CreateFirst(ctx, user); err != nil {
		return nil, ErrRegistrationClosed
	}
	return user, nil
}

// Registered reports whether the server's single account exists yet.
func (s *Service) Registered(ctx context.Context) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) Profile(user *domain.User) *ProfileResponse {
	return &ProfileResponse{
		ID:               user.ID,
		Name:             user.Name,
		Email:            user.Email,
		EmailVerified:    true,
		Premium:          true,
		Culture:          "en-US",
		TwoFactorEnabled: s.totpEnabled,
		Key:              user.Key,
		PrivateKey:       user.PrivateKey,
		SecurityStamp:    user.SecurityStamp,
		Organizations:    []any{},
		Object:           "profile",
	}
}

func (s *Service) UpdateProfile(ctx context.Context, user *domain.User, req UpdateProfileRequest) (*ProfileResponse, error) {
	user.Name = req.Name
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.Profile(user), nil
}

// SetKeys stores the asymmetric keypair. Allowed once: existing keys are
// never silently replaced, a password change is the only rotation path.
func (s *Service) SetKeys(ctx context.Context, user *domain.User, req SetKeysRequest) (*ProfileResponse, error) {
	if !validEncString(req.EncryptedPrivateKey) {
		return nil, ErrInvalidKey
	}
	if user.PrivateKey != "" {
		return s.Profile(user), nil
	}
	user.PublicKey = req.PublicKey
	user.PrivateKey = req.EncryptedPrivateKey
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.Profile(user), nil
}

// ChangePassword swaps the master password hash and the re-encrypted user
// key, then rotates the security stamp and revokes every refresh token and
// trusted device. All sessions everywhere die with the old password.
func (s *Service) ChangePassword(ctx context.Context, user *domain.User, req ChangePasswordRequest) error {
	if !passwd.Verify(req.MasterPasswordHash, user.MasterPasswordHash) {
		return ErrInvalidPassword
	}
	if !validEncString(req.Key) {
		return ErrInvalidKey
	}

	user.MasterPasswordHash = req.NewMasterPasswordHash
	user.Key = req.Key
	user.SecurityStamp = uuid.NewString()
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}
	if err := s.sessions.RevokeByUser(ctx, user.ID); err != nil {
		return err
	}
	return s.trusted.DeleteByUser(ctx, user.ID)
}

func (s *Service) VerifyPassword(user *domain.User, submittedHash string) bool {
	return passwd.Verify(submittedHash, user.MasterPasswordHash)
}

// RevisionDate returns the last vault mutation in unix milliseconds, the
// unit sync clients compare against.
func (s *Service) RevisionDate(ctx context.Context, userID string) (int64, error) {
	rev, err := s.revision.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	if rev.IsZero() {
		return 0, nil
	}
	return rev.UnixMilli(), nil
}

// validEncString accepts the Bitwarden cipher-string shape
// "<type>.<part>|<part>[|<part>]" without interpreting the parts.
func validEncString(s string) bool {
	head, rest, ok := strings.Cut(s, ".")
	if !ok || rest == "" {
		return false
	}
	if _, err := strconv.Atoi(head); err != nil {
		return false
	}
	return strings.Count(rest, "|") >= 1
}
