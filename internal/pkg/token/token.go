// Package token issues and verifies the two signed token kinds the server
// uses: bearer access tokens and short-lived single-use file-download
// tokens. Both are HS256 JWTs; opaque (unsigned, random) tokens for refresh
// and device trust are minted here too.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Service struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	fileTTL   time.Duration
}

// AccessClaims is the payload of a bearer access token. The compatibility
// fields (email_verified, amr, premium) are always injected because official
// clients refuse tokens without them.
type AccessClaims struct {
	Email         string   `json:"email"`
	Name          string   `json:"name"`
	SecurityStamp string   `json:"sstamp"`
	EmailVerified bool     `json:"email_verified"`
	Premium       bool     `json:"premium"`
	AMR           []string `json:"amr"`
	jwtlib.RegisteredClaims
}

// FileClaims is the payload of a single-use attachment download token. The
// embedded resource ids bind the token to one exact attachment; ID (jti)
// feeds the used-token dedupe table.
type FileClaims struct {
	CipherID     string `json:"cipherId"`
	AttachmentID string `json:"attachmentId"`
	jwtlib.RegisteredClaims
}

func New(secret, issuer string, accessTTL, fileTTL time.Duration) *Service {
	return &Service{
		secret:    []byte(secret),
		issuer:    issuer,
		accessTTL: accessTTL,
		fileTTL:   fileTTL,
	}
}

func (s *Service) AccessTokenTTL() time.Duration { return s.accessTTL }

func (s *Service) GenerateAccessToken(userID, email, name, securityStamp string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Email:         email,
		Name:          name,
		SecurityStamp: securityStamp,
		EmailVerified: true,
		Premium:       true,
		AMR:           []string{"Application"},
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.accessTTL)),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateFileToken mints a download token for one attachment and returns
// the token plus its jti.
func (s *Service) GenerateFileToken(cipherID, attachmentID string) (string, string, error) {
	jti, err := NewOpaqueToken()
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	claims := FileClaims{
		CipherID:     cipherID,
		AttachmentID: attachmentID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.fileTTL)),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

func (s *Service) ValidateFileToken(tokenStr string) (*FileClaims, error) {
	claims := &FileClaims{}
	if err := s.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.CipherID == "" || claims.AttachmentID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// parse collapses every failure mode (wrong segment count, bad base64, bad
// JSON, wrong algorithm, bad signature, expired) into ErrInvalidToken so
// callers never branch on parser internals.
func (s *Service) parse(tokenStr string, claims jwtlib.Claims) error {
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// NewOpaqueToken returns 32 bytes of randomness, base64url without padding.
// Used for refresh tokens, trusted-device tokens and file-token jtis; the
// stored form is always a digest, never this raw value.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
