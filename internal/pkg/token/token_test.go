package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(accessTTL, fileTTL time.Duration) *Service {
	return New("unit-test-secret-with-enough-length", "vaultgate", accessTTL, fileTTL)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := newTestService(2*time.Hour, 5*time.Minute)

	signed, err := svc.GenerateAccessToken("user-1", "a@example.com", "A", "stamp-1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(signed, "."), 3)

	claims, err := svc.ValidateAccessToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "stamp-1", claims.SecurityStamp)
	assert.Equal(t, "vaultgate", claims.Issuer)
	assert.True(t, claims.EmailVerified)
	assert.Equal(t, []string{"Application"}, claims.AMR)
}

func TestAccessToken_Expired(t *testing.T) {
	svc := newTestService(-time.Minute, 5*time.Minute)

	signed, err := svc.GenerateAccessToken("user-1", "a@example.com", "A", "stamp-1")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessToken_WrongSecret(t *testing.T) {
	svc := newTestService(time.Hour, 5*time.Minute)
	other := New("a-completely-different-signing-secret", "vaultgate", time.Hour, 5*time.Minute)

	signed, err := svc.GenerateAccessToken("user-1", "a@example.com", "A", "stamp-1")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessToken_Malformed(t *testing.T) {
	svc := newTestService(time.Hour, 5*time.Minute)

	for _, bad := range []string{"", "x", "a.b", "a.b.c", "!!.??.##", "a.b.c.d"} {
		_, err := svc.ValidateAccessToken(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", bad)
	}
}

func TestFileToken_RoundTrip(t *testing.T) {
	svc := newTestService(time.Hour, 5*time.Minute)

	signed, jti, err := svc.GenerateFileToken("cipher-1", "att-1")
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := svc.ValidateFileToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "cipher-1", claims.CipherID)
	assert.Equal(t, "att-1", claims.AttachmentID)
	assert.Equal(t, jti, claims.ID)
}

func TestFileToken_UniqueJTI(t *testing.T) {
	svc := newTestService(time.Hour, 5*time.Minute)

	_, jti1, err := svc.GenerateFileToken("c", "a")
	require.NoError(t, err)
	_, jti2, err := svc.GenerateFileToken("c", "a")
	require.NoError(t, err)
	assert.NotEqual(t, jti1, jti2)
}

func TestFileToken_RejectsAccessToken(t *testing.T) {
	svc := newTestService(time.Hour, 5*time.Minute)

	signed, err := svc.GenerateAccessToken("user-1", "a@example.com", "A", "stamp-1")
	require.NoError(t, err)

	// An access token parses as JWT but has no resource ids or jti.
	_, err = svc.ValidateFileToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewOpaqueToken(t *testing.T) {
	a, err := NewOpaqueToken()
	require.NoError(t, err)
	b, err := NewOpaqueToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, 43, len(a)) // 32 bytes, base64url, no padding
}
