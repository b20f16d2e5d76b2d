// Package totp implements RFC 6238 time-based one-time password
// verification against a base32 shared secret.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	stepSeconds = 30
	digits      = 6
	// driftSteps widens acceptance to the previous/current/next time step so
	// small client clock drift does not reject valid codes.
	driftSteps = 1
)

// Enabled reports whether a usable secret is configured.
func Enabled(secret string) bool {
	return normalizeSecret(secret) != ""
}

// Verify checks a submitted code against the secret at the given time.
// Codes must be exactly six ASCII digits; anything else is rejected before
// any cryptographic work. Invalid base32 secrets verify nothing.
func Verify(secret, code string, now time.Time) bool {
	code = strings.Join(strings.Fields(code), "")
	if !isSixDigits(code) {
		return false
	}

	key, err := decodeSecret(secret)
	if err != nil || len(key) == 0 {
		return false
	}

	counter := now.Unix() / stepSeconds
	for delta := int64(-driftSteps); delta <= driftSteps; delta++ {
		if hotp(key, uint64(counter+delta)) == code {
			return true
		}
	}
	return false
}

// hotp derives an RFC 4226 HOTP value: HMAC-SHA1 over the big-endian
// counter, dynamic truncation by the low nibble of the last byte, top bit
// masked, reduced mod 10^6.
func hotp(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (uint32(sum[offset]&0x7f) << 24) |
		(uint32(sum[offset+1]) << 16) |
		(uint32(sum[offset+2]) << 8) |
		uint32(sum[offset+3])

	return fmt.Sprintf("%06d", bin%1000000)
}

func decodeSecret(secret string) ([]byte, error) {
	normalized := normalizeSecret(secret)
	if normalized == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
}

func normalizeSecret(secret string) string {
	s := strings.ToUpper(secret)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	return strings.TrimRight(s, "=")
}

func isSixDigits(code string) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
