// Package passwd compares client-submitted password verification hashes.
//
// The server never sees a raw master password: clients run the KDF locally
// and submit the resulting hash. Both sides of the comparison are therefore
// plain strings, and the only job here is to compare them without leaking
// the position of the first differing byte.
package passwd

import "crypto/subtle"

// Verify reports whether the submitted hash equals the stored hash.
// Length is checked first; equal-length inputs are compared in constant time.
func Verify(submitted, stored string) bool {
	a := []byte(submitted)
	b := []byte(stored)
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
