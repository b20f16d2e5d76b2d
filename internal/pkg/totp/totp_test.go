package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// RFC 6238 appendix B secret ("12345678901234567890" in base32), with the
// published 8-digit values truncated to the 6 digits this package produces.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestVerify_RFCEpochs(t *testing.T) {
	cases := []struct {
		unix int64
		code string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
	}
	for _, tc := range cases {
		assert.True(t, Verify(rfcSecret, tc.code, time.Unix(tc.unix, 0)), "unix=%d", tc.unix)
	}
}

func TestVerify_DriftWindow(t *testing.T) {
	// Code valid at t=59 (counter 1) must verify one step earlier and later,
	// and fail two steps away.
	code := "287082"
	assert.True(t, Verify(rfcSecret, code, time.Unix(59, 0)))
	assert.True(t, Verify(rfcSecret, code, time.Unix(59-30, 0)))
	assert.True(t, Verify(rfcSecret, code, time.Unix(59+30, 0)))
	assert.False(t, Verify(rfcSecret, code, time.Unix(59+90, 0)))
	assert.False(t, Verify(rfcSecret, code, time.Unix(59-60, 0)))
}

func TestVerify_RejectsMalformedCodes(t *testing.T) {
	now := time.Unix(59, 0)
	assert.False(t, Verify(rfcSecret, "28708", now))
	assert.False(t, Verify(rfcSecret, "2870822", now))
	assert.False(t, Verify(rfcSecret, "28x082", now))
	assert.False(t, Verify(rfcSecret, "", now))
	// whitespace inside an otherwise valid code is tolerated
	assert.True(t, Verify(rfcSecret, "287 082", now))
}

func TestVerify_RejectsBadSecret(t *testing.T) {
	assert.False(t, Verify("not!base32", "287082", time.Unix(59, 0)))
	assert.False(t, Verify("", "287082", time.Unix(59, 0)))
}

func TestEnabled(t *testing.T) {
	assert.True(t, Enabled(rfcSecret))
	assert.True(t, Enabled("gezd gnbv-gy3t"))
	assert.False(t, Enabled(""))
	assert.False(t, Enabled("   "))
	assert.False(t, Enabled("==="))
}
