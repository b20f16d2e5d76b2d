package passwd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	assert.True(t, Verify("abc123", "abc123"))
	assert.False(t, Verify("abc123", "abc124"))
	assert.False(t, Verify("abc123", "abc1234"))
	assert.False(t, Verify("", "abc123"))
	assert.True(t, Verify("", ""))
}
