package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACSHA256(t *testing.T) {
	h := NewHMACSHA256([]byte("secret"))

	sum, err := h.Hash("code-1")
	require.NoError(t, err)
	assert.Len(t, sum, 64)

	again, err := h.Hash("code-1")
	require.NoError(t, err)
	assert.Equal(t, sum, again)

	assert.True(t, h.Verify(string(sum), "code-1"))
	assert.False(t, h.Verify(string(sum), "code-2"))
	assert.False(t, h.Verify("", "code-1"))

	other, err := NewHMACSHA256([]byte("other")).Hash("code-1")
	require.NoError(t, err)
	assert.NotEqual(t, sum, other, "digest depends on the key")
}
