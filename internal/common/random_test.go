package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandByteArray_Basic(t *testing.T) {
	n := 32
	buf := GenerateRandByteArray(n)
	require.Len(t, buf, n)

	other := GenerateRandByteArray(n)
	assert.NotEqual(t, buf, other)
}

func TestMakeRandURLToken(t *testing.T) {
	tok, err := MakeRandURLToken(32)
	require.NoError(t, err)
	// 32 bytes -> 43 base64url chars, no padding.
	assert.Len(t, tok, 43)
	assert.NotContains(t, tok, "=")
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "/")

	tok2, err := MakeRandURLToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, tok, tok2)
}

func TestWipeByteArray(t *testing.T) {
	b := []byte{1, 2, 3}
	WipeByteArray(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
	WipeByteArray(nil) // must not panic
}
