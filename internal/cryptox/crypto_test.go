package cryptox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockboxhq/lockbox/internal/common"
)

func TestGenerateUserKey(t *testing.T) {
	k1, err := GenerateUserKey()
	require.NoError(t, err)
	require.Len(t, k1, KeySize)

	k2, err := GenerateUserKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	master := common.GenerateRandByteArray(KeySize)
	userKey, err := GenerateUserKey()
	require.NoError(t, err)

	blob, err := Wrap(userKey, master)
	require.NoError(t, err)
	require.Len(t, blob, 60)

	got, err := Unwrap(blob, master)
	require.NoError(t, err)
	assert.Equal(t, userKey, got)
}

func TestWrap_FreshNoncePerCall(t *testing.T) {
	master := common.GenerateRandByteArray(KeySize)
	userKey := common.GenerateRandByteArray(KeySize)

	b1, err := Wrap(userKey, master)
	require.NoError(t, err)
	b2, err := Wrap(userKey, master)
	require.NoError(t, err)
	assert.NotEqual(t, b1, b2)
}

func TestUnwrap_WrongMasterKey(t *testing.T) {
	master := common.GenerateRandByteArray(KeySize)
	other := common.GenerateRandByteArray(KeySize)
	userKey := common.GenerateRandByteArray(KeySize)

	blob, err := Wrap(userKey, master)
	require.NoError(t, err)

	_, err = Unwrap(blob, other)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrCrypto))
}

func TestUnwrap_TamperedBlob(t *testing.T) {
	master := common.GenerateRandByteArray(KeySize)
	userKey := common.GenerateRandByteArray(KeySize)

	blob, err := Wrap(userKey, master)
	require.NoError(t, err)

	// Flip one bit in each region: nonce, tag, ciphertext.
	for _, i := range []int{0, 12, 28} {
		tampered := append([]byte(nil), blob...)
		tampered[i] ^= 0x01
		_, err := Unwrap(tampered, master)
		assert.ErrorIs(t, err, common.ErrCrypto, "offset %d", i)
	}
}

func TestUnwrap_BadLengths(t *testing.T) {
	master := common.GenerateRandByteArray(KeySize)

	_, err := Unwrap(make([]byte, 59), master)
	assert.ErrorIs(t, err, common.ErrCrypto)

	_, err = Wrap(make([]byte, 16), master)
	assert.ErrorIs(t, err, common.ErrCrypto)

	_, err = Wrap(make([]byte, 32), make([]byte, 31))
	assert.ErrorIs(t, err, common.ErrCrypto)
}

func TestEncryptDecryptField_RoundTrip(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	plaintext := []byte("Hunter2A!")

	ciphertext, nonce, tag, err := EncryptField(plaintext, key)
	require.NoError(t, err)
	require.Len(t, nonce, 12)
	require.Len(t, tag, 16)

	got, err := DecryptField(ciphertext, nonce, tag, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptField_EmptyPlaintext(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	ciphertext, nonce, tag, err := EncryptField(nil, key)
	require.NoError(t, err)
	assert.Empty(t, ciphertext)

	got, err := DecryptField(ciphertext, nonce, tag, key)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecryptField_TamperAnyComponent(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	ciphertext, nonce, tag, err := EncryptField([]byte("secret"), key)
	require.NoError(t, err)

	flip := func(b []byte) []byte {
		out := append([]byte(nil), b...)
		out[0] ^= 0x01
		return out
	}

	_, err = DecryptField(flip(ciphertext), nonce, tag, key)
	assert.ErrorIs(t, err, common.ErrCrypto)

	_, err = DecryptField(ciphertext, flip(nonce), tag, key)
	assert.ErrorIs(t, err, common.ErrCrypto)

	_, err = DecryptField(ciphertext, nonce, flip(tag), key)
	assert.ErrorIs(t, err, common.ErrCrypto)
}

func TestDecryptField_WrongKey(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	ciphertext, nonce, tag, err := EncryptField([]byte("secret"), key)
	require.NoError(t, err)

	_, err = DecryptField(ciphertext, nonce, tag, common.GenerateRandByteArray(KeySize))
	assert.ErrorIs(t, err, common.ErrCrypto)
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("token-a")
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint("token-a"))
	assert.NotEqual(t, fp, Fingerprint("token-b"))
}
