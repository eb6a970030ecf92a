// Package cryptox implements the two-tier key hierarchy: the server master key
// wraps per-account keys, and per-account keys encrypt vault secrets with
// AES-256-GCM. It also provides token fingerprints for credentials that must
// never be persisted raw.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/lockboxhq/lockbox/internal/common"
)

const (
	// KeySize is the AES-256 key length used for both master and user keys.
	KeySize = 32

	nonceSize = 12
	tagSize   = 16

	// wrappedKeySize is the fixed layout of a wrapped user key:
	// nonce(12) || tag(16) || ciphertext(32).
	wrappedKeySize = nonceSize + tagSize + KeySize
)

// GenerateUserKey returns a fresh 32-byte per-account key from a
// cryptographically strong source.
func GenerateUserKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: generating user key: %v", common.ErrCrypto, err)
	}
	return key, nil
}

// Wrap encrypts userKey under masterKey with a fresh nonce. The output layout
// is exactly nonce(12) || tag(16) || ciphertext(32), 60 bytes, stored as one
// opaque blob. Key rotation is unwrap with the old master followed by wrap
// with the new one; no schema change is required.
func Wrap(userKey, masterKey []byte) ([]byte, error) {
	if len(userKey) != KeySize || len(masterKey) != KeySize {
		return nil, fmt.Errorf("%w: wrap requires %d-byte keys", common.ErrCrypto, KeySize)
	}

	aead, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: generating nonce: %v", common.ErrCrypto, err)
	}

	// Seal appends tag after ciphertext; reorder into the fixed layout.
	sealed := aead.Seal(nil, nonce, userKey, nil)
	ciphertext, tag := sealed[:KeySize], sealed[KeySize:]

	blob := make([]byte, 0, wrappedKeySize)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)
	return blob, nil
}

// Unwrap recovers a user key from a blob produced by Wrap. Tampered blobs and
// wrong master keys fail authentication.
func Unwrap(blob, masterKey []byte) ([]byte, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("%w: unwrap requires a %d-byte master key", common.ErrCrypto, KeySize)
	}
	if len(blob) != wrappedKeySize {
		return nil, fmt.Errorf("%w: wrapped key must be %d bytes, got %d", common.ErrCrypto, wrappedKeySize, len(blob))
	}

	aead, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	nonce := blob[:nonceSize]
	tag := blob[nonceSize : nonceSize+tagSize]
	ciphertext := blob[nonceSize+tagSize:]

	sealed := make([]byte, 0, KeySize+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	key, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap failed: %v", common.ErrCrypto, err)
	}
	return key, nil
}

// EncryptField encrypts plaintext under userKey with a fresh nonce and returns
// the three components stored together on a vault entry.
func EncryptField(plaintext, userKey []byte) (ciphertext, nonce, tag []byte, err error) {
	aead, err := newGCM(userKey)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: generating nonce: %v", common.ErrCrypto, err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	n := len(sealed) - tagSize
	return sealed[:n], nonce, sealed[n:], nil
}

// DecryptField is the inverse of EncryptField. Flipping a single bit in any of
// the three components causes authentication failure.
func DecryptField(ciphertext, nonce, tag, userKey []byte) ([]byte, error) {
	aead, err := newGCM(userKey)
	if err != nil {
		return nil, err
	}
	if len(nonce) != nonceSize || len(tag) != tagSize {
		return nil, fmt.Errorf("%w: malformed nonce or tag", common.ErrCrypto)
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt failed: %v", common.ErrCrypto, err)
	}
	return plaintext, nil
}

// Fingerprint returns the hex SHA-256 digest of a token. Stored in place of
// raw refresh and share tokens so the database alone cannot replay them.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrCrypto, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCrypto, err)
	}
	return aead, nil
}
