package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	xchacha "golang.org/x/crypto/chacha20poly1305"
)

// Cipher kind ids as stored in the vault header.
const (
	CipherXChaCha20Poly1305 uint8 = 1
	CipherAESGCM            uint8 = 2
)

const TagSize = 16

type cipherSpec struct {
	nonceSize int
	new       func(key []byte) (cipher.AEAD, error)
}

var cipherTable = map[uint8]cipherSpec{
	CipherXChaCha20Poly1305: {
		nonceSize: xchacha.NonceSizeX,
		new:       xchacha.NewX,
	},
	CipherAESGCM: {
		nonceSize: 12,
		new: func(key []byte) (cipher.AEAD, error) {
			block, err := aes.NewCipher(key)
			if err != nil {
				return nil, err
			}
			return cipher.NewGCM(block)
		},
	},
}

// NonceSize reports the nonce length the given cipher kind requires.
func NonceSize(kind uint8) (int, error) {
	spec, ok := cipherTable[kind]
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownCipher, kind)
	}
	return spec.nonceSize, nil
}

// NewNonce returns a fresh random nonce of the right length for the kind.
func NewNonce(kind uint8) ([]byte, error) {
	n, err := NonceSize(kind)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, n)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return nonce, nil
}

// Seal encrypts plaintext under the selected cipher. The returned slice is
// ciphertext with the authentication tag appended.
func Seal(kind uint8, key, nonce, plaintext, aad []byte) ([]byte, error) {
	spec, ok := cipherTable[kind]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCipher, kind)
	}
	if len(nonce) != spec.nonceSize {
		return nil, fmt.Errorf("crypto: nonce must be %d bytes, got %d", spec.nonceSize, len(nonce))
	}
	aead, err := spec.new(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Open decrypts and authenticates ciphertext||tag. Any authentication
// failure comes back as ErrDecryptFailed.
func Open(kind uint8, key, nonce, ciphertext, aad []byte) ([]byte, error) {
	spec, ok := cipherTable[kind]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCipher, kind)
	}
	if len(nonce) != spec.nonceSize {
		return nil, ErrDecryptFailed
	}
	aead, err := spec.new(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return pt, nil
}
