package crypto

import "errors"

// ErrDecryptFailed covers both a wrong password and tampered ciphertext.
// The two are deliberately indistinguishable to the caller.
var ErrDecryptFailed = errors.New("crypto: decryption failed")

var (
	ErrUnknownKDF     = errors.New("crypto: unknown kdf kind")
	ErrKDFUnavailable = errors.New("crypto: kdf not implemented")
	ErrUnknownCipher  = errors.New("crypto: unknown cipher kind")
)
