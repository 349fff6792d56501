package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// KDF kind ids as stored in the vault header.
const (
	KDFArgon2id uint8 = 1
	KDFScrypt   uint8 = 2
)

const (
	SaltSize = 16
	KeySize  = 32
)

type KDFParams struct {
	Kind        uint8
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint32
	Salt        []byte
}

// DefaultKDF returns argon2id parameters with a fresh random salt.
func DefaultKDF() KDFParams {
	salt := make([]byte, SaltSize)
	_, _ = rand.Read(salt)
	return KDFParams{
		Kind:        KDFArgon2id,
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		Salt:        salt,
	}
}

type kdfFunc func(password []byte, p KDFParams) ([]byte, error)

// Adding a KDF is one table entry; call sites go through DeriveKey.
var kdfTable = map[uint8]kdfFunc{
	KDFArgon2id: deriveArgon2id,
	KDFScrypt:   deriveScrypt,
}

// DeriveKey turns a password plus header parameters into a 32-byte key.
// Identical inputs always yield the identical key.
func DeriveKey(password []byte, p KDFParams) ([KeySize]byte, error) {
	var key [KeySize]byte
	fn, ok := kdfTable[p.Kind]
	if !ok {
		return key, fmt.Errorf("%w: id %d", ErrUnknownKDF, p.Kind)
	}
	raw, err := fn(password, p)
	if err != nil {
		return key, err
	}
	copy(key[:], raw)
	Zero(raw)
	return key, nil
}

func deriveArgon2id(password []byte, p KDFParams) ([]byte, error) {
	threads := uint8(p.Parallelism)
	if threads == 0 {
		threads = 1
	}
	return argon2.IDKey(password, p.Salt, p.Iterations, p.MemoryKiB, threads, KeySize), nil
}

// deriveScrypt is the format's fallback kind. The format can name it, but
// this build carries no implementation; callers get an explicit error
// rather than a silently different key.
func deriveScrypt(_ []byte, _ KDFParams) ([]byte, error) {
	return nil, fmt.Errorf("%w: scrypt", ErrKDFUnavailable)
}
