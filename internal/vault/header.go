package vault

import (
	"encoding/binary"
	"fmt"

	"github.com/sprobst76/vibedterm-sub001/internal/crypto"
)

// Binary header layout, all integers little-endian:
//
//	offset  size  field
//	0       4     magic "VTRM"
//	4       1     format version
//	5       1     kdf kind id
//	6       4     kdf memory cost (KiB)
//	10      4     kdf iterations
//	14      4     kdf parallelism
//	18      16    kdf salt
//	34      1     cipher kind id
//	35      1     nonce length N
//	36      N     nonce
//	36+N    4     payload length (plaintext bytes)
//	40+N    -     ciphertext, then AEAD tag
var magic = [4]byte{'V', 'T', 'R', 'M'}

const (
	FormatVersion  = 1
	fixedHeaderLen = 36 // up to and including the nonce-length byte
)

// Header is authenticated as associated data but never encrypted. Nonce
// and PayloadLen are regenerated on every save; everything else is fixed
// at creation time.
type Header struct {
	Version    uint8
	KDF        crypto.KDFParams
	CipherKind uint8
	Nonce      []byte
	PayloadLen uint32
}

// Encode serializes the header. A salt of the wrong length is an invariant
// violation and is rejected outright.
func (h *Header) Encode() ([]byte, error) {
	if len(h.KDF.Salt) != crypto.SaltSize {
		return nil, fmt.Errorf("vault: salt must be %d bytes, got %d", crypto.SaltSize, len(h.KDF.Salt))
	}
	wantNonce, err := crypto.NonceSize(h.CipherKind)
	if err != nil {
		return nil, err
	}
	if len(h.Nonce) != wantNonce {
		return nil, fmt.Errorf("vault: nonce must be %d bytes for cipher %d, got %d", wantNonce, h.CipherKind, len(h.Nonce))
	}

	buf := make([]byte, 0, fixedHeaderLen+len(h.Nonce)+4)
	buf = append(buf, magic[:]...)
	buf = append(buf, h.Version, h.KDF.Kind)
	buf = binary.LittleEndian.AppendUint32(buf, h.KDF.MemoryKiB)
	buf = binary.LittleEndian.AppendUint32(buf, h.KDF.Iterations)
	buf = binary.LittleEndian.AppendUint32(buf, h.KDF.Parallelism)
	buf = append(buf, h.KDF.Salt...)
	buf = append(buf, h.CipherKind, uint8(len(h.Nonce)))
	buf = append(buf, h.Nonce...)
	buf = binary.LittleEndian.AppendUint32(buf, h.PayloadLen)
	return buf, nil
}

// ParseHeader decodes a header from the front of b and returns it together
// with the number of header bytes consumed. Magic is checked before
// anything else; truncation is checked before each variable-length read.
func ParseHeader(b []byte) (Header, int, error) {
	var h Header
	if len(b) < len(magic) {
		return h, 0, ErrTruncated
	}
	if [4]byte(b[:4]) != magic {
		return h, 0, ErrBadMagic
	}
	if len(b) < fixedHeaderLen {
		return h, 0, ErrTruncated
	}

	h.Version = b[4]
	h.KDF.Kind = b[5]
	h.KDF.MemoryKiB = binary.LittleEndian.Uint32(b[6:10])
	h.KDF.Iterations = binary.LittleEndian.Uint32(b[10:14])
	h.KDF.Parallelism = binary.LittleEndian.Uint32(b[14:18])
	h.KDF.Salt = append([]byte(nil), b[18:34]...)
	h.CipherKind = b[34]

	nonceLen := int(b[35])
	wantNonce, err := crypto.NonceSize(h.CipherKind)
	if err != nil {
		return h, 0, err
	}
	if nonceLen != wantNonce {
		return h, 0, fmt.Errorf("vault: nonce length %d does not match cipher %d (want %d)", nonceLen, h.CipherKind, wantNonce)
	}
	end := fixedHeaderLen + nonceLen + 4
	if len(b) < end {
		return h, 0, ErrTruncated
	}
	h.Nonce = append([]byte(nil), b[fixedHeaderLen:fixedHeaderLen+nonceLen]...)
	h.PayloadLen = binary.LittleEndian.Uint32(b[fixedHeaderLen+nonceLen : end])
	return h, end, nil
}
