package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func FuzzSealOpen(f *testing.F) {
	f.Add([]byte("hello"), []byte("aad"), uint8(CipherXChaCha20Poly1305))
	f.Add([]byte(""), []byte(""), uint8(CipherAESGCM))
	f.Fuzz(func(t *testing.T, pt, aad []byte, kind uint8) {
		if kind != CipherXChaCha20Poly1305 && kind != CipherAESGCM {
			t.Skip()
		}
		var key [KeySize]byte
		rand.Read(key[:])
		nonce, err := NewNonce(kind)
		if err != nil {
			t.Fatalf("nonce: %v", err)
		}
		ct, err := Seal(kind, key[:], nonce, pt, aad)
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		got, err := Open(kind, key[:], nonce, ct, aad)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if !bytes.Equal(pt, got) {
			t.Fatalf("roundtrip mismatch")
		}
		if len(ct) > 0 {
			ct[0] ^= 0xff
			if _, err := Open(kind, key[:], nonce, ct, aad); err == nil {
				t.Fatalf("tampered ciphertext opened")
			}
		}
	})
}
