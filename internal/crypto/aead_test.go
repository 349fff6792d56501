package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func randBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return b
}

func TestSealOpenRoundTrip(t *testing.T) {
	for _, kind := range []uint8{CipherXChaCha20Poly1305, CipherAESGCM} {
		key := randBytes(t, KeySize)
		nonce, err := NewNonce(kind)
		if err != nil {
			t.Fatalf("nonce: %v", err)
		}
		pt := randBytes(t, 4096)
		aad := []byte("header-bytes")

		ct, err := Seal(kind, key, nonce, pt, aad)
		if err != nil {
			t.Fatalf("seal kind %d: %v", kind, err)
		}
		if len(ct) != len(pt)+TagSize {
			t.Fatalf("kind %d: ciphertext length %d, want %d", kind, len(ct), len(pt)+TagSize)
		}
		out, err := Open(kind, key, nonce, ct, aad)
		if err != nil {
			t.Fatalf("open kind %d: %v", kind, err)
		}
		if !bytes.Equal(pt, out) {
			t.Fatalf("kind %d: plaintext mismatch", kind)
		}
	}
}

func TestOpenRejectsTamper(t *testing.T) {
	key := randBytes(t, KeySize)
	nonce, _ := NewNonce(CipherXChaCha20Poly1305)
	ct, err := Seal(CipherXChaCha20Poly1305, key, nonce, []byte("payload"), []byte("aad"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	for i := range ct {
		mangled := append([]byte(nil), ct...)
		mangled[i] ^= 0x01
		if _, err := Open(CipherXChaCha20Poly1305, key, nonce, mangled, []byte("aad")); err != ErrDecryptFailed {
			t.Fatalf("byte %d: got %v, want ErrDecryptFailed", i, err)
		}
	}
}

func TestOpenRejectsAADMismatch(t *testing.T) {
	key := randBytes(t, KeySize)
	nonce, _ := NewNonce(CipherAESGCM)
	ct, err := Seal(CipherAESGCM, key, nonce, []byte("payload"), []byte("aad-1"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(CipherAESGCM, key, nonce, ct, []byte("aad-2")); err != ErrDecryptFailed {
		t.Fatalf("got %v, want ErrDecryptFailed", err)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	key := randBytes(t, KeySize)
	nonce, _ := NewNonce(CipherXChaCha20Poly1305)
	ct, err := Seal(CipherXChaCha20Poly1305, key, nonce, []byte("payload"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	other := randBytes(t, KeySize)
	if _, err := Open(CipherXChaCha20Poly1305, other, nonce, ct, nil); err != ErrDecryptFailed {
		t.Fatalf("got %v, want ErrDecryptFailed", err)
	}
}

func TestUnknownCipherKind(t *testing.T) {
	if _, err := NonceSize(99); err == nil {
		t.Fatal("expected error for unknown cipher kind")
	}
	key := randBytes(t, KeySize)
	if _, err := Seal(99, key, make([]byte, 24), []byte("x"), nil); err == nil {
		t.Fatal("expected error for unknown cipher kind")
	}
}
