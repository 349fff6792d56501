package vault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sprobst76/vibedterm-sub001/internal/crypto"
)

func fastKDF() crypto.KDFParams {
	p := crypto.DefaultKDF()
	p.MemoryKiB = 8 * 1024
	p.Iterations = 1
	p.Parallelism = 1
	return p
}

func createTestVault(t *testing.T, password string) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vlt")
	f, err := Create(path, []byte(password), nil, fastKDF(), crypto.CipherXChaCha20Poly1305)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return f
}

func TestCreateOpenRoundTrip(t *testing.T) {
	for _, kind := range []uint8{crypto.CipherXChaCha20Poly1305, crypto.CipherAESGCM} {
		path := filepath.Join(t.TempDir(), "rt.vlt")
		f, err := Create(path, []byte("correct horse battery staple"), nil, fastKDF(), kind)
		if err != nil {
			t.Fatalf("cipher %d create: %v", kind, err)
		}
		if err := f.UpsertSnippet(Snippet{ID: "s1", Title: "ls", Content: "ls -la"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := f.Save(); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := Open(path, []byte("correct horse battery staple"))
		if err != nil {
			t.Fatalf("cipher %d open: %v", kind, err)
		}
		d := got.Data()
		if d.Revision != 2 || len(d.Snippets) != 1 || d.Snippets[0].Content != "ls -la" {
			t.Fatalf("cipher %d: payload mismatch: %+v", kind, d)
		}
	}
}

func TestCreateEmptyPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.vlt")
	if _, err := Create(path, nil, nil, fastKDF(), crypto.CipherXChaCha20Poly1305); !errors.Is(err, ErrEmptyPassword) {
		t.Fatalf("got %v, want ErrEmptyPassword", err)
	}
}

func TestOpenWrongPassword(t *testing.T) {
	f := createTestVault(t, "right password")
	if _, err := Open(f.Path(), []byte("wrong password")); !errors.Is(err, crypto.ErrDecryptFailed) {
		t.Fatalf("got %v, want ErrDecryptFailed", err)
	}
}

func TestOpenTamperedCiphertext(t *testing.T) {
	f := createTestVault(t, "pw")
	raw, err := os.ReadFile(f.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	_, headerLen, err := ParseHeader(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// Flip one byte anywhere in the ciphertext+tag region.
	for _, off := range []int{headerLen, headerLen + 7, len(raw) - 1} {
		mangled := append([]byte(nil), raw...)
		mangled[off] ^= 0x01
		if err := os.WriteFile(f.Path(), mangled, 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Open(f.Path(), []byte("pw")); !errors.Is(err, crypto.ErrDecryptFailed) {
			t.Fatalf("offset %d: got %v, want ErrDecryptFailed", off, err)
		}
	}
}

func TestOpenTamperedHeaderFailsAuth(t *testing.T) {
	f := createTestVault(t, "pw")
	raw, _ := os.ReadFile(f.Path())
	// Payload length is part of the AAD; inflating it must not slip past
	// the tag (length check only runs after authentication anyway).
	mangled := append([]byte(nil), raw...)
	mangled[36+24] ^= 0x01 // low byte of payload length
	_ = os.WriteFile(f.Path(), mangled, 0o600)
	if _, err := Open(f.Path(), []byte("pw")); !errors.Is(err, crypto.ErrDecryptFailed) {
		t.Fatalf("got %v, want ErrDecryptFailed", err)
	}
}

func TestOpenUnsupportedVersion(t *testing.T) {
	f := createTestVault(t, "pw")
	raw, _ := os.ReadFile(f.Path())
	raw[4] = 99
	_ = os.WriteFile(f.Path(), raw, 0o600)
	if _, err := Open(f.Path(), []byte("pw")); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("got %v, want ErrUnsupportedVersion", err)
	}
}

func TestSaveRotatesNonce(t *testing.T) {
	f := createTestVault(t, "pw")
	raw1, _ := os.ReadFile(f.Path())
	h1, _, _ := ParseHeader(raw1)
	if err := f.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw2, _ := os.ReadFile(f.Path())
	h2, _, _ := ParseHeader(raw2)
	if bytes.Equal(h1.Nonce, h2.Nonce) {
		t.Fatal("nonce reused across saves")
	}
	if !bytes.Equal(h1.KDF.Salt, h2.KDF.Salt) {
		t.Fatal("salt changed across saves")
	}
}

func TestRevisionMonotonicity(t *testing.T) {
	f := createTestVault(t, "pw")
	if f.Revision() != 1 {
		t.Fatalf("fresh vault revision %d, want 1", f.Revision())
	}
	if err := f.UpsertHost(testHost("h1", "local")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if f.Revision() != 2 {
		t.Fatalf("revision %d after upsert, want 2", f.Revision())
	}
	// removeX on a nonexistent id is a no-op
	if err := f.RemoveHost("nope"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.RemoveIdentity("nope"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := f.RemoveSnippet("nope"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if f.Revision() != 2 {
		t.Fatalf("revision %d after no-op removes, want 2", f.Revision())
	}
	if err := f.UpdateSettings(DefaultSettings()); err != nil {
		t.Fatalf("settings: %v", err)
	}
	if err := f.UpdateMeta(map[string]string{"hostkey:prod": "SHA256:abc"}); err != nil {
		t.Fatalf("meta: %v", err)
	}
	if f.Revision() != 4 {
		t.Fatalf("revision %d, want 4", f.Revision())
	}
}

func TestUpsertHostDanglingIdentityRejected(t *testing.T) {
	f := createTestVault(t, "pw")
	before := f.Data()
	h := testHost("h1", "local")
	h.IdentityID = "ghost"
	err := f.UpsertHost(h)
	wantRule(t, err, RuleDanglingIdentity)
	after := f.Data()
	if after.Revision != before.Revision || len(after.Hosts) != 0 {
		t.Fatal("rejected mutation changed vault state")
	}
}

func TestRemoveIdentityCascades(t *testing.T) {
	f := createTestVault(t, "pw")
	if err := f.UpsertIdentity(testIdentity("i1", "work")); err != nil {
		t.Fatalf("identity: %v", err)
	}
	h := testHost("h1", "local")
	h.IdentityID = "i1"
	if err := f.UpsertHost(h); err != nil {
		t.Fatalf("host: %v", err)
	}
	rev := f.Revision()
	if err := f.RemoveIdentity("i1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	d := f.Data()
	if f.Revision() != rev+1 {
		t.Fatalf("revision %d, want %d", f.Revision(), rev+1)
	}
	if len(d.Identities) != 0 {
		t.Fatal("identity not removed")
	}
	if len(d.Hosts) != 1 || d.Hosts[0].IdentityID != "" {
		t.Fatalf("host reference not cleared: %+v", d.Hosts)
	}
}

func TestExampleScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.vlt")
	pw := []byte("correct horse battery staple")
	f, err := Create(path, pw, nil, fastKDF(), crypto.CipherXChaCha20Poly1305)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	h := Host{ID: "h1", Label: "local", Hostname: "localhost", Port: 22, Username: "root"}
	if err := f.UpsertHost(h); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if f.Revision() != 2 {
		t.Fatalf("revision %d, want 2", f.Revision())
	}
	if err := f.RemoveHost("h1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if f.Revision() != 3 {
		t.Fatalf("revision %d, want 3", f.Revision())
	}
	if err := f.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Open(path, pw)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d := got.Data()
	if d.Revision != 3 || len(d.Hosts) != 0 {
		t.Fatalf("reopened payload: revision %d, %d hosts", d.Revision, len(d.Hosts))
	}
}

func TestAdoptRevision(t *testing.T) {
	f := createTestVault(t, "pw")
	f.AdoptRevision(7)
	if f.Revision() != 7 {
		t.Fatalf("revision %d, want 7", f.Revision())
	}
	if err := f.UpsertSnippet(Snippet{ID: "s1", Title: "t", Content: "c"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if f.Revision() != 8 {
		t.Fatalf("revision %d, want 8", f.Revision())
	}
}

func TestClockPinsTimestamps(t *testing.T) {
	f := createTestVault(t, "pw")
	fixed := time.Unix(1700000000, 0).UTC()
	f.Clock = func() time.Time { return fixed }
	if err := f.UpsertHost(testHost("h1", "local")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	d := f.Data()
	if !d.UpdatedAt.Equal(fixed) || !d.Hosts[0].CreatedAt.Equal(fixed) {
		t.Fatalf("timestamps not pinned: %v %v", d.UpdatedAt, d.Hosts[0].CreatedAt)
	}
}

func TestOpenRejectsNewerPayloadVersion(t *testing.T) {
	f := createTestVault(t, "pw")
	d := f.data.Clone()
	d.Version = DataVersion + 1
	f.data = d
	if err := f.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := Open(f.Path(), []byte("pw")); err == nil {
		t.Fatal("expected newer payload version to be rejected")
	}
}
