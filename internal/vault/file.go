package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sprobst76/vibedterm-sub001/internal/crypto"
)

// File owns one vault on disk: header, derived key and the decrypted
// payload. It assumes a single owning goroutine drives mutations and
// saves; concurrent devices are the sync protocol's problem, not ours.
type File struct {
	path   string
	header Header
	key    [crypto.KeySize]byte
	data   *VaultData

	// Clock supplies mutation timestamps. Tests pin it.
	Clock func() time.Time
}

// Create builds a new vault at path. The initial payload may be nil, in
// which case an empty payload at revision 1 is written. Fails on an empty
// password, never partial-writes the target path.
func Create(path string, password []byte, data *VaultData, kdf crypto.KDFParams, cipherKind uint8) (*File, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	f := &File{path: path, Clock: time.Now}
	if data == nil {
		data = NewVaultData("", f.Clock().UTC())
	}
	if err := Validate(data); err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKey(password, kdf)
	if err != nil {
		return nil, err
	}
	f.key = key
	f.header = Header{Version: FormatVersion, KDF: kdf, CipherKind: cipherKind}
	f.data = data

	if err := f.Save(); err != nil {
		return nil, err
	}
	return f, nil
}

// Open reads, authenticates, decrypts, migrates and validates a vault.
// A payload that fails validation is unusable even though it decrypted.
func Open(path string, password []byte) (*File, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	h, headerLen, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	if h.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	key, err := crypto.DeriveKey(password, h.KDF)
	if err != nil {
		return nil, err
	}

	pt, err := crypto.Open(h.CipherKind, key[:], h.Nonce, raw[headerLen:], raw[:headerLen])
	if err != nil {
		return nil, err
	}
	if len(pt) != int(h.PayloadLen) {
		return nil, ErrPayloadLength
	}

	var data VaultData
	if err := json.Unmarshal(pt, &data); err != nil {
		return nil, fmt.Errorf("vault: corrupt payload: %w", err)
	}
	crypto.Zero(pt)
	if err := migrate(&data); err != nil {
		return nil, err
	}
	if data.Meta == nil {
		data.Meta = map[string]string{}
	}
	if err := Validate(&data); err != nil {
		return nil, err
	}

	return &File{path: path, header: h, key: key, data: &data, Clock: time.Now}, nil
}

// Save re-serializes and re-encrypts the current in-memory payload under a
// fresh nonce, then atomically replaces the file. The previous nonce is
// never reused under the same key.
func (f *File) Save() error {
	nonce, err := crypto.NewNonce(f.header.CipherKind)
	if err != nil {
		return err
	}
	pt, err := json.Marshal(f.data)
	if err != nil {
		return err
	}
	f.header.Nonce = nonce
	f.header.PayloadLen = uint32(len(pt))

	hb, err := f.header.Encode()
	if err != nil {
		return err
	}
	ct, err := crypto.Seal(f.header.CipherKind, f.key[:], nonce, pt, hb)
	crypto.Zero(pt)
	if err != nil {
		return err
	}
	return atomicWrite(f.path, append(hb, ct...), 0o600)
}

func (f *File) Path() string { return f.path }

// Data returns a deep copy of the current payload.
func (f *File) Data() *VaultData { return f.data.Clone() }

func (f *File) Revision() uint64 { return f.data.Revision }

// UpsertHost inserts or replaces a host. A non-existent identityId or a
// duplicate label is rejected with the vault state unchanged.
func (f *File) UpsertHost(h Host) error {
	next := f.data.Clone()
	now := f.now()
	if i := next.findHost(h.ID); i >= 0 {
		h.CreatedAt = next.Hosts[i].CreatedAt
		h.UpdatedAt = now
		next.Hosts[i] = h
	} else {
		h.CreatedAt, h.UpdatedAt = now, now
		next.Hosts = append(next.Hosts, h)
	}
	if err := Validate(next); err != nil {
		return err
	}
	f.commit(next, now)
	return nil
}

// RemoveHost drops a host by id. A missing id is a no-op with no revision
// bump.
func (f *File) RemoveHost(id string) error {
	i := f.data.findHost(id)
	if i < 0 {
		return nil
	}
	next := f.data.Clone()
	next.Hosts = append(next.Hosts[:i], next.Hosts[i+1:]...)
	f.commit(next, f.now())
	return nil
}

func (f *File) UpsertIdentity(id Identity) error {
	next := f.data.Clone()
	now := f.now()
	if i := next.findIdentity(id.ID); i >= 0 {
		id.CreatedAt = next.Identities[i].CreatedAt
		id.UpdatedAt = now
		next.Identities[i] = id
	} else {
		id.CreatedAt, id.UpdatedAt = now, now
		next.Identities = append(next.Identities, id)
	}
	if err := Validate(next); err != nil {
		return err
	}
	f.commit(next, now)
	return nil
}

// RemoveIdentity drops an identity and clears identityId on every host
// that referenced it, in the same single mutation.
func (f *File) RemoveIdentity(id string) error {
	i := f.data.findIdentity(id)
	if i < 0 {
		return nil
	}
	next := f.data.Clone()
	next.Identities = append(next.Identities[:i], next.Identities[i+1:]...)
	for j := range next.Hosts {
		if next.Hosts[j].IdentityID == id {
			next.Hosts[j].IdentityID = ""
		}
	}
	f.commit(next, f.now())
	return nil
}

func (f *File) UpsertSnippet(s Snippet) error {
	next := f.data.Clone()
	if i := next.findSnippet(s.ID); i >= 0 {
		next.Snippets[i] = s
	} else {
		next.Snippets = append(next.Snippets, s)
	}
	if err := Validate(next); err != nil {
		return err
	}
	f.commit(next, f.now())
	return nil
}

func (f *File) RemoveSnippet(id string) error {
	i := f.data.findSnippet(id)
	if i < 0 {
		return nil
	}
	next := f.data.Clone()
	next.Snippets = append(next.Snippets[:i], next.Snippets[i+1:]...)
	f.commit(next, f.now())
	return nil
}

func (f *File) UpdateSettings(s Settings) error {
	next := f.data.Clone()
	next.Settings = s
	f.commit(next, f.now())
	return nil
}

// UpdateMeta replaces the forward-compatibility meta map.
func (f *File) UpdateMeta(meta map[string]string) error {
	next := f.data.Clone()
	next.Meta = make(map[string]string, len(meta))
	for k, v := range meta {
		next.Meta[k] = v
	}
	f.commit(next, f.now())
	return nil
}

// AdoptRevision aligns the payload revision with a server-assigned one
// after a successful push. It is bookkeeping, not a mutation: no bump, no
// timestamp refresh.
func (f *File) AdoptRevision(rev uint64) {
	next := f.data.Clone()
	next.Revision = rev
	f.data = next
}

func (f *File) commit(next *VaultData, now time.Time) {
	next.Revision = f.data.Revision + 1
	next.UpdatedAt = now
	f.data = next
}

func (f *File) now() time.Time {
	if f.Clock != nil {
		return f.Clock().UTC()
	}
	return time.Now().UTC()
}
