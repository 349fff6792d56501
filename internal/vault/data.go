package vault

import (
	"time"

	"github.com/google/uuid"
)

// DataVersion is the current payload schema version.
const DataVersion = 1

// VaultData is the decrypted payload. Revision starts at 1 and goes up by
// exactly one on every mutating operation; DeviceID names the last writer.
type VaultData struct {
	Version    int               `json:"version"`
	Revision   uint64            `json:"revision"`
	DeviceID   string            `json:"deviceId"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Hosts      []Host            `json:"hosts"`
	Identities []Identity        `json:"identities"`
	Snippets   []Snippet         `json:"snippets"`
	Settings   Settings          `json:"settings"`
	Meta       map[string]string `json:"meta"`
}

type Host struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Hostname    string    `json:"hostname"`
	Port        int       `json:"port"`
	Username    string    `json:"username"`
	IdentityID  string    `json:"identityId,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	TmuxAttach  bool      `json:"tmuxAttach,omitempty"`
	TmuxSession string    `json:"tmuxSession,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Identity struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	KeyType    string    `json:"keyType"`
	PrivateKey string    `json:"privateKey"`
	Passphrase string    `json:"passphrase,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Snippet struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// Settings is the flat preference record carried inside the vault.
type Settings struct {
	Theme               string `json:"theme"`
	FontFamily          string `json:"fontFamily"`
	FontSize            int    `json:"fontSize"`
	AutoLockMinutes     int    `json:"autoLockMinutes"`
	AutoSyncEnabled     bool   `json:"autoSyncEnabled"`
	AutoSyncIntervalSec int    `json:"autoSyncIntervalSec"`
}

func DefaultSettings() Settings {
	return Settings{
		Theme:               "dark",
		FontFamily:          "monospace",
		FontSize:            14,
		AutoLockMinutes:     5,
		AutoSyncIntervalSec: 300,
	}
}

// NewVaultData returns a fresh payload at revision 1.
func NewVaultData(deviceID string, now time.Time) *VaultData {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	return &VaultData{
		Version:   DataVersion,
		Revision:  1,
		DeviceID:  deviceID,
		CreatedAt: now,
		UpdatedAt: now,
		Settings:  DefaultSettings(),
		Meta:      map[string]string{},
	}
}

// Clone returns a deep copy. Mutations operate on a clone so a failed
// validation never leaves partially applied state behind.
func (d *VaultData) Clone() *VaultData {
	out := *d
	out.Hosts = make([]Host, len(d.Hosts))
	for i, h := range d.Hosts {
		h.Tags = append([]string(nil), h.Tags...)
		out.Hosts[i] = h
	}
	out.Identities = append([]Identity(nil), d.Identities...)
	out.Snippets = make([]Snippet, len(d.Snippets))
	for i, s := range d.Snippets {
		s.Tags = append([]string(nil), s.Tags...)
		out.Snippets[i] = s
	}
	out.Meta = make(map[string]string, len(d.Meta))
	for k, v := range d.Meta {
		out.Meta[k] = v
	}
	return &out
}

func (d *VaultData) findHost(id string) int {
	for i := range d.Hosts {
		if d.Hosts[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *VaultData) findIdentity(id string) int {
	for i := range d.Identities {
		if d.Identities[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *VaultData) findSnippet(id string) int {
	for i := range d.Snippets {
		if d.Snippets[i].ID == id {
			return i
		}
	}
	return -1
}
