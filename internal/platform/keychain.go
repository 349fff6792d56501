package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoSecret is returned by Load when no secret has been stored yet.
var ErrNoSecret = errors.New("platform: secret not found")

// Keychain stores small secrets, like the sync session token, outside
// the vault file. The file backend keeps each secret in a 0600 file
// under the user config directory; OS keystore backends can slot in
// behind the same interface.
type Keychain interface {
	Store(name string, secret []byte) error
	Load(name string) ([]byte, error)
	Delete(name string) error
}

type fileKeychain struct {
	dir string
}

// NewKeychain returns the file-backed keychain rooted at
// <user config dir>/<app>.
func NewKeychain(app string) (Keychain, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	return &fileKeychain{dir: dir}, nil
}

func (k *fileKeychain) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	return filepath.Join(k.dir, name), nil
}

func (k *fileKeychain) Store(name string, secret []byte) error {
	p, err := k.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, secret, 0o600)
}

func (k *fileKeychain) Load(name string) ([]byte, error) {
	p, err := k.path(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSecret
	}
	return b, err
}

func (k *fileKeychain) Delete(name string) error {
	p, err := k.path(name)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
