package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/sprobst76/vibedterm-sub001/internal/crypto"
	"github.com/sprobst76/vibedterm-sub001/internal/platform"
	"github.com/sprobst76/vibedterm-sub001/internal/syncer"
	"github.com/sprobst76/vibedterm-sub001/internal/vault"
)

const (
	secretToken  = "token"
	secretServer = "server"
	secretDevice = "device"
)

// readPassword prompts on the terminal, or takes VAULTCTL_PASSWORD when
// set so scripts can drive the CLI. The caller must Zero the result.
func readPassword(prompt string) ([]byte, error) {
	if env := os.Getenv("VAULTCTL_PASSWORD"); env != "" {
		return []byte(env), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

func readNewPassword() ([]byte, error) {
	pw, err := readPassword("New vault password: ")
	if err != nil {
		return nil, err
	}
	if os.Getenv("VAULTCTL_PASSWORD") != "" {
		return pw, nil
	}
	again, err := readPassword("Repeat password: ")
	if err != nil {
		crypto.Zero(pw)
		return nil, err
	}
	defer crypto.Zero(again)
	if string(pw) != string(again) {
		crypto.Zero(pw)
		return nil, fmt.Errorf("passwords do not match")
	}
	return pw, nil
}

// openVault prompts for the password and unlocks the vault at the
// configured path.
func openVault() (*vault.File, error) {
	pw, err := readPassword("Vault password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(pw)
	return vault.Open(globalOpts.VaultPath, pw)
}

// adoptServerCopy installs a pulled blob as the local vault and aligns
// the payload revision with the server's. The two diverge after another
// device force-overwrites: the record resets to revision 1 while the
// blob's payload keeps its old count.
func adoptServerCopy(path string, password, blob []byte, serverRev uint64) error {
	if err := vault.WriteBlob(path, blob); err != nil {
		return err
	}
	f, err := vault.Open(path, password)
	if err != nil {
		return fmt.Errorf("open pulled vault: %w", err)
	}
	if f.Revision() == serverRev {
		return nil
	}
	f.AdoptRevision(serverRev)
	return f.Save()
}

func openKeychain() (platform.Keychain, error) {
	return platform.NewKeychain(appName)
}

// cliTokens serves the stored session token and the per-install device
// id to the sync client.
type cliTokens struct {
	kc     platform.Keychain
	device string
}

func newCLITokens() (*cliTokens, error) {
	kc, err := openKeychain()
	if err != nil {
		return nil, err
	}
	dev, err := kc.Load(secretDevice)
	if errors.Is(err, platform.ErrNoSecret) {
		id := uuid.NewString()
		if err := kc.Store(secretDevice, []byte(id)); err != nil {
			return nil, fmt.Errorf("store device id: %w", err)
		}
		dev = []byte(id)
	} else if err != nil {
		return nil, err
	}
	return &cliTokens{kc: kc, device: strings.TrimSpace(string(dev))}, nil
}

func (c *cliTokens) Token(context.Context) (string, error) {
	tok, err := c.kc.Load(secretToken)
	if errors.Is(err, platform.ErrNoSecret) {
		return "", fmt.Errorf("not logged in, run `vaultctl login` first")
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(tok)), nil
}

func (c *cliTokens) DeviceID() string { return c.device }

// newTransport wires the sync transport against the configured server.
func newTransport() (*syncer.Transport, *cliTokens, error) {
	tokens, err := newCLITokens()
	if err != nil {
		return nil, nil, err
	}
	base := globalOpts.ServerURL
	if base == "" {
		stored, err := tokens.kc.Load(secretServer)
		if errors.Is(err, platform.ErrNoSecret) {
			return nil, nil, fmt.Errorf("no server configured, run `vaultctl login --server URL`")
		}
		if err != nil {
			return nil, nil, err
		}
		base = strings.TrimSpace(string(stored))
	}
	return syncer.NewTransport(base, tokens), tokens, nil
}

func newSyncClient() (*syncer.Client, *cliTokens, error) {
	transport, tokens, err := newTransport()
	if err != nil {
		return nil, nil, err
	}
	return syncer.New(transport, tokens, nil), tokens, nil
}
