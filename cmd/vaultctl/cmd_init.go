package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprobst76/vibedterm-sub001/internal/crypto"
	"github.com/sprobst76/vibedterm-sub001/internal/vault"
)

var initOpts struct {
	Cipher string
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new empty vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(globalOpts.VaultPath); err == nil {
			return fmt.Errorf("%s already exists", globalOpts.VaultPath)
		}
		cipherKind, err := cipherKindByName(initOpts.Cipher)
		if err != nil {
			return err
		}
		pw, err := readNewPassword()
		if err != nil {
			return err
		}
		defer crypto.Zero(pw)

		if err := os.MkdirAll(filepath.Dir(globalOpts.VaultPath), 0o700); err != nil {
			return err
		}
		tokens, err := newCLITokens()
		if err != nil {
			return err
		}
		data := vault.NewVaultData(tokens.DeviceID(), time.Now().UTC())
		f, err := vault.Create(globalOpts.VaultPath, pw, data, crypto.DefaultKDF(), cipherKind)
		if err != nil {
			return err
		}
		fmt.Printf("created %s (device %s)\n", f.Path(), tokens.DeviceID())
		return nil
	},
}

func cipherKindByName(name string) (uint8, error) {
	switch name {
	case "xchacha20", "":
		return crypto.CipherXChaCha20Poly1305, nil
	case "aes-gcm":
		return crypto.CipherAESGCM, nil
	default:
		return 0, fmt.Errorf("unknown cipher %q (want xchacha20 or aes-gcm)", name)
	}
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a summary of the vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		d := f.Data()
		fmt.Printf("vault:      %s\n", f.Path())
		fmt.Printf("revision:   %d\n", d.Revision)
		fmt.Printf("device:     %s\n", d.DeviceID)
		fmt.Printf("updated:    %s\n", d.UpdatedAt.Format(time.RFC3339))
		fmt.Printf("hosts:      %d\n", len(d.Hosts))
		fmt.Printf("identities: %d\n", len(d.Identities))
		fmt.Printf("snippets:   %d\n", len(d.Snippets))
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initOpts.Cipher, "cipher", "xchacha20", "payload cipher: xchacha20 or aes-gcm")
}
