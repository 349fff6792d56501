package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sprobst76/vibedterm-sub001/internal/crypto"
	"github.com/sprobst76/vibedterm-sub001/internal/vault"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage SSH identities (private keys)",
}

var identityAddOpts struct {
	ID         string
	Name       string
	KeyType    string
	KeyFile    string
	Passphrase bool
}

var identityAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update an identity from an armored key file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := os.ReadFile(identityAddOpts.KeyFile)
		if err != nil {
			return fmt.Errorf("read key file: %w", err)
		}
		defer crypto.Zero(key)

		var passphrase []byte
		if identityAddOpts.Passphrase {
			passphrase, err = readPassword("Key passphrase: ")
			if err != nil {
				return err
			}
			defer crypto.Zero(passphrase)
		}

		f, err := openVault()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		id := vault.Identity{
			ID:         identityAddOpts.ID,
			Name:       identityAddOpts.Name,
			KeyType:    identityAddOpts.KeyType,
			PrivateKey: string(key),
			Passphrase: string(passphrase),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if id.ID == "" {
			id.ID = uuid.NewString()
		}
		if err := f.UpsertIdentity(id); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return err
		}
		fmt.Printf("identity %s saved (revision %d)\n", id.ID, f.Revision())
		return nil
	},
}

var identityRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove an identity and detach it from its hosts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		if err := f.RemoveIdentity(args[0]); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return err
		}
		fmt.Printf("identity %s removed (revision %d)\n", args[0], f.Revision())
		return nil
	},
}

var identityLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List identities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		for _, id := range f.Data().Identities {
			fmt.Printf("%s  %s  %s\n", id.ID, id.Name, id.KeyType)
		}
		return nil
	},
}

func init() {
	identityAddCmd.Flags().StringVar(&identityAddOpts.ID, "id", "", "identity id (defaults to a new uuid)")
	identityAddCmd.Flags().StringVar(&identityAddOpts.Name, "name", "", "identity name")
	identityAddCmd.Flags().StringVar(&identityAddOpts.KeyType, "type", "ed25519", "key type, for display only")
	identityAddCmd.Flags().StringVar(&identityAddOpts.KeyFile, "key-file", "", "path to the armored private key")
	identityAddCmd.Flags().BoolVar(&identityAddOpts.Passphrase, "passphrase", false, "prompt for a key passphrase to store alongside")
	_ = identityAddCmd.MarkFlagRequired("name")
	_ = identityAddCmd.MarkFlagRequired("key-file")

	identityCmd.AddCommand(identityAddCmd, identityRmCmd, identityLsCmd)
}
