package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprobst76/vibedterm-sub001/internal/crypto"
	"github.com/sprobst76/vibedterm-sub001/internal/syncer"
	"github.com/sprobst76/vibedterm-sub001/internal/vault"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := readPassword("Vault password: ")
		if err != nil {
			return err
		}
		defer crypto.Zero(pw)
		f, err := vault.Open(globalOpts.VaultPath, pw)
		if err != nil {
			return err
		}
		client, _, err := newSyncClient()
		if err != nil {
			return err
		}

		getLocal := func(context.Context) ([]byte, uint64, error) {
			blob, err := os.ReadFile(globalOpts.VaultPath)
			if err != nil {
				return nil, 0, err
			}
			return blob, f.Revision(), nil
		}
		loadServer := func(_ context.Context, blob []byte, rev uint64) error {
			return adoptServerCopy(globalOpts.VaultPath, pw, blob, rev)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		res, err := client.Sync(ctx, getLocal, loadServer)
		var conflict *syncer.ConflictError
		if errors.As(err, &conflict) {
			fmt.Printf("conflict: server is at revision %d (device %s, %s), local claims %d\n",
				conflict.ServerRevision, conflict.ServerDeviceID,
				conflict.ServerUpdatedAt.Format(time.RFC3339), conflict.LocalRevision)
			fmt.Println("run `vaultctl resolve --keep-local` or `vaultctl resolve --keep-server`")
			return fmt.Errorf("sync conflict")
		}
		if err != nil {
			return err
		}

		switch res.Outcome {
		case syncer.OutcomePushed:
			if res.Revision != f.Revision() {
				f.AdoptRevision(res.Revision)
				if err := f.Save(); err != nil {
					return fmt.Errorf("record server revision: %w", err)
				}
			}
			fmt.Printf("pushed, server now at revision %d\n", res.Revision)
		case syncer.OutcomePulled:
			fmt.Printf("pulled server revision %d\n", res.Revision)
		case syncer.OutcomeInSync:
			fmt.Printf("in sync at revision %d\n", res.Revision)
		default:
			fmt.Println("nothing to sync")
		}
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "sync-status",
	Short: "Compare the local vault against the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		transport, _, err := newTransport()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		st, err := transport.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("local revision:  %d\n", f.Revision())
		if !st.HasVault {
			fmt.Println("server:          no vault")
			return nil
		}
		fmt.Printf("server revision: %d (updated %s)\n", st.Revision, st.UpdatedAt.Format(time.RFC3339))
		return nil
	},
}

var resolveOpts struct {
	KeepLocal  bool
	KeepServer bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a sync conflict by keeping one side whole",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if resolveOpts.KeepLocal == resolveOpts.KeepServer {
			return fmt.Errorf("pass exactly one of --keep-local or --keep-server")
		}
		client, _, err := newSyncClient()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if resolveOpts.KeepServer {
			remote, err := client.Pull(ctx)
			if err != nil {
				return err
			}
			pw, err := readPassword("Vault password: ")
			if err != nil {
				return err
			}
			defer crypto.Zero(pw)
			if err := adoptServerCopy(globalOpts.VaultPath, pw, remote.Blob, remote.Revision); err != nil {
				return err
			}
			fmt.Printf("kept server copy, revision %d\n", remote.Revision)
			return nil
		}

		f, err := openVault()
		if err != nil {
			return err
		}
		blob, err := os.ReadFile(globalOpts.VaultPath)
		if err != nil {
			return err
		}
		res, err := client.ForceOverwrite(ctx, blob)
		if err != nil {
			return err
		}
		f.AdoptRevision(res.Revision)
		if err := f.Save(); err != nil {
			return fmt.Errorf("record server revision: %w", err)
		}
		fmt.Printf("kept local copy, server reset to revision %d\n", res.Revision)
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveOpts.KeepLocal, "keep-local", false, "overwrite the server with the local vault")
	resolveCmd.Flags().BoolVar(&resolveOpts.KeepServer, "keep-server", false, "replace the local vault with the server copy")
}
