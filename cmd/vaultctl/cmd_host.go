package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sprobst76/vibedterm-sub001/internal/vault"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage SSH host entries",
}

var hostAddOpts struct {
	ID          string
	Label       string
	Hostname    string
	Port        int
	Username    string
	IdentityID  string
	Tags        []string
	TmuxAttach  bool
	TmuxSession string
}

var hostAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a host",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		h := vault.Host{
			ID:          hostAddOpts.ID,
			Label:       hostAddOpts.Label,
			Hostname:    hostAddOpts.Hostname,
			Port:        hostAddOpts.Port,
			Username:    hostAddOpts.Username,
			IdentityID:  hostAddOpts.IdentityID,
			Tags:        hostAddOpts.Tags,
			TmuxAttach:  hostAddOpts.TmuxAttach,
			TmuxSession: hostAddOpts.TmuxSession,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if h.ID == "" {
			h.ID = uuid.NewString()
		}
		if err := f.UpsertHost(h); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return err
		}
		fmt.Printf("host %s saved (revision %d)\n", h.ID, f.Revision())
		return nil
	},
}

var hostRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		if err := f.RemoveHost(args[0]); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return err
		}
		fmt.Printf("host %s removed (revision %d)\n", args[0], f.Revision())
		return nil
	},
}

var hostLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List hosts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		for _, h := range f.Data().Hosts {
			line := fmt.Sprintf("%s  %s  %s@%s:%d", h.ID, h.Label, h.Username, h.Hostname, h.Port)
			if len(h.Tags) > 0 {
				line += "  [" + strings.Join(h.Tags, ",") + "]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	hostAddCmd.Flags().StringVar(&hostAddOpts.ID, "id", "", "host id (defaults to a new uuid; an existing id updates that host)")
	hostAddCmd.Flags().StringVar(&hostAddOpts.Label, "label", "", "display label")
	hostAddCmd.Flags().StringVar(&hostAddOpts.Hostname, "hostname", "", "host to connect to")
	hostAddCmd.Flags().IntVar(&hostAddOpts.Port, "port", 22, "ssh port")
	hostAddCmd.Flags().StringVar(&hostAddOpts.Username, "user", "", "login user")
	hostAddCmd.Flags().StringVar(&hostAddOpts.IdentityID, "identity", "", "id of the identity to authenticate with")
	hostAddCmd.Flags().StringSliceVar(&hostAddOpts.Tags, "tag", nil, "tags (repeatable)")
	hostAddCmd.Flags().BoolVar(&hostAddOpts.TmuxAttach, "tmux", false, "attach to tmux after connecting")
	hostAddCmd.Flags().StringVar(&hostAddOpts.TmuxSession, "tmux-session", "", "tmux session name")
	_ = hostAddCmd.MarkFlagRequired("label")
	_ = hostAddCmd.MarkFlagRequired("hostname")
	_ = hostAddCmd.MarkFlagRequired("user")

	hostCmd.AddCommand(hostAddCmd, hostRmCmd, hostLsCmd)
}
