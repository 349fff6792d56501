package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const appName = "vibedterm"

var globalOpts struct {
	VaultPath string
	ServerURL string
}

var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "Manage the encrypted terminal vault",
	Long: `vaultctl manages an encrypted vault of SSH hosts, identities and
snippets, and keeps it in sync with a vaultd server across devices.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalOpts.VaultPath, "vault", "f", defaultVaultPath(), "path to the vault file")
	rootCmd.PersistentFlags().StringVar(&globalOpts.ServerURL, "server", "", "sync server base URL (overrides the stored one)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(snippetCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(resolveCmd)
}

func defaultVaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "vault.vtrm"
	}
	return filepath.Join(base, appName, "vault.vtrm")
}
