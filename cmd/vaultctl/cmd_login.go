package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var loginOpts struct {
	Server string
	Token  string
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the sync server URL and session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kc, err := openKeychain()
		if err != nil {
			return err
		}
		token := loginOpts.Token
		if token == "" {
			b, err := readPassword("Session token: ")
			if err != nil {
				return err
			}
			token = strings.TrimSpace(string(b))
		}
		if token == "" {
			return fmt.Errorf("empty token")
		}
		if err := kc.Store(secretServer, []byte(loginOpts.Server)); err != nil {
			return err
		}
		if err := kc.Store(secretToken, []byte(token)); err != nil {
			return err
		}
		fmt.Printf("logged in against %s\n", loginOpts.Server)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kc, err := openKeychain()
		if err != nil {
			return err
		}
		if err := kc.Delete(secretToken); err != nil {
			return err
		}
		fmt.Println("logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginOpts.Server, "server", "", "sync server base URL")
	loginCmd.Flags().StringVar(&loginOpts.Token, "token", "", "session token (prompted when omitted)")
	_ = loginCmd.MarkFlagRequired("server")
}
