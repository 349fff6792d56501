package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sprobst76/vibedterm-sub001/internal/vault"
)

var snippetCmd = &cobra.Command{
	Use:   "snippet",
	Short: "Manage command snippets",
}

var snippetAddOpts struct {
	ID      string
	Title   string
	Content string
	File    string
	Tags    []string
}

var snippetAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a snippet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		content := snippetAddOpts.Content
		if snippetAddOpts.File != "" {
			b, err := os.ReadFile(snippetAddOpts.File)
			if err != nil {
				return fmt.Errorf("read snippet file: %w", err)
			}
			content = string(b)
		}
		f, err := openVault()
		if err != nil {
			return err
		}
		s := vault.Snippet{
			ID:      snippetAddOpts.ID,
			Title:   snippetAddOpts.Title,
			Content: content,
			Tags:    snippetAddOpts.Tags,
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		if err := f.UpsertSnippet(s); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return err
		}
		fmt.Printf("snippet %s saved (revision %d)\n", s.ID, f.Revision())
		return nil
	},
}

var snippetRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a snippet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		if err := f.RemoveSnippet(args[0]); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return err
		}
		fmt.Printf("snippet %s removed (revision %d)\n", args[0], f.Revision())
		return nil
	},
}

var snippetLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List snippets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		for _, s := range f.Data().Snippets {
			fmt.Printf("%s  %s\n", s.ID, s.Title)
		}
		return nil
	},
}

func init() {
	snippetAddCmd.Flags().StringVar(&snippetAddOpts.ID, "id", "", "snippet id (defaults to a new uuid)")
	snippetAddCmd.Flags().StringVar(&snippetAddOpts.Title, "title", "", "snippet title")
	snippetAddCmd.Flags().StringVar(&snippetAddOpts.Content, "content", "", "snippet body")
	snippetAddCmd.Flags().StringVar(&snippetAddOpts.File, "file", "", "read the body from a file instead of --content")
	snippetAddCmd.Flags().StringSliceVar(&snippetAddOpts.Tags, "tag", nil, "tags (repeatable)")
	_ = snippetAddCmd.MarkFlagRequired("title")

	snippetCmd.AddCommand(snippetAddCmd, snippetRmCmd, snippetLsCmd)
}
