package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Manage free-form vault metadata (host key fingerprints, markers)",
}

var metaSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a metadata entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		meta := f.Data().Meta
		meta[args[0]] = args[1]
		if err := f.UpdateMeta(meta); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return err
		}
		fmt.Printf("meta %s set (revision %d)\n", args[0], f.Revision())
		return nil
	},
}

var metaGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one metadata entry, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		meta := f.Data().Meta
		if len(args) == 1 {
			v, ok := meta[args[0]]
			if !ok {
				return fmt.Errorf("no meta entry %q", args[0])
			}
			fmt.Println(v)
			return nil
		}
		keys := make([]string, 0, len(meta))
		for k := range meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s=%s\n", k, meta[k])
		}
		return nil
	},
}

var settingsOpts struct {
	Theme               string
	FontFamily          string
	FontSize            int
	AutoLockMinutes     int
	AutoSyncEnabled     bool
	AutoSyncIntervalSec int
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change vault settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := openVault()
		if err != nil {
			return err
		}
		s := f.Data().Settings
		changed := false
		if cmd.Flags().Changed("theme") {
			s.Theme = settingsOpts.Theme
			changed = true
		}
		if cmd.Flags().Changed("font") {
			s.FontFamily = settingsOpts.FontFamily
			changed = true
		}
		if cmd.Flags().Changed("font-size") {
			s.FontSize = settingsOpts.FontSize
			changed = true
		}
		if cmd.Flags().Changed("auto-lock") {
			s.AutoLockMinutes = settingsOpts.AutoLockMinutes
			changed = true
		}
		if cmd.Flags().Changed("auto-sync") {
			s.AutoSyncEnabled = settingsOpts.AutoSyncEnabled
			changed = true
		}
		if cmd.Flags().Changed("auto-sync-interval") {
			s.AutoSyncIntervalSec = settingsOpts.AutoSyncIntervalSec
			changed = true
		}
		if !changed {
			fmt.Printf("theme:              %s\n", s.Theme)
			fmt.Printf("font:               %s %d\n", s.FontFamily, s.FontSize)
			fmt.Printf("auto-lock:          %d min\n", s.AutoLockMinutes)
			fmt.Printf("auto-sync:          %v every %ds\n", s.AutoSyncEnabled, s.AutoSyncIntervalSec)
			return nil
		}
		if err := f.UpdateSettings(s); err != nil {
			return err
		}
		if err := f.Save(); err != nil {
			return err
		}
		fmt.Printf("settings saved (revision %d)\n", f.Revision())
		return nil
	},
}

func init() {
	metaCmd.AddCommand(metaSetCmd, metaGetCmd)

	settingsCmd.Flags().StringVar(&settingsOpts.Theme, "theme", "", "color theme")
	settingsCmd.Flags().StringVar(&settingsOpts.FontFamily, "font", "", "font family")
	settingsCmd.Flags().IntVar(&settingsOpts.FontSize, "font-size", 0, "font size")
	settingsCmd.Flags().IntVar(&settingsOpts.AutoLockMinutes, "auto-lock", 0, "minutes of inactivity before the vault locks")
	settingsCmd.Flags().BoolVar(&settingsOpts.AutoSyncEnabled, "auto-sync", false, "enable background sync")
	settingsCmd.Flags().IntVar(&settingsOpts.AutoSyncIntervalSec, "auto-sync-interval", 0, "background sync interval in seconds")
}
