package main

import (
	"fmt"
	"os"

	"github.com/sprobst76/vibedterm-sub001/internal/platform"
)

func main() {
	// Derived keys and decrypted vault data live in this process.
	if err := platform.DisableCoreDumps(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not disable core dumps: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
