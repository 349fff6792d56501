//go:build linux || darwin

package platform

import "golang.org/x/sys/unix"

// DisableCoreDumps zeroes RLIMIT_CORE so a crashing process cannot leave
// derived keys or decrypted vault data in a core file.
func DisableCoreDumps() error {
	var rlim unix.Rlimit
	return unix.Setrlimit(unix.RLIMIT_CORE, &rlim)
}
