package crypto

// Zero wipes key material from a byte slice. Best effort: the runtime
// may hold copies elsewhere, but passwords and derived keys should not
// outlive their use in the buffers we control.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
