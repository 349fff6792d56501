package vault

import (
	"os"
	"path/filepath"
)

// atomicWrite writes data to a temporary file in the target directory,
// fsyncs, then renames into place. The real path never holds a partial
// write; a crash leaves at worst a stale temp file.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vault-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	ok = true

	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// WriteBlob atomically replaces the file at path with raw vault bytes,
// e.g. a blob pulled from the sync server.
func WriteBlob(path string, blob []byte) error {
	return atomicWrite(path, blob, 0o600)
}
