package vault

import "fmt"

// A migration upgrades a payload from one schema version to the next.
type migration func(*VaultData) error

var migrations = map[int]migration{}

// RegisterMigration installs the upgrade step from version `from` to
// `from+1`. Open runs registered steps in order after decrypting.
func RegisterMigration(from int, fn migration) {
	migrations[from] = fn
}

func migrate(d *VaultData) error {
	if d.Version > DataVersion {
		return fmt.Errorf("vault: payload version %d is newer than supported %d", d.Version, DataVersion)
	}
	for d.Version < DataVersion {
		fn, ok := migrations[d.Version]
		if !ok {
			return fmt.Errorf("vault: no migration from payload version %d", d.Version)
		}
		if err := fn(d); err != nil {
			return fmt.Errorf("vault: migration from version %d: %w", d.Version, err)
		}
		d.Version++
	}
	return nil
}
