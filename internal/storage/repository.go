package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("storage: vault record not found")
	ErrExists   = errors.New("storage: vault record already exists")
)

// RevisionMismatchError reports a failed compare-and-swap together with
// the server's true current state, so a conflict can be surfaced with
// everything the client needs for resolution.
type RevisionMismatchError struct {
	Revision  uint64
	Device    string
	UpdatedAt time.Time
}

func (e *RevisionMismatchError) Error() string {
	return fmt.Sprintf("storage: revision mismatch, server is at %d (device %s)", e.Revision, e.Device)
}

// VaultRecord is the single row a repository keeps per owner. Blob is the
// opaque encrypted vault, exactly as it sits on a client's disk.
type VaultRecord struct {
	OwnerID         string    `bson:"_id" json:"ownerId"`
	Blob            []byte    `bson:"blob" json:"blob"`
	Revision        uint64    `bson:"revision" json:"revision"`
	UpdatedByDevice string    `bson:"updatedByDevice" json:"updatedByDevice"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
}

// VaultRepository persists exactly one encrypted blob plus revision per
// owner. Update is the only operation hit by true concurrent mutation and
// must be an atomic compare-and-swap.
type VaultRepository interface {
	Get(ctx context.Context, ownerID string) (*VaultRecord, error)
	Create(ctx context.Context, rec VaultRecord) error

	// Update applies blob only if the stored revision equals expected,
	// atomically bumping the revision by one. On mismatch it returns a
	// *RevisionMismatchError carrying the current record state.
	Update(ctx context.Context, ownerID string, expected uint64, blob []byte, device string, now time.Time) (*VaultRecord, error)

	// Replace drops any existing record and installs rec as-is. This is
	// the force-overwrite path; it never conflicts.
	Replace(ctx context.Context, rec VaultRecord) error

	Delete(ctx context.Context, ownerID string) error
}
