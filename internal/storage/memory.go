package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is the in-process implementation, used in tests and in
// vaultd's development mode. The mutex makes Update a true CAS.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]VaultRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]VaultRecord)}
}

func (m *MemoryRepository) Get(_ context.Context, ownerID string) (*VaultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *MemoryRepository) Create(_ context.Context, rec VaultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.OwnerID]; ok {
		return ErrExists
	}
	rec.Blob = append([]byte(nil), rec.Blob...)
	m.records[rec.OwnerID] = rec
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, ownerID string, expected uint64, blob []byte, device string, now time.Time) (*VaultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Revision != expected {
		return nil, &RevisionMismatchError{
			Revision:  rec.Revision,
			Device:    rec.UpdatedByDevice,
			UpdatedAt: rec.UpdatedAt,
		}
	}
	rec.Blob = append([]byte(nil), blob...)
	rec.Revision++
	rec.UpdatedByDevice = device
	rec.UpdatedAt = now
	m.records[ownerID] = rec
	return copyRecord(rec), nil
}

func (m *MemoryRepository) Replace(_ context.Context, rec VaultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Blob = append([]byte(nil), rec.Blob...)
	m.records[rec.OwnerID] = rec
	return nil
}

func (m *MemoryRepository) Delete(_ context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, ownerID)
	return nil
}

func copyRecord(rec VaultRecord) *VaultRecord {
	rec.Blob = append([]byte(nil), rec.Blob...)
	return &rec
}
