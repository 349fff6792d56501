package syncer

import (
	"fmt"
	"time"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateIdle         State = "idle"
	StateSyncing      State = "syncing"
	StateSynced       State = "synced"
	StateConflict     State = "conflict"
	StateError        State = "error"
)

// Conflict holds the server's side of a rejected push, kept around until
// the user resolves it.
type Conflict struct {
	LocalRevision   uint64
	ServerRevision  uint64
	ServerDeviceID  string
	ServerUpdatedAt time.Time
}

// Status is a snapshot of the sync state machine, delivered to observers
// on every transition.
type Status struct {
	State      State
	LastSyncAt time.Time
	Conflict   *Conflict
	LastError  string
}

// ConflictError is the recoverable, expected outcome of a push against a
// moved server revision. It is not a generic failure.
type ConflictError struct {
	Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("sync: conflict, server at revision %d (device %s), local claimed %d",
		e.ServerRevision, e.ServerDeviceID, e.LocalRevision)
}
