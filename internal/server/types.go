package server

import "time"

// Wire shapes of the sync contract. The vault blob travels base64-encoded
// inside JSON.

type StatusResponse struct {
	HasVault  bool      `json:"hasVault"`
	Revision  uint64    `json:"revision"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type PullResponse struct {
	VaultBlob       string    `json:"vaultBlob"`
	Revision        uint64    `json:"revision"`
	UpdatedAt       time.Time `json:"updatedAt"`
	UpdatedByDevice string    `json:"updatedByDevice"`
}

type PushRequest struct {
	VaultBlob string `json:"vaultBlob"`
	Revision  uint64 `json:"revision"` // claimed base revision
	DeviceID  string `json:"deviceId"`
}

type PushResponse struct {
	Status    string    `json:"status"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
}

// ConflictResponse rides on HTTP 409 and carries everything a client
// needs to offer user-mediated resolution.
type ConflictResponse struct {
	LocalRevision   uint64    `json:"localRevision"`
	ServerRevision  uint64    `json:"serverRevision"`
	ServerDeviceID  string    `json:"serverDeviceId"`
	ServerUpdatedAt time.Time `json:"serverUpdatedAt"`
}

type ForceOverwriteRequest struct {
	VaultBlob string `json:"vaultBlob"`
	DeviceID  string `json:"deviceId"`
	Confirm   bool   `json:"confirm"`
}

type errorResponse struct {
	Error string `json:"error"`
}
