package syncer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	ErrNotAuthenticated = errors.New("sync: not authenticated")
	ErrNoRemoteVault    = errors.New("sync: no vault on server")
)

// TokenSource is the contract with the external identity provider: a
// bearer credential plus the id this device is known by.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	DeviceID() string
}

type RemoteStatus struct {
	HasVault  bool      `json:"hasVault"`
	Revision  uint64    `json:"revision"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RemoteVault struct {
	Blob            []byte
	Revision        uint64
	UpdatedAt       time.Time
	UpdatedByDevice string
}

type PushResult struct {
	Revision  uint64
	Timestamp time.Time
}

// Transport speaks the owner-scoped sync HTTP contract. Calls block until
// the server answers; retry policy belongs to the caller.
type Transport struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

func NewTransport(baseURL string, tokens TokenSource) *Transport {
	return &Transport{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
}

func (t *Transport) Status(ctx context.Context) (RemoteStatus, error) {
	var out RemoteStatus
	err := t.call(ctx, http.MethodGet, "/api/vault/status", nil, &out)
	return out, err
}

func (t *Transport) Pull(ctx context.Context) (RemoteVault, error) {
	var wire struct {
		VaultBlob       string    `json:"vaultBlob"`
		Revision        uint64    `json:"revision"`
		UpdatedAt       time.Time `json:"updatedAt"`
		UpdatedByDevice string    `json:"updatedByDevice"`
	}
	if err := t.call(ctx, http.MethodGet, "/api/vault", nil, &wire); err != nil {
		return RemoteVault{}, err
	}
	blob, err := base64.StdEncoding.DecodeString(wire.VaultBlob)
	if err != nil {
		return RemoteVault{}, fmt.Errorf("sync: server sent malformed blob: %w", err)
	}
	return RemoteVault{
		Blob:            blob,
		Revision:        wire.Revision,
		UpdatedAt:       wire.UpdatedAt,
		UpdatedByDevice: wire.UpdatedByDevice,
	}, nil
}

// Push uploads blob claiming baseRevision as the expected server state.
// A moved server revision comes back as *ConflictError.
func (t *Transport) Push(ctx context.Context, blob []byte, baseRevision uint64) (PushResult, error) {
	req := map[string]any{
		"vaultBlob": base64.StdEncoding.EncodeToString(blob),
		"revision":  baseRevision,
		"deviceId":  t.tokens.DeviceID(),
	}
	var resp struct {
		Revision  uint64    `json:"revision"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := t.call(ctx, http.MethodPost, "/api/vault/push", req, &resp); err != nil {
		return PushResult{}, err
	}
	return PushResult{Revision: resp.Revision, Timestamp: resp.Timestamp}, nil
}

func (t *Transport) ForceOverwrite(ctx context.Context, blob []byte) (PushResult, error) {
	req := map[string]any{
		"vaultBlob": base64.StdEncoding.EncodeToString(blob),
		"deviceId":  t.tokens.DeviceID(),
		"confirm":   true,
	}
	var resp struct {
		Revision  uint64    `json:"revision"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := t.call(ctx, http.MethodPost, "/api/vault/force-overwrite", req, &resp); err != nil {
		return PushResult{}, err
	}
	return PushResult{Revision: resp.Revision, Timestamp: resp.Timestamp}, nil
}

func (t *Transport) call(ctx context.Context, method, path string, body, out any) error {
	token, err := t.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("sync: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if out == nil {
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return ErrNoRemoteVault
	case http.StatusUnauthorized:
		return ErrNotAuthenticated
	case http.StatusConflict:
		var wire struct {
			LocalRevision   uint64    `json:"localRevision"`
			ServerRevision  uint64    `json:"serverRevision"`
			ServerDeviceID  string    `json:"serverDeviceId"`
			ServerUpdatedAt time.Time `json:"serverUpdatedAt"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return fmt.Errorf("sync: malformed conflict response: %w", err)
		}
		return &ConflictError{Conflict{
			LocalRevision:   wire.LocalRevision,
			ServerRevision:  wire.ServerRevision,
			ServerDeviceID:  wire.ServerDeviceID,
			ServerUpdatedAt: wire.ServerUpdatedAt,
		}}
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sync: server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}
