package syncer

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sprobst76/vibedterm-sub001/internal/auth"
	"github.com/sprobst76/vibedterm-sub001/internal/server"
	"github.com/sprobst76/vibedterm-sub001/internal/storage"
)

type staticTokens struct {
	token  string
	device string
	err    error
}

func (s *staticTokens) Token(context.Context) (string, error) { return s.token, s.err }
func (s *staticTokens) DeviceID() string                      { return s.device }

type syncEnv struct {
	client *Client
	repo   *storage.MemoryRepository
	tokens *staticTokens
}

func newSyncEnv(t *testing.T, owner, device string) *syncEnv {
	t.Helper()
	priv, _, err := auth.GenerateEd25519()
	require.NoError(t, err)
	signer := auth.NewJWTSigner(priv, "vaultd-test", time.Hour)
	repo := storage.NewMemoryRepository()
	srv := httptest.NewServer(server.New(server.Config{}, repo, signer, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)

	tok, _, err := signer.IssueToken(owner, device)
	require.NoError(t, err)
	tokens := &staticTokens{token: tok, device: device}
	transport := NewTransport(srv.URL, tokens)
	return &syncEnv{
		client: New(transport, tokens, zap.NewNop()),
		repo:   repo,
		tokens: tokens,
	}
}

func staticLocal(blob []byte, rev uint64) GetLocalVault {
	return func(context.Context) ([]byte, uint64, error) { return blob, rev, nil }
}

func rejectLoad(t *testing.T) LoadServerVault {
	return func(context.Context, []byte, uint64) error {
		t.Fatal("loadServerVault called unexpectedly")
		return nil
	}
}

func TestSyncNothingToDo(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")
	res, err := env.client.Sync(context.Background(), staticLocal(nil, 0), rejectLoad(t))
	require.NoError(t, err)
	require.Equal(t, OutcomeNothing, res.Outcome)
	require.Equal(t, StateSynced, env.client.Status().State)
}

func TestSyncInitialPush(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")
	res, err := env.client.Sync(context.Background(), staticLocal([]byte("local-vault"), 3), rejectLoad(t))
	require.NoError(t, err)
	require.Equal(t, OutcomePushed, res.Outcome)
	require.Equal(t, uint64(3), res.Revision)

	rec, err := env.repo.Get(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []byte("local-vault"), rec.Blob)
	require.Equal(t, uint64(3), rec.Revision)
}

func TestSyncPullWhenServerAhead(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")
	require.NoError(t, env.repo.Create(context.Background(), storage.VaultRecord{
		OwnerID: "alice", Blob: []byte("server-vault"), Revision: 5,
		UpdatedByDevice: "dev-2", UpdatedAt: time.Now(),
	}))

	var gotBlob []byte
	var gotRev uint64
	load := func(_ context.Context, blob []byte, rev uint64) error {
		gotBlob, gotRev = blob, rev
		return nil
	}

	// unknown local revision adopts the server copy
	res, err := env.client.Sync(context.Background(), staticLocal(nil, 0), load)
	require.NoError(t, err)
	require.Equal(t, OutcomePulled, res.Outcome)
	require.Equal(t, []byte("server-vault"), gotBlob)
	require.Equal(t, uint64(5), gotRev)

	// a strictly-behind local revision adopts too
	res, err = env.client.Sync(context.Background(), staticLocal([]byte("old"), 2), load)
	require.NoError(t, err)
	require.Equal(t, OutcomePulled, res.Outcome)
	require.Equal(t, uint64(5), res.Revision)
}

func TestSyncInSync(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")
	require.NoError(t, env.repo.Create(context.Background(), storage.VaultRecord{
		OwnerID: "alice", Blob: []byte("v"), Revision: 4,
		UpdatedByDevice: "dev-1", UpdatedAt: time.Now(),
	}))
	res, err := env.client.Sync(context.Background(), staticLocal([]byte("v"), 4), rejectLoad(t))
	require.NoError(t, err)
	require.Equal(t, OutcomeInSync, res.Outcome)
	require.False(t, env.client.Status().LastSyncAt.IsZero())
}

func TestSyncLocalAheadPushes(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")
	require.NoError(t, env.repo.Create(context.Background(), storage.VaultRecord{
		OwnerID: "alice", Blob: []byte("old"), Revision: 2,
		UpdatedByDevice: "dev-1", UpdatedAt: time.Now(),
	}))

	res, err := env.client.Sync(context.Background(), staticLocal([]byte("newer"), 9), rejectLoad(t))
	require.NoError(t, err)
	require.Equal(t, OutcomePushed, res.Outcome)
	require.Equal(t, uint64(3), res.Revision, "server bumps its own revision by one")

	rec, err := env.repo.Get(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, []byte("newer"), rec.Blob)
}

func TestPushConflictParksStateMachine(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")
	require.NoError(t, env.repo.Create(context.Background(), storage.VaultRecord{
		OwnerID: "alice", Blob: []byte("server"), Revision: 6,
		UpdatedByDevice: "dev-2", UpdatedAt: time.Now(),
	}))

	_, err := env.client.Push(context.Background(), []byte("mine"), 5)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, uint64(6), conflict.ServerRevision)
	require.Equal(t, "dev-2", conflict.ServerDeviceID)

	status := env.client.Status()
	require.Equal(t, StateConflict, status.State)
	require.NotNil(t, status.Conflict)
	require.Equal(t, uint64(6), status.Conflict.ServerRevision)
}

func TestForceOverwriteResolvesConflict(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")
	require.NoError(t, env.repo.Create(context.Background(), storage.VaultRecord{
		OwnerID: "alice", Blob: []byte("server"), Revision: 6,
		UpdatedByDevice: "dev-2", UpdatedAt: time.Now(),
	}))
	_, err := env.client.Push(context.Background(), []byte("mine"), 1)
	require.Error(t, err)
	require.Equal(t, StateConflict, env.client.Status().State)

	res, err := env.client.ForceOverwrite(context.Background(), []byte("mine"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Revision, "force overwrite resets the baseline")

	status := env.client.Status()
	require.Equal(t, StateIdle, status.State, "resolution settles into idle, not synced")
	require.Nil(t, status.Conflict)
}

func TestPullResolvesConflict(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")
	require.NoError(t, env.repo.Create(context.Background(), storage.VaultRecord{
		OwnerID: "alice", Blob: []byte("server"), Revision: 6,
		UpdatedByDevice: "dev-2", UpdatedAt: time.Now(),
	}))
	_, err := env.client.Push(context.Background(), []byte("mine"), 1)
	require.Error(t, err)

	remote, err := env.client.Pull(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("server"), remote.Blob)
	require.Equal(t, uint64(6), remote.Revision)

	status := env.client.Status()
	require.Equal(t, StateIdle, status.State)
	require.Nil(t, status.Conflict)
}

func TestSyncNotAuthenticated(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")
	env.tokens.err = errors.New("no session")

	before := env.client.Status()
	_, err := env.client.Sync(context.Background(), staticLocal([]byte("v"), 1), rejectLoad(t))
	require.ErrorIs(t, err, ErrNotAuthenticated)
	require.Equal(t, before.State, env.client.Status().State, "no state transition on auth failure")
}

func TestSyncRefusesOverlap(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")

	started := make(chan struct{})
	release := make(chan struct{})
	slowLocal := func(context.Context) ([]byte, uint64, error) {
		close(started)
		<-release
		return nil, 0, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := env.client.Sync(context.Background(), slowLocal, rejectLoad(t))
		done <- err
	}()
	<-started

	_, err := env.client.Sync(context.Background(), staticLocal(nil, 0), rejectLoad(t))
	require.ErrorIs(t, err, ErrSyncInFlight)

	close(release)
	require.NoError(t, <-done)
}

func TestStatusObservers(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")

	var states []State
	unsub := env.client.OnStatus(func(s Status) { states = append(states, s.State) })

	_, err := env.client.Sync(context.Background(), staticLocal(nil, 0), rejectLoad(t))
	require.NoError(t, err)
	require.Equal(t, []State{StateSyncing, StateSynced}, states)

	unsub()
	_, err = env.client.Sync(context.Background(), staticLocal(nil, 0), rejectLoad(t))
	require.NoError(t, err)
	require.Len(t, states, 2, "unsubscribed observer must not fire")
}

func TestNetworkFailureSurfacesAsErrorState(t *testing.T) {
	tokens := &staticTokens{token: "t", device: "dev-1"}
	transport := NewTransport("http://127.0.0.1:1", tokens) // nothing listens here
	client := New(transport, tokens, zap.NewNop())

	_, err := client.Sync(context.Background(), staticLocal([]byte("v"), 1), rejectLoad(t))
	require.Error(t, err)
	status := client.Status()
	require.Equal(t, StateError, status.State)
	require.NotEmpty(t, status.LastError)
}

func TestAutoSyncSkipsWhileSyncing(t *testing.T) {
	env := newSyncEnv(t, "alice", "dev-1")

	// Park a manual sync in flight so every auto-sync tick collides
	// with it and must be skipped.
	started := make(chan struct{})
	release := make(chan struct{})
	slowLocal := func(context.Context) ([]byte, uint64, error) {
		close(started)
		<-release
		return nil, 0, nil
	}
	done := make(chan error, 1)
	go func() {
		_, err := env.client.Sync(context.Background(), slowLocal, rejectLoad(t))
		done <- err
	}()
	<-started

	var ticks atomic.Int64
	tickLocal := func(context.Context) ([]byte, uint64, error) {
		ticks.Add(1)
		return nil, 0, nil
	}
	env.client.StartAutoSync(10*time.Millisecond, tickLocal, rejectLoad(t))
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, ticks.Load(), "ticks during an in-flight sync must be skipped")

	close(release)
	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return ticks.Load() > 0 },
		time.Second, 10*time.Millisecond, "auto-sync resumes once the slow sync finishes")
	env.client.StopAutoSync()
}
