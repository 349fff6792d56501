package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSyncInFlight means a sync was requested while another is running.
// Callers (and the auto-sync ticker) simply skip; attempts never queue.
var ErrSyncInFlight = errors.New("sync: already syncing")

type Outcome string

const (
	OutcomePushed   Outcome = "pushed"
	OutcomePulled   Outcome = "pulled"
	OutcomeInSync   Outcome = "in-sync"
	OutcomeNothing  Outcome = "nothing-to-do"
	OutcomeConflict Outcome = "conflict"
)

// Result tells the caller what a sync did and, after a push, which
// revision to write back into the local vault.
type Result struct {
	Outcome  Outcome
	Revision uint64
}

// GetLocalVault supplies the current encrypted vault bytes and the local
// revision. A zero revision means "no usable local vault yet."
type GetLocalVault func(ctx context.Context) (blob []byte, revision uint64, err error)

// LoadServerVault installs a pulled blob as the local vault at the given
// revision.
type LoadServerVault func(ctx context.Context, blob []byte, revision uint64) error

// Client runs the revision-based sync protocol against one server. The
// state machine refuses overlapping syncs; there is no retry or backoff
// here, a failed call surfaces as the error state and the caller decides.
type Client struct {
	transport *Transport
	tokens    TokenSource
	log       *zap.Logger

	mu        sync.Mutex
	status    Status
	syncing   bool
	observers map[int]func(Status)
	nextObs   int

	autoStop chan struct{}
	autoWG   sync.WaitGroup
}

func New(transport *Transport, tokens TokenSource, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		transport: transport,
		tokens:    tokens,
		log:       log,
		status:    Status{State: StateDisconnected},
		observers: map[int]func(Status){},
	}
}

// Status returns the current snapshot.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// OnStatus registers an observer for every status transition and returns
// its unsubscribe function. Observers run synchronously; keep them cheap.
func (c *Client) OnStatus(fn func(Status)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Sync runs one pass of the sync algorithm. Exactly one of the outcomes
// in Result is reported; a conflict additionally returns *ConflictError
// and parks the state machine in the conflict state until resolved.
func (c *Client) Sync(ctx context.Context, getLocal GetLocalVault, loadServer LoadServerVault) (*Result, error) {
	// Authentication gates everything, and an unauthenticated call must
	// not disturb the state machine.
	if _, err := c.tokens.Token(ctx); err != nil {
		return nil, ErrNotAuthenticated
	}
	if !c.begin() {
		return nil, ErrSyncInFlight
	}

	res, err := c.run(ctx, getLocal, loadServer)
	c.finish(res, err, StateSynced)
	return res, err
}

func (c *Client) run(ctx context.Context, getLocal GetLocalVault, loadServer LoadServerVault) (*Result, error) {
	st, err := c.transport.Status(ctx)
	if err != nil {
		return nil, err
	}
	blob, localRev, err := getLocal(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case !st.HasVault:
		if localRev == 0 {
			return &Result{Outcome: OutcomeNothing}, nil
		}
		// First contact: local becomes the initial server copy.
		pushed, err := c.transport.Push(ctx, blob, localRev)
		if err != nil {
			return nil, err
		}
		c.log.Info("pushed initial vault", zap.Uint64("revision", pushed.Revision))
		return &Result{Outcome: OutcomePushed, Revision: pushed.Revision}, nil

	case localRev == 0, st.Revision > localRev:
		// Server is authoritative; adopt its copy and revision.
		remote, err := c.transport.Pull(ctx)
		if err != nil {
			return nil, err
		}
		if err := loadServer(ctx, remote.Blob, remote.Revision); err != nil {
			return nil, err
		}
		c.log.Info("pulled server vault",
			zap.Uint64("revision", remote.Revision),
			zap.String("device", remote.UpdatedByDevice))
		return &Result{Outcome: OutcomePulled, Revision: remote.Revision}, nil

	case st.Revision == localRev:
		return &Result{Outcome: OutcomeInSync, Revision: localRev}, nil

	default:
		// Local is ahead: push against the server's last known revision.
		pushed, err := c.transport.Push(ctx, blob, st.Revision)
		if err != nil {
			return nil, err
		}
		c.log.Info("pushed local vault", zap.Uint64("revision", pushed.Revision))
		return &Result{Outcome: OutcomePushed, Revision: pushed.Revision}, nil
	}
}

// Push uploads the given blob claiming baseRevision, outside a full sync
// pass. Conflicts park the state machine the same way Sync does.
func (c *Client) Push(ctx context.Context, blob []byte, baseRevision uint64) (*Result, error) {
	if _, err := c.tokens.Token(ctx); err != nil {
		return nil, ErrNotAuthenticated
	}
	if !c.begin() {
		return nil, ErrSyncInFlight
	}
	pushed, err := c.transport.Push(ctx, blob, baseRevision)
	var res *Result
	if err == nil {
		res = &Result{Outcome: OutcomePushed, Revision: pushed.Revision}
	}
	c.finish(res, err, StateSynced)
	return res, err
}

// Pull fetches the server copy. A successful pull is also the
// "keep server" conflict resolution, so it clears any parked conflict.
func (c *Client) Pull(ctx context.Context) (*RemoteVault, error) {
	if _, err := c.tokens.Token(ctx); err != nil {
		return nil, ErrNotAuthenticated
	}
	if !c.begin() {
		return nil, ErrSyncInFlight
	}
	remote, err := c.transport.Pull(ctx)
	var res *Result
	if err == nil {
		res = &Result{Outcome: OutcomePulled, Revision: remote.Revision}
	}
	c.finish(res, err, StateIdle)
	if err != nil {
		return nil, err
	}
	return &remote, nil
}

// ForceOverwrite replaces the server record regardless of revision. This
// is the "keep local" conflict resolution; it always clears the conflict.
func (c *Client) ForceOverwrite(ctx context.Context, blob []byte) (*Result, error) {
	if _, err := c.tokens.Token(ctx); err != nil {
		return nil, ErrNotAuthenticated
	}
	if !c.begin() {
		return nil, ErrSyncInFlight
	}
	forced, err := c.transport.ForceOverwrite(ctx, blob)
	var res *Result
	if err == nil {
		c.log.Warn("force-overwrote server vault", zap.Uint64("revision", forced.Revision))
		res = &Result{Outcome: OutcomePushed, Revision: forced.Revision}
	}
	c.finish(res, err, StateIdle)
	return res, err
}

// StartAutoSync launches a ticker that re-runs Sync at the given
// interval. A tick that lands while a sync is in flight is skipped
// entirely; ticks never queue or overlap.
func (c *Client) StartAutoSync(interval time.Duration, getLocal GetLocalVault, loadServer LoadServerVault) {
	c.mu.Lock()
	if c.autoStop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	c.autoStop = stop
	c.mu.Unlock()

	c.autoWG.Add(1)
	go func() {
		defer c.autoWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				_, err := c.Sync(ctx, getLocal, loadServer)
				cancel()
				if errors.Is(err, ErrSyncInFlight) {
					continue
				}
				if err != nil && !errors.Is(err, ErrNotAuthenticated) {
					c.log.Debug("auto-sync attempt failed", zap.Error(err))
				}
			}
		}
	}()
}

func (c *Client) StopAutoSync() {
	c.mu.Lock()
	stop := c.autoStop
	c.autoStop = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
		c.autoWG.Wait()
	}
}

// begin flips the machine into the syncing state unless a sync is
// already running.
func (c *Client) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.syncing {
		return false
	}
	c.syncing = true
	c.setStateLocked(func(s *Status) {
		s.State = StateSyncing
		s.LastError = ""
	})
	return true
}

// finish records the terminal state of one attempt and notifies
// observers. Conflict and error both park until the next attempt or an
// explicit resolution; a full sync pass settles into synced, a
// standalone resolution (pull, force overwrite) into idle.
func (c *Client) finish(res *Result, err error, settled State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncing = false

	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		cf := conflict.Conflict
		c.setStateLocked(func(s *Status) {
			s.State = StateConflict
			s.Conflict = &cf
		})
	case err != nil:
		c.setStateLocked(func(s *Status) {
			s.State = StateError
			s.LastError = err.Error()
		})
	default:
		now := time.Now().UTC()
		c.setStateLocked(func(s *Status) {
			s.State = settled
			if settled == StateSynced {
				s.LastSyncAt = now
			}
			s.Conflict = nil
			s.LastError = ""
		})
	}
}

func (c *Client) setStateLocked(mutate func(*Status)) {
	mutate(&c.status)
	snapshot := c.status
	for _, fn := range c.observers {
		fn(snapshot)
	}
}
