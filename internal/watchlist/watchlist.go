// Package watchlist reconciles the user's remote watchlist membership
// with the instrument directory into the materialized list shown in the
// UI, and mediates all watchlist mutations.
package watchlist

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"tradewatch/internal/api"
	"tradewatch/internal/directory"
	"tradewatch/internal/model"
	"tradewatch/internal/pubsub"
	"tradewatch/internal/session"
)

var (
	// ErrNotAuthenticated is returned by mutations attempted without a
	// session. No network call is made.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrPending is returned when a mutation for the same symbol is
	// already in flight. Serializing same-symbol operations this way
	// prevents a stale response from resurrecting a just-removed symbol.
	ErrPending = errors.New("operation already in flight for symbol")
)

// Snapshot is the immutable view published to subscribers. Entries is
// replaced wholesale on every change; consumers never observe a partially
// reconciled list.
type Snapshot struct {
	Entries []model.Instrument
	Loading bool
	Err     error
}

// Synchronizer owns the materialized watchlist.
type Synchronizer struct {
	client *api.Client
	sess   *session.Store
	dir    *directory.Cache
	log    *slog.Logger
	bus    *pubsub.Broadcaster[Snapshot]

	mu      sync.Mutex
	entries []model.Instrument
	pending map[string]struct{}
	gen     uint64
	loading bool
	err     error
}

// NewSynchronizer creates a synchronizer bound to the given session and
// directory stores.
func NewSynchronizer(client *api.Client, sess *session.Store, dir *directory.Cache, log *slog.Logger) *Synchronizer {
	return &Synchronizer{
		client:  client,
		sess:    sess,
		dir:     dir,
		log:     log,
		bus:     pubsub.New[Snapshot](),
		pending: make(map[string]struct{}),
	}
}

// Run subscribes to session and directory changes and re-reconciles on
// every change. It blocks until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) {
	sessCh, cancelSess := s.sess.Subscribe()
	defer cancelSess()
	dirCh, cancelDir := s.dir.Subscribe()
	defer cancelDir()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sessCh:
		case <-dirCh:
		}

		s.invalidate()
		if err := s.Refresh(ctx); err != nil {
			s.log.Warn("watchlist refresh failed", "err", err)
		}
	}
}

// invalidate bumps the generation so any in-flight refresh result is
// discarded instead of committed.
func (s *Synchronizer) invalidate() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

// Refresh recomputes the materialized list. When unauthenticated or the
// directory has not loaded yet, the list is cleared. Memberships whose
// symbol is missing from the directory are dropped silently. A refresh
// whose session generation or user changed while the fetch was in flight
// discards its result.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	id := s.sess.Identity()
	if !s.sess.Authenticated() || id == nil || !s.dir.Loaded() {
		s.clear()
		return nil
	}

	s.mu.Lock()
	startGen := s.gen
	s.loading = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.bus.Publish(snap)

	memberships, err := s.client.GetWatchlist(ctx, id.ID)

	s.mu.Lock()
	s.loading = false
	if s.gen != startGen || !s.sameUserLocked(id.ID) {
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.log.Debug("discarding stale watchlist refresh", "user_id", id.ID)
		s.bus.Publish(snap)
		return nil
	}
	if err != nil {
		s.err = err
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.bus.Publish(snap)
		return err
	}

	entries := make([]model.Instrument, 0, len(memberships))
	seen := make(map[string]struct{}, len(memberships))
	for _, m := range memberships {
		sym := strings.ToUpper(m.Symbol)
		if _, dup := seen[sym]; dup {
			continue
		}
		inst, ok := s.dir.Get(sym)
		if !ok {
			// Dangling remote reference; not an error.
			continue
		}
		seen[sym] = struct{}{}
		entries = append(entries, inst)
	}

	s.entries = entries
	s.err = nil
	snap = s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(snap)
	return nil
}

// Add puts an instrument on the remote watchlist and, on success, merges
// it into the local list without waiting for a full refresh. On any
// failure local state is unchanged.
func (s *Synchronizer) Add(ctx context.Context, inst model.Instrument) error {
	id := s.sess.Identity()
	if !s.sess.Authenticated() || id == nil {
		return ErrNotAuthenticated
	}

	inst.Symbol = strings.ToUpper(inst.Symbol)
	if err := s.begin(inst.Symbol); err != nil {
		return err
	}
	defer s.end(inst.Symbol)

	if err := s.client.AddToWatchlist(ctx, id.ID, inst.Symbol); err != nil {
		s.log.Warn("watchlist add rejected", "symbol", inst.Symbol, "err", err)
		return err
	}

	s.mu.Lock()
	if !s.sameUserLocked(id.ID) {
		s.mu.Unlock()
		return nil
	}
	if s.containsLocked(inst.Symbol) {
		s.mu.Unlock()
		return nil
	}
	entries := make([]model.Instrument, len(s.entries), len(s.entries)+1)
	copy(entries, s.entries)
	s.entries = append(entries, inst)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(snap)
	return nil
}

// Remove deletes a symbol from the remote watchlist and, on success,
// filters it out of the local list. On any failure local state is
// unchanged.
func (s *Synchronizer) Remove(ctx context.Context, symbol string) error {
	id := s.sess.Identity()
	if !s.sess.Authenticated() || id == nil {
		return ErrNotAuthenticated
	}

	symbol = strings.ToUpper(symbol)
	if err := s.begin(symbol); err != nil {
		return err
	}
	defer s.end(symbol)

	if err := s.client.RemoveFromWatchlist(ctx, id.ID, symbol); err != nil {
		s.log.Warn("watchlist remove rejected", "symbol", symbol, "err", err)
		return err
	}

	s.mu.Lock()
	if !s.sameUserLocked(id.ID) {
		s.mu.Unlock()
		return nil
	}
	entries := make([]model.Instrument, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Symbol != symbol {
			entries = append(entries, e)
		}
	}
	s.entries = entries
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(snap)
	return nil
}

// Contains reports whether the symbol is in the materialized list.
// Exact match on the stored (upper-case) symbol form.
func (s *Synchronizer) Contains(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.containsLocked(symbol)
}

// Entries returns a copy of the materialized list.
func (s *Synchronizer) Entries() []model.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Instrument, len(s.entries))
	copy(out, s.entries)
	return out
}

// Err returns the most recent refresh error, if any.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe returns a snapshot stream and a cancel function.
func (s *Synchronizer) Subscribe() (<-chan Snapshot, func()) {
	return s.bus.Subscribe(4)
}

// begin registers a per-symbol in-flight mutation.
func (s *Synchronizer) begin(symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[symbol]; busy {
		return ErrPending
	}
	s.pending[symbol] = struct{}{}
	return nil
}

func (s *Synchronizer) end(symbol string) {
	s.mu.Lock()
	delete(s.pending, symbol)
	s.mu.Unlock()
}

// clear empties the materialized list (logout or directory not ready).
func (s *Synchronizer) clear() {
	s.mu.Lock()
	s.entries = nil
	s.err = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(snap)
}

// sameUserLocked guards commits against a session change that happened
// while a network call was in flight.
func (s *Synchronizer) sameUserLocked(userID string) bool {
	id := s.sess.Identity()
	return s.sess.Authenticated() && id != nil && id.ID == userID
}

func (s *Synchronizer) containsLocked(symbol string) bool {
	for _, e := range s.entries {
		if e.Symbol == symbol {
			return true
		}
	}
	return false
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	entries := make([]model.Instrument, len(s.entries))
	copy(entries, s.entries)
	return Snapshot{Entries: entries, Loading: s.loading, Err: s.err}
}
