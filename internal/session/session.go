// Package session owns the single source of truth for authentication
// state: the persisted credential, the decoded identity, and the
// authenticated flag. All other components read identity through it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tradewatch/internal/api"
	"tradewatch/internal/credstore"
	"tradewatch/internal/model"
	"tradewatch/internal/pubsub"
)

// ErrInvalidCredential marks a credential that failed to decode or has
// expired. The store treats it as a forced logout; it is returned to the
// caller of Login for diagnostics only.
var ErrInvalidCredential = errors.New("invalid credential")

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAnonymous
	StateAuthenticated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "uninitialized"
	}
}

// Snapshot is the immutable view published to subscribers on every state
// change.
type Snapshot struct {
	State         State
	Authenticated bool
	Identity      *model.Identity // nil when anonymous
}

// Store maintains authentication state backed by the credential slot and
// the dashboard API.
type Store struct {
	creds  *credstore.Store
	client *api.Client
	log    *slog.Logger
	bus    *pubsub.Broadcaster[Snapshot]

	mu       sync.RWMutex
	state    State
	identity *model.Identity
}

// NewStore creates a session store. It starts uninitialized; call
// Initialize to load any persisted credential.
func NewStore(creds *credstore.Store, client *api.Client, log *slog.Logger) *Store {
	return &Store{
		creds:  creds,
		client: client,
		log:    log,
		bus:    pubsub.New[Snapshot](),
		state:  StateUninitialized,
	}
}

// tokenClaims are the JWT claims the backend embeds in issued tokens.
type tokenClaims struct {
	jwt.RegisteredClaims
	ID    string `json:"id"`
	Name  string `json:"u_name"`
	Email string `json:"email"`
}

// decodeToken extracts the identity from a bearer token without verifying
// the signature — the client holds no signing secret; the server remains
// the authority. Expired tokens are rejected.
func decodeToken(token string) (model.Identity, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return model.Identity{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if claims.ID == "" {
		return model.Identity{}, fmt.Errorf("%w: token has no user id", ErrInvalidCredential)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
		return model.Identity{}, fmt.Errorf("%w: token expired", ErrInvalidCredential)
	}
	return model.Identity{ID: claims.ID, Name: claims.Name, Email: claims.Email}, nil
}

// Initialize reads the persisted credential and settles the session into
// anonymous or authenticated. A corrupt or expired credential is cleared
// and treated as anonymous; the error never reaches the caller.
func (s *Store) Initialize(ctx context.Context) error {
	s.setState(StateLoading, nil)

	token, err := s.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("reading credential slot: %w", err)
	}
	if token == "" {
		s.setState(StateAnonymous, nil)
		return nil
	}

	identity, err := decodeToken(token)
	if err != nil {
		s.log.Warn("persisted credential invalid, clearing", "err", err)
		if clearErr := s.creds.Clear(ctx); clearErr != nil {
			s.log.Error("clearing invalid credential", "err", clearErr)
		}
		s.client.ClearToken()
		s.setState(StateAnonymous, nil)
		return nil
	}

	s.client.SetToken(token)
	s.setState(StateAuthenticated, &identity)

	// Best effort; decoded claims stay authoritative on failure.
	s.enrich(ctx, identity.ID)
	return nil
}

// Login persists the credential, derives the identity from it (decoded
// claims merged with any caller-supplied fields), and flips the session to
// authenticated immediately. Enrichment from the users endpoint runs after
// the flag flips and never gates it. A token that fails to decode behaves
// exactly like Logout and returns ErrInvalidCredential.
func (s *Store) Login(ctx context.Context, token string, extra *model.Identity) error {
	identity, err := decodeToken(token)
	if err != nil {
		s.log.Warn("login with undecodable token", "err", err)
		if logoutErr := s.Logout(ctx); logoutErr != nil {
			s.log.Error("logout after failed decode", "err", logoutErr)
		}
		return err
	}
	if extra != nil {
		identity = identity.Merge(*extra)
	}

	if err := s.creds.SetToken(ctx, token); err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}

	s.client.SetToken(token)
	s.setState(StateAuthenticated, &identity)

	s.enrich(ctx, identity.ID)
	return nil
}

// LoginWithPassword exchanges email/password for a token at the login
// endpoint, then establishes the session from the returned token and user
// record.
func (s *Store) LoginWithPassword(ctx context.Context, email, password string) error {
	resp, err := s.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.Login(ctx, resp.Token, &resp.User)
}

// Logout clears the persisted credential and identity. Calling it when
// already logged out is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.RLock()
	alreadyOut := s.state == StateAnonymous && s.identity == nil
	s.mu.RUnlock()
	if alreadyOut {
		return nil
	}

	if err := s.creds.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credential slot: %w", err)
	}
	s.client.ClearToken()
	s.setState(StateAnonymous, nil)
	return nil
}

// enrich fetches the full identity record and merges it over the decoded
// claims. Errors are logged and swallowed; a logout (or re-login as a
// different user) during the fetch discards the result.
func (s *Store) enrich(ctx context.Context, userID string) {
	full, err := s.client.GetUser(ctx, userID)
	if err != nil {
		s.log.Warn("identity enrichment failed", "user_id", userID, "err", err)
		return
	}

	s.mu.Lock()
	if s.state != StateAuthenticated || s.identity == nil || s.identity.ID != userID {
		s.mu.Unlock()
		return
	}
	merged := s.identity.Merge(*full)
	s.identity = &merged
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(snap)
}

// Identity returns a copy of the current identity, or nil when anonymous.
// It never blocks on network activity.
func (s *Store) Identity() *model.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Authenticated reports whether a user is logged in.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateAuthenticated
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe returns a snapshot stream and a cancel function.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	return s.bus.Subscribe(4)
}

func (s *Store) setState(state State, identity *model.Identity) {
	s.mu.Lock()
	s.state = state
	s.identity = identity
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.bus.Publish(snap)
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:         s.state,
		Authenticated: s.state == StateAuthenticated,
	}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}
