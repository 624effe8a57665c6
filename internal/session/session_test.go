package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/api"
	"tradewatch/internal/credstore"
	"tradewatch/internal/model"
)

var testLog = slog.New(slog.DiscardHandler)

func signToken(t *testing.T, id, name, email string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"id":     id,
		"u_name": name,
		"email":  email,
	}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func newTestStore(t *testing.T, handler http.Handler) (*Store, *credstore.Store) {
	t.Helper()
	if handler == nil {
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	creds, err := credstore.Open(filepath.Join(t.TempDir(), "cred.db"))
	require.NoError(t, err)
	t.Cleanup(func() { creds.Close() })

	client := api.NewClient(srv.URL, api.WithRetries(0, time.Millisecond))
	return NewStore(creds, client, testLog), creds
}

func TestInitializeEmptySlot(t *testing.T) {
	s, _ := newTestStore(t, nil)

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, StateAnonymous, s.State())
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.Identity())
}

func TestInitializeValidToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/42", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"42","u_name":"Ada Lovelace","email":"ada@example.com"}`))
	})
	s, creds := newTestStore(t, handler)
	ctx := context.Background()

	tok := signToken(t, "42", "Ada", "ada@example.com", time.Time{})
	require.NoError(t, creds.SetToken(ctx, tok))

	require.NoError(t, s.Initialize(ctx))
	assert.True(t, s.Authenticated())

	id := s.Identity()
	require.NotNil(t, id)
	assert.Equal(t, "42", id.ID)
	// Enriched name overrides the decoded claim.
	assert.Equal(t, "Ada Lovelace", id.Name)
}

func TestInitializeCorruptTokenActsAsLogout(t *testing.T) {
	s, creds := newTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, creds.SetToken(ctx, "not-a-jwt"))
	require.NoError(t, s.Initialize(ctx))

	assert.Equal(t, StateAnonymous, s.State())
	assert.Nil(t, s.Identity())

	// Slot must be cleared.
	tok, err := creds.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestInitializeExpiredToken(t *testing.T) {
	s, creds := newTestStore(t, nil)
	ctx := context.Background()

	tok := signToken(t, "42", "Ada", "ada@example.com", time.Now().Add(-time.Hour))
	require.NoError(t, creds.SetToken(ctx, tok))

	require.NoError(t, s.Initialize(ctx))
	assert.False(t, s.Authenticated())
}

func TestLoginBadTokenEquivalentToLogout(t *testing.T) {
	s, creds := newTestStore(t, nil)
	ctx := context.Background()

	// Establish a session first so the failed login visibly tears it down.
	good := signToken(t, "42", "Ada", "ada@example.com", time.Time{})
	require.NoError(t, s.Login(ctx, good, nil))
	require.True(t, s.Authenticated())

	err := s.Login(ctx, "bad-token", nil)
	require.ErrorIs(t, err, ErrInvalidCredential)

	assert.False(t, s.Authenticated())
	assert.Nil(t, s.Identity())
	tok, err := creds.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestLoginMergesExtraFields(t *testing.T) {
	s, creds := newTestStore(t, nil)
	ctx := context.Background()

	tok := signToken(t, "42", "", "ada@example.com", time.Time{})
	require.NoError(t, s.Login(ctx, tok, &model.Identity{Name: "Ada"}))

	id := s.Identity()
	require.NotNil(t, id)
	assert.Equal(t, "42", id.ID)
	assert.Equal(t, "Ada", id.Name)

	stored, err := creds.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, stored)
}

func TestEnrichmentFailureNonFatal(t *testing.T) {
	// Users endpoint always 404s; decoded claims must survive.
	s, _ := newTestStore(t, nil)
	ctx := context.Background()

	tok := signToken(t, "42", "Ada", "ada@example.com", time.Time{})
	require.NoError(t, s.Login(ctx, tok, nil))

	assert.True(t, s.Authenticated())
	id := s.Identity()
	require.NotNil(t, id)
	assert.Equal(t, "Ada", id.Name)
}

func TestEnrichmentNeverClobbersWithEmpty(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"42","u_name":"","email":""}`))
	})
	s, _ := newTestStore(t, handler)

	tok := signToken(t, "42", "Ada", "ada@example.com", time.Time{})
	require.NoError(t, s.Login(context.Background(), tok, nil))

	id := s.Identity()
	require.NotNil(t, id)
	assert.Equal(t, "Ada", id.Name)
	assert.Equal(t, "ada@example.com", id.Email)
}

func TestLogoutIdempotent(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()

	tok := signToken(t, "42", "Ada", "ada@example.com", time.Time{})
	require.NoError(t, s.Login(ctx, tok, nil))

	require.NoError(t, s.Logout(ctx))
	assert.Equal(t, StateAnonymous, s.State())

	// Second logout is a no-op and must not publish.
	ch, cancel := s.Subscribe()
	defer cancel()
	require.NoError(t, s.Logout(ctx))
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot after idempotent logout: %+v", snap)
	default:
	}
}

func TestSubscribeSeesTransitions(t *testing.T) {
	s, _ := newTestStore(t, nil)
	ctx := context.Background()

	ch, cancel := s.Subscribe()
	defer cancel()

	tok := signToken(t, "42", "Ada", "ada@example.com", time.Time{})
	require.NoError(t, s.Login(ctx, tok, nil))

	snap := <-ch
	assert.True(t, snap.Authenticated)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "42", snap.Identity.ID)

	require.NoError(t, s.Logout(ctx))
	snap = <-ch
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.Identity)
}
