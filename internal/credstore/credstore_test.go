package credstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cred.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEmptySlot(t *testing.T) {
	s := openTemp(t)

	tok, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestSetAndGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.SetToken(ctx, "tok-1"))
	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// Full overwrite, no merge.
	require.NoError(t, s.SetToken(ctx, "tok-2"))
	tok, err = s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
}

func TestClearIdempotent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.SetToken(ctx, "tok"))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cred.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetToken(ctx, "tok-persist"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-persist", tok)
}
