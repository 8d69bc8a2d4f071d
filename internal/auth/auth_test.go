package auth

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradterm/tradterm/internal/settings"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	store := settings.New(path, zerolog.Nop())
	require.NoError(t, store.Load())
	return NewStore(store, zerolog.Nop())
}

func TestTokenRoundTrip(t *testing.T) {
	store := newTestStore(t)
	assert.Empty(t, store.Token())

	require.NoError(t, store.SetToken("tok-abc"))
	assert.Equal(t, "tok-abc", store.Token())

	require.NoError(t, store.Purge())
	assert.Empty(t, store.Token())
}

func TestIsAuthError(t *testing.T) {
	authErrors := []string{
		"Unauthorized",
		"invalid token supplied",
		"Auth required for this command",
		"device does not belong to user",
	}
	for _, msg := range authErrors {
		assert.True(t, IsAuthError(msg), msg)
	}

	otherErrors := []string{
		"symbol not found",
		"insufficient balance",
		"rate limited",
	}
	for _, msg := range otherErrors {
		assert.False(t, IsAuthError(msg), msg)
	}
}
