package settings

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := New(path, zerolog.Nop())
	require.NoError(t, s.Load())

	require.NoError(t, s.Set("theme", "dark"))
	require.NoError(t, s.Set("accountOrder", []string{"main", "hedge"}))

	assert.Equal(t, "dark", s.GetString("theme", "light"))

	var order []string
	ok, err := s.Get("accountOrder", &order)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"main", "hedge"}, order)

	// Missing keys fall back.
	assert.Equal(t, "light", s.GetString("missing", "light"))
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	s1 := New(path, zerolog.Nop())
	require.NoError(t, s1.Load())
	require.NoError(t, s1.Set("theme", "dark"))

	s2 := New(path, zerolog.Nop())
	require.NoError(t, s2.Load())
	assert.Equal(t, "dark", s2.GetString("theme", "light"))
}

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"), zerolog.Nop())
	require.NoError(t, s.Load())
	assert.Empty(t, s.Keys())
}

func TestStore_Delete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	s := New(path, zerolog.Nop())
	require.NoError(t, s.Load())

	require.NoError(t, s.Set("theme", "dark"))
	require.NoError(t, s.Delete("theme"))
	require.NoError(t, s.Delete("theme")) // absent key is fine

	s2 := New(path, zerolog.Nop())
	require.NoError(t, s2.Load())
	assert.Equal(t, "light", s2.GetString("theme", "light"))
}
