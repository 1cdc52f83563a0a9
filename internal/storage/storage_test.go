package storage

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAreaRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	a := s.Area("https://example.com")
	require.NoError(t, a.Set("b", "2"))
	require.NoError(t, a.Set("a", "1"))
	require.NoError(t, a.Set("a", "one"))

	v, ok, err := a.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	_, ok, err = a.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := a.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, a.Delete("a"))
	keys, err = a.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestOriginsAreIsolated(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	one := s.Area("https://one.test")
	two := s.Area("https://two.test")
	require.NoError(t, one.Set("k", "1"))
	require.NoError(t, two.Set("k", "2"))

	require.NoError(t, one.Clear())
	_, ok, _ := one.Get("k")
	assert.False(t, ok)
	v, ok, _ := two.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestQuota(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	a := s.Area("https://big.test")
	big := strings.Repeat("x", QuotaBytes/2)
	require.NoError(t, a.Set("one", big))
	assert.ErrorIs(t, a.Set("two", big+big), ErrQuotaExceeded)
	// Overwriting a key does not count its old value.
	require.NoError(t, a.Set("one", big))
}

func TestOpenPersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Local Storage", "localstorage.sqlite3"), s.Path)
	require.NoError(t, s.Area("o").Set("k", "v"))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	v, ok, err := s.Area("o").Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
