package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// countingStore counts Get calls, to prove CachedStore actually shortcuts
// repeated reads instead of only wrapping the interface.
type countingStore struct {
	Store
	gets int
}

func (c *countingStore) Get(key []byte) ([]byte, error) {
	c.gets++
	return c.Store.Get(key)
}

func TestCachedStoreShortcutsRepeatedReads(t *testing.T) {
	inner := &countingStore{Store: NewMemoryStore()}
	require.NoError(t, inner.Put([]byte("k"), []byte("v")))

	cs, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		v, err := cs.Get([]byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("v"), v)
	}
	require.Equal(t, 1, inner.gets)
}

func TestCachedStoreInvalidatesOnWrite(t *testing.T) {
	inner := &countingStore{Store: NewMemoryStore()}
	cs, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	require.NoError(t, cs.Put([]byte("k"), []byte("v1")))
	v, err := cs.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, cs.Put([]byte("k"), []byte("v2")))
	v, err = cs.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)
}

func TestCachedStoreCachesNotFound(t *testing.T) {
	inner := &countingStore{Store: NewMemoryStore()}
	cs, err := NewCachedStore(inner, 16)
	require.NoError(t, err)

	_, err = cs.Get([]byte("missing"))
	require.Equal(t, ErrKeyNotFound, err)
	_, err = cs.Get([]byte("missing"))
	require.Equal(t, ErrKeyNotFound, err)
	require.Equal(t, 1, inner.gets)
}
