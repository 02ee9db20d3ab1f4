package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openLevelForTest(t *testing.T) *LevelStore {
	t.Helper()
	s, err := OpenLevelStore(filepath.Join(t.TempDir(), "colview.leveldb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLevelStorePutGetDelete(t *testing.T) {
	s := openLevelForTest(t)
	require.NoError(t, s.Put([]byte("foo"), []byte("bar")))
	v, err := s.Get([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), v)

	require.NoError(t, s.Delete([]byte("foo")))
	_, err = s.Get([]byte("foo"))
	require.Equal(t, ErrKeyNotFound, err)
}

func TestLevelStoreBatchDeletePrefix(t *testing.T) {
	s := openLevelForTest(t)
	require.NoError(t, s.Put([]byte("a/1"), []byte("x")))
	require.NoError(t, s.Put([]byte("a/2"), []byte("y")))
	require.NoError(t, s.Put([]byte("b/1"), []byte("z")))

	b := NewBatch()
	b.DeletePrefix([]byte("a/"))
	require.NoError(t, s.PutBatch(b))

	_, err := s.Get([]byte("a/1"))
	require.Equal(t, ErrKeyNotFound, err)
	v, err := s.Get([]byte("b/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("z"), v)
}
