package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetPutDelete(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get([]byte("foo"))
	assert.Equal(t, ErrKeyNotFound, err)

	require.NoError(t, s.Put([]byte("foo"), []byte("bar")))
	v, err := s.Get([]byte("foo"))
	require.NoError(t, err)
	assert.Equal(t, []byte("bar"), v)

	require.NoError(t, s.Delete([]byte("foo")))
	_, err = s.Get([]byte("foo"))
	assert.Equal(t, ErrKeyNotFound, err)

	// Double delete is a no-op, not an error.
	require.NoError(t, s.Delete([]byte("foo")))
}

func TestMemoryStoreSeekOrder(t *testing.T) {
	s := NewMemoryStore()
	kvs := []KeyValue{
		{Key: []byte("10"), Value: []byte("a")},
		{Key: []byte("11"), Value: []byte("b")},
		{Key: []byte("20"), Value: []byte("c")},
		{Key: []byte("21"), Value: []byte("d")},
	}
	for _, kv := range kvs {
		require.NoError(t, s.Put(kv.Key, kv.Value))
	}

	var got []string
	s.Seek(SeekRange{Prefix: []byte("1")}, func(k, _ []byte) bool {
		got = append(got, string(k))
		return true
	})
	assert.Equal(t, []string{"10", "11"}, got)

	got = nil
	s.Seek(SeekRange{Prefix: []byte("1"), Backwards: true}, func(k, _ []byte) bool {
		got = append(got, string(k))
		return true
	})
	assert.Equal(t, []string{"11", "10"}, got)
}

func TestMemoryStoreSeekEarlyStop(t *testing.T) {
	s := NewMemoryStore()
	for _, k := range []string{"20", "21", "22"} {
		require.NoError(t, s.Put([]byte(k), []byte(k)))
	}
	var got []string
	s.Seek(SeekRange{Prefix: []byte("2")}, func(k, _ []byte) bool {
		got = append(got, string(k))
		return string(k) != "21"
	})
	assert.Equal(t, []string{"20", "21"}, got)
}

func TestMemoryStorePutBatchAtomicAndDeletePrefix(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Put([]byte("a/1"), []byte("x")))
	require.NoError(t, s.Put([]byte("a/2"), []byte("y")))
	require.NoError(t, s.Put([]byte("b/1"), []byte("z")))

	b := NewBatch()
	b.DeletePrefix([]byte("a/"))
	b.Put([]byte("a/3"), []byte("new"))
	require.NoError(t, s.PutBatch(b))

	_, err := s.Get([]byte("a/1"))
	assert.Equal(t, ErrKeyNotFound, err)
	_, err = s.Get([]byte("a/2"))
	assert.Equal(t, ErrKeyNotFound, err)
	v, err := s.Get([]byte("a/3"))
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
	v, err = s.Get([]byte("b/1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("z"), v)
}

func TestContextDeriveChildIsolation(t *testing.T) {
	s := NewMemoryStore()
	root := NewContext(s)
	childA := root.DeriveChild([]byte{0x01})
	childB := root.DeriveChild([]byte{0x02})

	require.NoError(t, s.Put(childA.DeriveTagIndex(0x00, []byte("k")), []byte("a")))
	require.NoError(t, s.Put(childB.DeriveTagIndex(0x00, []byte("k")), []byte("b")))

	// Same logical short-key "k" under each child resolves to disjoint
	// store keys, so each child only ever sees its own entry.
	keysA := childA.FindKeysByPrefix(childA.DeriveTagPrefix(0x00))
	require.Len(t, keysA, 1)
	assert.Equal(t, []byte("k"), keysA[0])

	keysB := childB.FindKeysByPrefix(childB.DeriveTagPrefix(0x00))
	require.Len(t, keysB, 1)
	assert.Equal(t, []byte("k"), keysB[0])

	assert.NotEqual(t, childA.DeriveTagIndex(0x00, []byte("k")), childB.DeriveTagIndex(0x00, []byte("k")))
}
