package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressedStoreRoundTrip(t *testing.T) {
	s := NewCompressedStore(NewMemoryStore())

	values := [][]byte{
		nil,
		[]byte("x"),
		bytes.Repeat([]byte("abc"), 1000),
		[]byte{0x00, 0x01, 0x02, 0xff, 0xfe},
	}
	for i, v := range values {
		key := []byte{byte(i)}
		require.NoError(t, s.Put(key, v))
		got, err := s.Get(key)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestCompressedStoreSeekDecompresses(t *testing.T) {
	s := NewCompressedStore(NewMemoryStore())
	require.NoError(t, s.Put([]byte("p/1"), bytes.Repeat([]byte("z"), 500)))
	require.NoError(t, s.Put([]byte("p/2"), []byte("small")))

	seen := map[string][]byte{}
	s.Seek(SeekRange{Prefix: []byte("p/")}, func(k, v []byte) bool {
		seen[string(k)] = append([]byte(nil), v...)
		return true
	})
	require.Equal(t, bytes.Repeat([]byte("z"), 500), seen["p/1"])
	require.Equal(t, []byte("small"), seen["p/2"])
}

func TestCompressedStorePutBatch(t *testing.T) {
	s := NewCompressedStore(NewMemoryStore())
	b := NewBatch()
	b.Put([]byte("k1"), bytes.Repeat([]byte("y"), 300))
	b.Put([]byte("k2"), []byte("tiny"))
	require.NoError(t, s.PutBatch(b))

	v, err := s.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte("y"), 300), v)
	v, err = s.Get([]byte("k2"))
	require.NoError(t, err)
	require.Equal(t, []byte("tiny"), v)
}
