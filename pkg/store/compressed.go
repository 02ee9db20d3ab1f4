package store

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4"
)

// CompressedStore wraps a Store and compresses values with lz4 before they
// reach the backend, decompressing on read. This is a storage-layer
// convenience, not compaction of the underlying store: it shrinks what
// crosses the boundary to the backend, it does not rewrite the backend's
// own on-disk layout.
type CompressedStore struct {
	Store
}

// NewCompressedStore wraps s so that values are lz4-compressed in flight.
func NewCompressedStore(s Store) *CompressedStore {
	return &CompressedStore{Store: s}
}

func compress(value []byte) []byte {
	buf := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(value)))
	n := binary.PutUvarint(buf, uint64(len(value)))
	var ht [1 << 16]int
	m, err := lz4.CompressBlock(value, buf[n:], ht[:])
	if err != nil || m == 0 {
		// Incompressible or too small to benefit: store raw behind a
		// leading 0 marker byte (compressed values carry a leading 1), so
		// decompress can tell the two cases apart.
		out := make([]byte, 1+len(value))
		out[0] = 0
		copy(out[1:], value)
		return out
	}
	out := make([]byte, 1+n+m)
	out[0] = 1
	copy(out[1:], buf[:n+m])
	return out
}

func decompress(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return stored, nil
	}
	marker, body := stored[0], stored[1:]
	if marker == 0 {
		return append([]byte(nil), body...), nil
	}
	origLen, n := binary.Uvarint(body)
	if n <= 0 {
		return nil, fmt.Errorf("colview/store: corrupt compressed value")
	}
	dst := make([]byte, origLen)
	m, err := lz4.UncompressBlock(body[n:], dst)
	if err != nil {
		return nil, fmt.Errorf("colview/store: lz4 decompress: %w", err)
	}
	return dst[:m], nil
}

// Get implements Store.
func (s *CompressedStore) Get(key []byte) ([]byte, error) {
	v, err := s.Store.Get(key)
	if err != nil {
		return nil, err
	}
	return decompress(v)
}

// Put implements Store.
func (s *CompressedStore) Put(key, value []byte) error {
	return s.Store.Put(key, compress(value))
}

// PutBatch implements Store. Values in Put operations are compressed before
// the batch reaches the backend; Delete and DeletePrefix operations are
// untouched, since they address keys, not values.
func (s *CompressedStore) PutBatch(b *Batch) error {
	out := NewBatch()
	for _, op := range b.Ops() {
		switch op.Kind {
		case OpPut:
			out.Put(op.Key, compress(op.Value))
		case OpDelete:
			out.Delete(op.Key)
		case OpDeletePrefix:
			out.DeletePrefix(op.Key)
		}
	}
	return s.Store.PutBatch(out)
}

// Seek implements Store, decompressing each value before invoking f.
func (s *CompressedStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.Store.Seek(rng, func(k, v []byte) bool {
		dv, err := decompress(v)
		if err != nil {
			return false
		}
		return f(k, dv)
	})
}
