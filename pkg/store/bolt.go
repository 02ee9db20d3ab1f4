package store

import (
	"bytes"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("colview")

// BoltStore is a Store backed by a single go.etcd.io/bbolt bucket in one
// file, an embedded-database choice well suited to persistent single-node
// state.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (creating if necessary) a bbolt database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("colview/store: open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("colview/store: init bolt bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get implements Store.
func (s *BoltStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(boltBucket).Get(key)
		if v == nil {
			return ErrKeyNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put implements Store.
func (s *BoltStore) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

// Delete implements Store.
func (s *BoltStore) Delete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	})
}

// PutBatch implements Store. All operations run inside one bbolt
// transaction, so the batch either commits in full or not at all.
func (s *BoltStore) PutBatch(b *Batch) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, op := range b.Ops() {
			switch op.Kind {
			case OpPut:
				if err := bucket.Put(op.Key, op.Value); err != nil {
					return err
				}
			case OpDelete:
				if err := bucket.Delete(op.Key); err != nil {
					return err
				}
			case OpDeletePrefix:
				// Collect first: mutating a bucket while its cursor is
				// walking it is not safe in bbolt.
				var doomed [][]byte
				c := bucket.Cursor()
				for k, _ := c.Seek(op.Key); k != nil && bytes.HasPrefix(k, op.Key); k, _ = c.Next() {
					doomed = append(doomed, append([]byte(nil), k...))
				}
				for _, k := range doomed {
					if err := bucket.Delete(k); err != nil {
						return err
					}
				}
			}
		}
		return nil
	})
}

// Seek implements Store.
func (s *BoltStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	_ = s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		start := append(append([]byte(nil), rng.Prefix...), rng.Start...)
		if rng.Backwards {
			var k, v []byte
			if len(rng.Start) == 0 {
				// Seek past the end of the prefix, then step back.
				upper := prefixUpperBound(rng.Prefix)
				if upper == nil {
					k, v = c.Last()
				} else {
					k, v = c.Seek(upper)
					if k == nil {
						k, v = c.Last()
					} else {
						k, v = c.Prev()
					}
				}
			} else {
				k, v = c.Seek(start)
				if k == nil || !bytes.Equal(k, start) {
					k, v = c.Prev()
				}
			}
			for ; k != nil && bytes.HasPrefix(k, rng.Prefix); k, v = c.Prev() {
				if !f(k, v) {
					return nil
				}
			}
			return nil
		}
		for k, v := c.Seek(start); k != nil && bytes.HasPrefix(k, rng.Prefix); k, v = c.Next() {
			if !f(k, v) {
				return nil
			}
		}
		return nil
	})
}

// Close implements Store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// prefixUpperBound returns the smallest key that is strictly greater than
// every key beginning with prefix, or nil if prefix is all 0xff bytes (no
// finite upper bound exists, and the caller should seek from the end).
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}
