package store

import (
	"bytes"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStore is a Store backed by github.com/syndtr/goleveldb, a second real
// persistent backend exercising the same Store contract as BoltStore —
// callers can swap storage engines behind the same interface.
type LevelStore struct {
	db *leveldb.DB
}

// OpenLevelStore opens (creating if necessary) a LevelDB database at path.
func OpenLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("colview/store: open level store: %w", err)
	}
	return &LevelStore{db: db}, nil
}

// Get implements Store.
func (s *LevelStore) Get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Put implements Store.
func (s *LevelStore) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

// Delete implements Store.
func (s *LevelStore) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

// PutBatch implements Store. DeletePrefix operations are resolved against a
// leveldb snapshot transaction, so the whole batch (reads included) commits
// or aborts as one unit.
func (s *LevelStore) PutBatch(b *Batch) error {
	tr, err := s.db.OpenTransaction()
	if err != nil {
		return fmt.Errorf("colview/store: open level transaction: %w", err)
	}
	for _, op := range b.Ops() {
		switch op.Kind {
		case OpPut:
			if err := tr.Put(op.Key, op.Value, nil); err != nil {
				tr.Discard()
				return err
			}
		case OpDelete:
			if err := tr.Delete(op.Key, nil); err != nil {
				tr.Discard()
				return err
			}
		case OpDeletePrefix:
			it := tr.NewIterator(util.BytesPrefix(op.Key), nil)
			var doomed [][]byte
			for it.Next() {
				doomed = append(doomed, append([]byte(nil), it.Key()...))
			}
			it.Release()
			if err := it.Error(); err != nil {
				tr.Discard()
				return err
			}
			for _, k := range doomed {
				if err := tr.Delete(k, nil); err != nil {
					tr.Discard()
					return err
				}
			}
		}
	}
	return tr.Commit()
}

// Seek implements Store.
func (s *LevelStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	var it iterator.Iterator
	it = s.db.NewIterator(util.BytesPrefix(rng.Prefix), nil)
	defer it.Release()

	start := append(append([]byte(nil), rng.Prefix...), rng.Start...)
	if rng.Backwards {
		ok := it.Last()
		if len(rng.Start) > 0 {
			ok = it.Seek(start)
			if ok && !bytes.Equal(it.Key(), start) {
				ok = it.Prev()
			} else if !ok {
				ok = it.Last()
			}
		}
		for ; ok; ok = it.Prev() {
			if !f(it.Key(), it.Value()) {
				return
			}
		}
		return
	}
	for ok := it.Seek(start); ok; ok = it.Next() {
		if !f(it.Key(), it.Value()) {
			return
		}
	}
}

// Close implements Store.
func (s *LevelStore) Close() error {
	return s.db.Close()
}
