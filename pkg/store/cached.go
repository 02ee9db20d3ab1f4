package store

import (
	lru "github.com/hashicorp/golang-lru"
)

// CachedStore wraps a Store with a bounded read-through cache over Get,
// cutting down repeated reads of hot sub-view metadata (e.g. a collection's
// TAG_HASH entry, re-read on every Load) without changing write semantics:
// every write invalidates the affected key up front.
type CachedStore struct {
	Store
	cache *lru.Cache
}

// NewCachedStore wraps s with an LRU cache holding up to size entries.
func NewCachedStore(s Store, size int) (*CachedStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: s, cache: c}, nil
}

// Get implements Store.
func (s *CachedStore) Get(key []byte) ([]byte, error) {
	if v, ok := s.cache.Get(string(key)); ok {
		if v == nil {
			return nil, ErrKeyNotFound
		}
		return v.([]byte), nil
	}
	v, err := s.Store.Get(key)
	if err == ErrKeyNotFound {
		s.cache.Add(string(key), nil)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.cache.Add(string(key), v)
	return v, nil
}

// Put implements Store.
func (s *CachedStore) Put(key, value []byte) error {
	s.cache.Remove(string(key))
	return s.Store.Put(key, value)
}

// Delete implements Store.
func (s *CachedStore) Delete(key []byte) error {
	s.cache.Remove(string(key))
	return s.Store.Delete(key)
}

// PutBatch implements Store. The cache is invalidated for every touched key
// before the underlying batch is applied.
func (s *CachedStore) PutBatch(b *Batch) error {
	for _, op := range b.Ops() {
		switch op.Kind {
		case OpPut, OpDelete:
			s.cache.Remove(string(op.Key))
		case OpDeletePrefix:
			s.cache.Purge()
		}
	}
	return s.Store.PutBatch(b)
}
