// Package collection implements the byte collection engine: a map from
// opaque byte short-keys to homogeneous sub-views, with pending-update
// buffering, lazy load, deterministic ordered hashing, and
// clone-to-snapshot. It is the core the typed collection wrappers and the
// matching-engine collaborator build on.
package collection

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nspcc-dev/colview/pkg/store"
	"github.com/nspcc-dev/colview/pkg/views"
)

// Key-tag reservation: three tag bytes partition the records owned by one
// collection instance so that a sub-view may itself be a collection
// without key collision.
const (
	// TagIndex prefixes the empty marker that proves an entry exists.
	TagIndex byte = iota
	// TagSubview prefixes the keys owned by an entry's sub-view.
	TagSubview
	// TagHash prefixes the collection's stored hash.
	TagHash
)

// Loader constructs a fresh sub-view backed by ctx. It plays the role of
// the Rust associated function `W::load`, which Go's generics have no
// direct equivalent for.
type Loader[W views.Hashable] func(ctx *store.Context) (W, error)

// ByteCollectionView is the core byte-keyed, lazily-loaded collection
// engine every typed and custom-ordered collection in this module wraps.
type ByteCollectionView[W views.Hashable] struct {
	ctx  *store.Context
	load Loader[W]

	mu                 sync.Mutex
	deleteStorageFirst bool
	updates            map[string]views.Update[W]
	storedHash         []byte
	cachedHash         []byte

	log *zap.Logger
}

// SetLogger attaches log for this collection's own Debug/Warn diagnostics
// (flush at Debug, rollback-after-mutation at Warn). Load writes its Debug
// line before a logger can be attached, so that line always goes to the
// no-op logger. A collection with no logger attached stays silent.
func (c *ByteCollectionView[W]) SetLogger(log *zap.Logger) {
	c.log = log
}

func (c *ByteCollectionView[W]) logger() *zap.Logger {
	if c.log == nil {
		return zap.NewNop()
	}
	return c.log
}

// New constructs an empty, unloaded collection view over ctx. Most callers
// should use Load instead, which calls New and then reads TAG_HASH; a view
// built by New alone starts with no stored hash.
func New[W views.Hashable](ctx *store.Context, load Loader[W]) *ByteCollectionView[W] {
	return &ByteCollectionView[W]{
		ctx:     ctx,
		load:    load,
		updates: make(map[string]views.Update[W]),
	}
}

// Load reads TAG_HASH; all other data is read lazily.
func Load[W views.Hashable](ctx *store.Context, load Loader[W]) (*ByteCollectionView[W], error) {
	c := New(ctx, load)
	v, ok, err := ctx.ReadValue(ctx.DeriveTagPrefix(TagHash))
	if err != nil {
		return nil, fmt.Errorf("colview/collection: load: %w", err)
	}
	if ok {
		c.storedHash = v
		c.cachedHash = v
	}
	c.logger().Debug("collection loaded", zap.Binary("base_prefix", ctx.BasePrefix()), zap.Bool("had_stored_hash", ok))
	return c, nil
}

// Context implements views.View.
func (c *ByteCollectionView[W]) Context() *store.Context {
	return c.ctx
}

func (c *ByteCollectionView[W]) subviewSuffix(shortKey []byte) []byte {
	suf := make([]byte, 0, 1+len(shortKey))
	suf = append(suf, TagSubview)
	suf = append(suf, shortKey...)
	return suf
}

func (c *ByteCollectionView[W]) loadChild(shortKey []byte) (W, error) {
	childCtx := c.ctx.DeriveChild(c.subviewSuffix(shortKey))
	return c.load(childCtx)
}

// LoadEntryMut ensures a Set entry exists for shortKey and returns
// exclusive access to it. It invalidates the collection's cached hash; a
// sub-view mutated through a handle obtained before the last Hash call is
// only reflected in Hash after LoadEntryMut is called for that key again.
func (c *ByteCollectionView[W]) LoadEntryMut(shortKey []byte) (W, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadEntryMutLocked(shortKey)
}

func (c *ByteCollectionView[W]) loadEntryMutLocked(shortKey []byte) (W, error) {
	c.cachedHash = nil
	key := string(shortKey)
	var zero W

	if u, ok := c.updates[key]; ok {
		if u.Kind == views.UpdateSet {
			return u.View, nil
		}
		view, err := c.loadChild(shortKey)
		if err != nil {
			return zero, err
		}
		view.Clear()
		c.updates[key] = views.Set(view)
		return view, nil
	}

	view, err := c.loadChild(shortKey)
	if err != nil {
		return zero, err
	}
	if c.deleteStorageFirst {
		view.Clear()
	}
	c.updates[key] = views.Set(view)
	return view, nil
}

// LoadEntryOrInsert has the same effect as LoadEntryMut; Go has no
// immutable-borrow distinction to make the "or_insert" read-only variant
// meaningfully different, so it is kept purely for call-site clarity about
// intent.
func (c *ByteCollectionView[W]) LoadEntryOrInsert(shortKey []byte) (W, error) {
	return c.LoadEntryMut(shortKey)
}

// TryLoadEntry is read-only. It returns ok=false if the entry is Removed,
// or absent from updates and (delete_storage_first or TAG_INDEX‖short_key
// is not present in storage). It fails with views.ErrCannotAcquireEntry if
// a concurrent mutable borrow already holds the updates map.
func (c *ByteCollectionView[W]) TryLoadEntry(shortKey []byte) (view W, ok bool, err error) {
	if !c.mu.TryLock() {
		return view, false, views.ErrCannotAcquireEntry
	}
	defer c.mu.Unlock()

	key := string(shortKey)
	if u, present := c.updates[key]; present {
		if u.Kind == views.UpdateRemoved {
			return view, false, nil
		}
		return u.View, true, nil
	}

	indexKey := c.ctx.DeriveTagIndex(TagIndex, shortKey)
	if c.deleteStorageFirst {
		return view, false, nil
	}
	has, err := c.ctx.ContainsKey(indexKey)
	if err != nil {
		return view, false, err
	}
	if !has {
		return view, false, nil
	}
	loaded, err := c.loadChild(shortKey)
	if err != nil {
		return view, false, err
	}
	c.updates[key] = views.Set(loaded)
	return loaded, true, nil
}

// ResetEntryToDefault is equivalent to LoadEntryMut followed by Clear on
// the sub-view.
func (c *ByteCollectionView[W]) ResetEntryToDefault(shortKey []byte) error {
	view, err := c.LoadEntryMut(shortKey)
	if err != nil {
		return err
	}
	view.Clear()
	return nil
}

// ContainsKey checks updates first, then storage.
func (c *ByteCollectionView[W]) ContainsKey(shortKey []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u, ok := c.updates[string(shortKey)]; ok {
		return u.Kind == views.UpdateSet, nil
	}
	if c.deleteStorageFirst {
		return false, nil
	}
	return c.ctx.ContainsKey(c.ctx.DeriveTagIndex(TagIndex, shortKey))
}

// RemoveEntry marks shortKey as removed. The Removed marker is recorded
// whether or not shortKey is currently present.
func (c *ByteCollectionView[W]) RemoveEntry(shortKey []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedHash = nil
	key := string(shortKey)
	if c.deleteStorageFirst {
		// Optimization: no need to mark shortKey for deletion, since the
		// whole prefix is going to be wiped at flush regardless.
		delete(c.updates, key)
		return
	}
	c.updates[key] = views.Removed[W]()
}

type pendingEntry[W views.Hashable] struct {
	key    []byte
	update views.Update[W]
}

func (c *ByteCollectionView[W]) sortedUpdatesLocked() []pendingEntry[W] {
	out := make([]pendingEntry[W], 0, len(c.updates))
	for k, u := range c.updates {
		out = append(out, pendingEntry[W]{key: []byte(k), update: u})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].key, out[j].key) < 0 })
	return out
}

// ForEachKeyWhile visits short-keys in lexicographic order, merging stored
// entries with pending updates, stopping as soon as f returns false (or an
// error).
func (c *ByteCollectionView[W]) ForEachKeyWhile(f func(shortKey []byte) (bool, error)) error {
	c.mu.Lock()
	pending := c.sortedUpdatesLocked()
	deleteFirst := c.deleteStorageFirst
	ctx := c.ctx
	c.mu.Unlock()

	if deleteFirst {
		for _, e := range pending {
			if e.update.Kind != views.UpdateSet {
				continue
			}
			cont, err := f(e.key)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	}

	stored := ctx.FindKeysByPrefix(ctx.DeriveTagPrefix(TagIndex))
	i, j := 0, 0
	for i < len(stored) || j < len(pending) {
		var emit []byte
		var kind views.UpdateKind = views.UpdateSet
		switch {
		case i < len(stored) && j < len(pending):
			cmp := bytes.Compare(stored[i], pending[j].key)
			switch {
			case cmp == 0:
				emit, kind = pending[j].key, pending[j].update.Kind
				i++
				j++
			case cmp < 0:
				emit = stored[i]
				i++
			default:
				emit, kind = pending[j].key, pending[j].update.Kind
				j++
			}
		case i < len(stored):
			emit = stored[i]
			i++
		default:
			emit, kind = pending[j].key, pending[j].update.Kind
			j++
		}
		if kind != views.UpdateSet {
			continue
		}
		cont, err := f(emit)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// ForEachKey visits every live short-key in lexicographic order.
func (c *ByteCollectionView[W]) ForEachKey(f func(shortKey []byte) error) error {
	return c.ForEachKeyWhile(func(k []byte) (bool, error) {
		if err := f(k); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Keys materializes ForEachKey into a slice.
func (c *ByteCollectionView[W]) Keys() ([][]byte, error) {
	var out [][]byte
	err := c.ForEachKey(func(k []byte) error {
		out = append(out, append([]byte(nil), k...))
		return nil
	})
	return out, err
}

// Clear implements views.View.
func (c *ByteCollectionView[W]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteStorageFirst = true
	c.updates = make(map[string]views.Update[W])
	c.cachedHash = nil
}

// Rollback implements views.View.
func (c *ByteCollectionView[W]) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.updates) > 0 || c.deleteStorageFirst {
		c.logger().Warn("collection rollback discarding pending mutations",
			zap.Int("pending_entries", len(c.updates)),
			zap.Bool("pending_clear", c.deleteStorageFirst))
	}
	c.deleteStorageFirst = false
	c.updates = make(map[string]views.Update[W])
	c.cachedHash = c.storedHash
}

// Flush implements views.View.
func (c *ByteCollectionView[W]) Flush(batch *store.Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.sortedUpdatesLocked()
	h := c.cachedHash

	if c.deleteStorageFirst {
		batch.DeletePrefix(c.ctx.BasePrefix())
		for _, e := range pending {
			if e.update.Kind != views.UpdateSet {
				continue
			}
			if err := e.update.View.Flush(batch); err != nil {
				return fmt.Errorf("colview/collection: flush sub-view %x: %w", e.key, err)
			}
			batch.Put(c.ctx.DeriveTagIndex(TagIndex, e.key), nil)
		}
		c.storedHash = nil
	} else {
		for _, e := range pending {
			switch e.update.Kind {
			case views.UpdateSet:
				if err := e.update.View.Flush(batch); err != nil {
					return fmt.Errorf("colview/collection: flush sub-view %x: %w", e.key, err)
				}
				batch.Put(c.ctx.DeriveTagIndex(TagIndex, e.key), nil)
			case views.UpdateRemoved:
				batch.Delete(c.ctx.DeriveTagIndex(TagIndex, e.key))
				batch.DeletePrefix(c.ctx.DeriveTagIndex(TagSubview, e.key))
			}
		}
	}

	if !bytes.Equal(c.storedHash, h) {
		hashKey := c.ctx.DeriveTagPrefix(TagHash)
		if h == nil {
			batch.Delete(hashKey)
		} else {
			batch.Put(hashKey, h)
		}
		c.storedHash = h
	}

	c.deleteStorageFirst = false
	c.updates = make(map[string]views.Update[W])
	c.logger().Debug("collection flushed", zap.Int("pending_entries", len(pending)))
	return nil
}

// Hash implements views.Hashable. It takes the cache-slot mutex only long
// enough to read or populate c.cachedHash; the (possibly expensive)
// recomputation itself runs without holding it, since computeHash and
// everything it calls (ForEachKeyWhile, subviewHash) take the lock
// themselves wherever they need it.
func (c *ByteCollectionView[W]) Hash() ([]byte, error) {
	c.mu.Lock()
	if c.cachedHash != nil {
		digest := c.cachedHash
		c.mu.Unlock()
		return digest, nil
	}
	c.mu.Unlock()

	digest, err := views.MeasureHash(c.computeHash)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cachedHash = digest
	c.mu.Unlock()
	return digest, nil
}

// HashMut implements views.Hashable. It assumes the caller already has
// exclusive access to the view (e.g. immediately before Flush), so it
// reads and populates c.cachedHash directly without locking.
func (c *ByteCollectionView[W]) HashMut() ([]byte, error) {
	if c.cachedHash != nil {
		return c.cachedHash, nil
	}
	digest, err := views.MeasureHash(c.computeHash)
	if err != nil {
		return nil, err
	}
	c.cachedHash = digest
	return digest, nil
}

func (c *ByteCollectionView[W]) computeHash() ([]byte, error) {
	var keys [][]byte
	err := c.ForEachKeyWhile(func(k []byte) (bool, error) {
		keys = append(keys, append([]byte(nil), k...))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	h := views.NewHasher()
	h.WriteUint64(uint64(len(keys)))
	for _, k := range keys {
		h.WriteBytes(k)
		digest, err := c.subviewHash(k)
		if err != nil {
			return nil, err
		}
		h.WriteBytes(digest)
	}
	return h.Sum(), nil
}

// subviewHash resolves the sub-view hash for k: the pending copy if one is
// cached, otherwise a freshly loaded (and afterwards discarded) view, so
// that read-only hashing never mutates the
// updates map.
func (c *ByteCollectionView[W]) subviewHash(k []byte) ([]byte, error) {
	c.mu.Lock()
	u, ok := c.updates[string(k)]
	c.mu.Unlock()
	if ok && u.Kind == views.UpdateSet {
		return u.View.Hash()
	}
	view, err := c.loadChild(k)
	if err != nil {
		return nil, err
	}
	return view.Hash()
}

// CloneUnchecked implements views.Clonable, deep-cloning every pending
// Set sub-view. It returns an error if any pending sub-view does not
// itself implement views.Clonable.
func (c *ByteCollectionView[W]) CloneUnchecked() (views.View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cloned := &ByteCollectionView[W]{
		ctx:                c.ctx,
		load:               c.load,
		deleteStorageFirst: c.deleteStorageFirst,
		updates:            make(map[string]views.Update[W], len(c.updates)),
		storedHash:         append([]byte(nil), c.storedHash...),
		cachedHash:         append([]byte(nil), c.cachedHash...),
		log:                c.log,
	}
	for k, u := range c.updates {
		if u.Kind == views.UpdateRemoved {
			cloned.updates[k] = views.Removed[W]()
			continue
		}
		clonable, ok := any(u.View).(views.Clonable)
		if !ok {
			return nil, fmt.Errorf("colview/collection: sub-view type %T does not support clone_unchecked", u.View)
		}
		clonedView, err := clonable.CloneUnchecked()
		if err != nil {
			return nil, err
		}
		w, ok := clonedView.(W)
		if !ok {
			return nil, fmt.Errorf("colview/collection: clone_unchecked returned unexpected type %T", clonedView)
		}
		cloned.updates[k] = views.Set(w)
	}
	return cloned, nil
}
