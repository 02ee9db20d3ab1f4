// Package queue implements the ordered-queue sub-view: a persistent deque
// of records that never reorders surviving records. It is the sub-view
// type the matching-engine collaborator stores at each price level.
package queue

import (
	"encoding/binary"
	"fmt"

	"github.com/nspcc-dev/colview/pkg/store"
	"github.com/nspcc-dev/colview/pkg/views"
)

// Key-tag reservation, following the same discipline as the collection
// engine's TAG_INDEX/TAG_SUBVIEW/TAG_HASH: one tag for the front/back range
// markers, one for the per-index stored records.
const (
	tagRange byte = iota
	tagEntry
)

// Codec encodes and decodes one record for persistence.
type Codec[R any] interface {
	Encode(r R) []byte
	Decode(b []byte) (R, error)
}

type rangeMarker struct {
	front uint64
	back  uint64
}

func encodeRange(r rangeMarker) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], r.front)
	binary.BigEndian.PutUint64(b[8:], r.back)
	return b
}

func decodeRange(b []byte) (rangeMarker, error) {
	if len(b) != 16 {
		return rangeMarker{}, fmt.Errorf("colview/queue: malformed range marker (%d bytes)", len(b))
	}
	return rangeMarker{
		front: binary.BigEndian.Uint64(b[:8]),
		back:  binary.BigEndian.Uint64(b[8:]),
	}, nil
}

func indexKey(ctx *store.Context, i uint64) []byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], i)
	return ctx.DeriveTagIndex(tagEntry, idx[:])
}

// View is a persistent FIFO queue of records of type R. front and back are
// a half-open index range [front, back); front == back means empty. No
// operation ever reassigns the index of a surviving record, so iteration
// order is stable across inserts and removals.
type View[R any] struct {
	ctx   *store.Context
	codec Codec[R]

	stored rangeMarker // as read from storage at Load time
	front  uint64
	back   uint64

	// pending holds the record at each index written or overwritten since
	// the last Flush; an index untouched since load is absent. Values in
	// [stored.front, front) or [back, stored.back) that are not in
	// pending are implicitly deleted on Flush (they fell off an end).
	pending map[uint64]R

	cachedHash []byte
}

// Load reads the front/back range marker; individual entries are read
// lazily via IterMut.
func Load[R any](ctx *store.Context, codec Codec[R]) (*View[R], error) {
	v := &View[R]{ctx: ctx, codec: codec, pending: make(map[uint64]R)}
	raw, ok, err := ctx.ReadValue(ctx.DeriveTagPrefix(tagRange))
	if err != nil {
		return nil, fmt.Errorf("colview/queue: load: %w", err)
	}
	if ok {
		rng, err := decodeRange(raw)
		if err != nil {
			return nil, err
		}
		v.stored = rng
		v.front, v.back = rng.front, rng.back
	}
	return v, nil
}

func (v *View[R]) Context() *store.Context { return v.ctx }

// Count returns the number of live records.
func (v *View[R]) Count() int {
	return int(v.back - v.front)
}

// PushBack appends record to the end of the queue.
func (v *View[R]) PushBack(record R) {
	v.cachedHash = nil
	v.pending[v.back] = record
	v.back++
}

// DeleteFront removes the oldest surviving record, if any.
func (v *View[R]) DeleteFront() {
	if v.front >= v.back {
		return
	}
	v.cachedHash = nil
	delete(v.pending, v.front)
	v.front++
}

func (v *View[R]) readRecord(i uint64) (R, error) {
	if r, ok := v.pending[i]; ok {
		return r, nil
	}
	raw, ok, err := v.ctx.ReadValue(indexKey(v.ctx, i))
	var zero R
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, fmt.Errorf("colview/queue: missing stored entry at index %d", i)
	}
	return v.codec.Decode(raw)
}

// IterMut visits every live record from front to back, in order, handing
// f a mutable slot: returning a modified record overwrites the stored
// entry at the next Flush, without reordering or changing its index.
func (v *View[R]) IterMut(f func(i int, record R) (R, error)) error {
	for i := v.front; i < v.back; i++ {
		rec, err := v.readRecord(i)
		if err != nil {
			return err
		}
		updated, err := f(int(i-v.front), rec)
		if err != nil {
			return err
		}
		v.pending[i] = updated
	}
	v.cachedHash = nil
	return nil
}

// ForEach visits every live record read-only, without marking the view
// dirty.
func (v *View[R]) ForEach(f func(i int, record R) error) error {
	for i := v.front; i < v.back; i++ {
		rec, err := v.readRecord(i)
		if err != nil {
			return err
		}
		if err := f(int(i-v.front), rec); err != nil {
			return err
		}
	}
	return nil
}

// Rollback discards pending mutations, restoring the range read at Load.
func (v *View[R]) Rollback() {
	v.front, v.back = v.stored.front, v.stored.back
	v.pending = make(map[uint64]R)
	v.cachedHash = nil
}

// Clear empties the queue; the next Flush deletes every stored entry in
// [stored.front, stored.back) and rewrites the range marker as the empty
// range [0, 0).
func (v *View[R]) Clear() {
	v.front, v.back = 0, 0
	v.pending = make(map[uint64]R)
	v.cachedHash = nil
}

// Flush implements views.View.
func (v *View[R]) Flush(batch *store.Batch) error {
	lo, hi := v.stored.front, v.stored.back
	if v.front < lo {
		lo = v.front
	}
	if v.back > hi {
		hi = v.back
	}
	for i := lo; i < hi; i++ {
		if rec, dirty := v.pending[i]; dirty && i >= v.front && i < v.back {
			batch.Put(indexKey(v.ctx, i), v.codec.Encode(rec))
		} else if i < v.front || i >= v.back {
			batch.Delete(indexKey(v.ctx, i))
		}
	}

	batch.Put(v.ctx.DeriveTagPrefix(tagRange), encodeRange(rangeMarker{front: v.front, back: v.back}))

	v.stored = rangeMarker{front: v.front, back: v.back}
	v.pending = make(map[uint64]R)
	return nil
}

// Hash implements views.Hashable: absorb the record count, then each live
// record's encoding, front to back.
func (v *View[R]) Hash() ([]byte, error) {
	return views.MeasureHash(v.computeHash)
}

// HashMut behaves identically to Hash: both return the cached digest when
// one is present, and otherwise recompute it and cache the result until the
// next mutation.
func (v *View[R]) HashMut() ([]byte, error) {
	if v.cachedHash != nil {
		return v.cachedHash, nil
	}
	digest, err := views.MeasureHash(v.computeHash)
	if err != nil {
		return nil, err
	}
	v.cachedHash = digest
	return digest, nil
}

func (v *View[R]) computeHash() ([]byte, error) {
	if v.cachedHash != nil {
		return v.cachedHash, nil
	}
	h := views.NewHasher()
	h.WriteUint64(uint64(v.Count()))
	err := v.ForEach(func(_ int, rec R) error {
		h.WriteBytes(v.codec.Encode(rec))
		return nil
	})
	if err != nil {
		return nil, err
	}
	digest := h.Sum()
	v.cachedHash = digest
	return digest, nil
}

// CloneUnchecked returns an independent snapshot of the queue's current
// (possibly pending) state.
func (v *View[R]) CloneUnchecked() (views.View, error) {
	cloned := &View[R]{
		ctx:        v.ctx,
		codec:      v.codec,
		stored:     v.stored,
		front:      v.front,
		back:       v.back,
		pending:    make(map[uint64]R, len(v.pending)),
		cachedHash: append([]byte(nil), v.cachedHash...),
	}
	for k, r := range v.pending {
		cloned.pending[k] = r
	}
	return cloned, nil
}
