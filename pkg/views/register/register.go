// Package register implements a single-value persistent sub-view: the
// leaf building block for typed collection entries that hold ordinary data
// (order books, per-owner order sets) rather than nested collections or
// queues.
package register

import (
	"github.com/nspcc-dev/colview/pkg/store"
	"github.com/nspcc-dev/colview/pkg/views"
)

// Codec encodes and decodes one register value for persistence.
type Codec[T any] interface {
	Encode(v T) []byte
	Decode(b []byte) (T, error)
}

// View holds at most one value of type T.
type View[T any] struct {
	ctx   *store.Context
	codec Codec[T]

	stored    []byte
	hasStored bool

	value    T
	hasValue bool

	cachedHash []byte
}

// Load reads the stored value, if any.
func Load[T any](ctx *store.Context, codec Codec[T]) (*View[T], error) {
	v := &View[T]{ctx: ctx, codec: codec}
	raw, ok, err := ctx.ReadValue(ctx.BasePrefix())
	if err != nil {
		return nil, err
	}
	if ok {
		val, err := codec.Decode(raw)
		if err != nil {
			return nil, err
		}
		v.stored, v.hasStored = raw, true
		v.value, v.hasValue = val, true
	}
	return v, nil
}

func (v *View[T]) Context() *store.Context { return v.ctx }

// Get returns the current value and whether one is set.
func (v *View[T]) Get() (T, bool) { return v.value, v.hasValue }

// Set replaces the current value, invalidating the cached hash. It must
// be called again after any in-place mutation of a reference-typed T
// (e.g. a *bitset.BitSet), since the view cannot observe that mutation on
// its own.
func (v *View[T]) Set(value T) {
	v.value, v.hasValue = value, true
	v.cachedHash = nil
}

func (v *View[T]) Rollback() {
	if v.hasStored {
		val, err := v.codec.Decode(v.stored)
		if err == nil {
			v.value, v.hasValue = val, true
		}
	} else {
		var zero T
		v.value, v.hasValue = zero, false
	}
	v.cachedHash = nil
}

func (v *View[T]) Clear() {
	var zero T
	v.value, v.hasValue = zero, false
	v.cachedHash = nil
}

func (v *View[T]) Flush(batch *store.Batch) error {
	if v.hasValue {
		enc := v.codec.Encode(v.value)
		batch.Put(v.ctx.BasePrefix(), enc)
		v.stored, v.hasStored = enc, true
	} else {
		batch.Delete(v.ctx.BasePrefix())
		v.stored, v.hasStored = nil, false
	}
	return nil
}

func (v *View[T]) Hash() ([]byte, error) {
	return views.MeasureHash(v.computeHash)
}

func (v *View[T]) HashMut() ([]byte, error) {
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

func (v *View[T]) computeHash() ([]byte, error) {
	if v.cachedHash != nil {
		return v.cachedHash, nil
	}
	h := views.NewHasher()
	if v.hasValue {
		h.WriteUint64(1)
		h.WriteBytes(v.codec.Encode(v.value))
	} else {
		h.WriteUint64(0)
	}
	digest := h.Sum()
	v.cachedHash = digest
	return digest, nil
}

func (v *View[T]) CloneUnchecked() (views.View, error) {
	return &View[T]{
		ctx:        v.ctx,
		codec:      v.codec,
		stored:     append([]byte(nil), v.stored...),
		hasStored:  v.hasStored,
		value:      v.value,
		hasValue:   v.hasValue,
		cachedHash: append([]byte(nil), v.cachedHash...),
	}, nil
}
