// Package typed provides two adapters over the byte collection engine: an
// ordinary typed collection keyed by a canonical binary serializer, and a
// custom-ordered typed collection keyed by a serializer whose byte order
// matches the key type's domain order. Both delegate
// load/flush/clear/rollback/hash to the inner collection.ByteCollectionView
// unchanged.
package typed

import (
	"fmt"

	"github.com/nspcc-dev/colview/pkg/store"
	"github.com/nspcc-dev/colview/pkg/views"
	"github.com/nspcc-dev/colview/pkg/views/collection"
)

// Serializer is a canonical binary codec for an ordinary typed collection's
// key type. Iteration order follows the serializer's byte order; callers
// must not assume it equals the key type's natural order.
type Serializer[K any] interface {
	Serialize(key K) []byte
	Deserialize(b []byte) (K, error)
}

// CustomSerializer additionally satisfies the custom-serialize law: for
// all a, b, Serialize(a) < Serialize(b) lexicographically iff a is
// domain-less-than b. Implementations are responsible for the law; nothing
// in this package can verify it at runtime.
type CustomSerializer[K any] interface {
	Serializer[K]
}

// Collection is the ordinary typed wrapper: short_key = serializer.Serialize(index).
type Collection[K any, W views.Hashable] struct {
	inner *collection.ByteCollectionView[W]
	ser   Serializer[K]
}

// CustomOrderedCollection is the custom-ordered typed wrapper: its
// serializer's byte order is guaranteed to match the key type's domain
// order, so byte-level iteration produces domain-sorted traversal.
type CustomOrderedCollection[K any, W views.Hashable] struct {
	inner *collection.ByteCollectionView[W]
	ser   CustomSerializer[K]
}

// LoadCollection constructs an ordinary typed collection over ctx.
func LoadCollection[K any, W views.Hashable](ctx *store.Context, ser Serializer[K], load collection.Loader[W]) (*Collection[K, W], error) {
	inner, err := collection.Load(ctx, load)
	if err != nil {
		return nil, err
	}
	return &Collection[K, W]{inner: inner, ser: ser}, nil
}

// LoadCustomOrderedCollection constructs a custom-ordered typed collection
// over ctx.
func LoadCustomOrderedCollection[K any, W views.Hashable](ctx *store.Context, ser CustomSerializer[K], load collection.Loader[W]) (*CustomOrderedCollection[K, W], error) {
	inner, err := collection.Load(ctx, load)
	if err != nil {
		return nil, err
	}
	return &CustomOrderedCollection[K, W]{inner: inner, ser: ser}, nil
}

func (c *Collection[K, W]) Context() *store.Context    { return c.inner.Context() }
func (c *Collection[K, W]) Rollback()                  { c.inner.Rollback() }
func (c *Collection[K, W]) Clear()                     { c.inner.Clear() }
func (c *Collection[K, W]) Flush(b *store.Batch) error { return c.inner.Flush(b) }
func (c *Collection[K, W]) Hash() ([]byte, error)      { return c.inner.Hash() }
func (c *Collection[K, W]) HashMut() ([]byte, error)   { return c.inner.HashMut() }

func (c *Collection[K, W]) LoadEntryMut(key K) (W, error) {
	return c.inner.LoadEntryMut(c.ser.Serialize(key))
}

func (c *Collection[K, W]) LoadEntryOrInsert(key K) (W, error) {
	return c.inner.LoadEntryOrInsert(c.ser.Serialize(key))
}

func (c *Collection[K, W]) TryLoadEntry(key K) (W, bool, error) {
	return c.inner.TryLoadEntry(c.ser.Serialize(key))
}

func (c *Collection[K, W]) ResetEntryToDefault(key K) error {
	return c.inner.ResetEntryToDefault(c.ser.Serialize(key))
}

func (c *Collection[K, W]) ContainsKey(key K) (bool, error) {
	return c.inner.ContainsKey(c.ser.Serialize(key))
}

func (c *Collection[K, W]) RemoveEntry(key K) {
	c.inner.RemoveEntry(c.ser.Serialize(key))
}

// Indices materializes the collection's keys() in serializer byte order,
// deserialized back to K.
func (c *Collection[K, W]) Indices() ([]K, error) {
	shortKeys, err := c.inner.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]K, 0, len(shortKeys))
	for _, sk := range shortKeys {
		k, err := c.ser.Deserialize(sk)
		if err != nil {
			return nil, fmt.Errorf("colview/typed: deserialize index: %w", err)
		}
		out = append(out, k)
	}
	return out, nil
}

func (c *Collection[K, W]) ForEachIndexWhile(f func(K) (bool, error)) error {
	return c.inner.ForEachKeyWhile(func(sk []byte) (bool, error) {
		k, err := c.ser.Deserialize(sk)
		if err != nil {
			return false, fmt.Errorf("colview/typed: deserialize index: %w", err)
		}
		return f(k)
	})
}

func (c *Collection[K, W]) CloneUnchecked() (views.View, error) {
	clonedInner, err := c.inner.CloneUnchecked()
	if err != nil {
		return nil, err
	}
	typed, ok := clonedInner.(*collection.ByteCollectionView[W])
	if !ok {
		return nil, fmt.Errorf("colview/typed: unexpected clone type %T", clonedInner)
	}
	return &Collection[K, W]{inner: typed, ser: c.ser}, nil
}

func (c *CustomOrderedCollection[K, W]) Context() *store.Context    { return c.inner.Context() }
func (c *CustomOrderedCollection[K, W]) Rollback()                  { c.inner.Rollback() }
func (c *CustomOrderedCollection[K, W]) Clear()                     { c.inner.Clear() }
func (c *CustomOrderedCollection[K, W]) Flush(b *store.Batch) error { return c.inner.Flush(b) }
func (c *CustomOrderedCollection[K, W]) Hash() ([]byte, error)      { return c.inner.Hash() }
func (c *CustomOrderedCollection[K, W]) HashMut() ([]byte, error)   { return c.inner.HashMut() }

func (c *CustomOrderedCollection[K, W]) LoadEntryMut(key K) (W, error) {
	return c.inner.LoadEntryMut(c.ser.Serialize(key))
}

func (c *CustomOrderedCollection[K, W]) LoadEntryOrInsert(key K) (W, error) {
	return c.inner.LoadEntryOrInsert(c.ser.Serialize(key))
}

func (c *CustomOrderedCollection[K, W]) TryLoadEntry(key K) (W, bool, error) {
	return c.inner.TryLoadEntry(c.ser.Serialize(key))
}

func (c *CustomOrderedCollection[K, W]) ResetEntryToDefault(key K) error {
	return c.inner.ResetEntryToDefault(c.ser.Serialize(key))
}

func (c *CustomOrderedCollection[K, W]) ContainsKey(key K) (bool, error) {
	return c.inner.ContainsKey(c.ser.Serialize(key))
}

func (c *CustomOrderedCollection[K, W]) RemoveEntry(key K) {
	c.inner.RemoveEntry(c.ser.Serialize(key))
}

// Indices materializes the domain-sorted sequence of live keys, relying on
// the custom-serialize law to make byte order and domain order coincide.
func (c *CustomOrderedCollection[K, W]) Indices() ([]K, error) {
	shortKeys, err := c.inner.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]K, 0, len(shortKeys))
	for _, sk := range shortKeys {
		k, err := c.ser.Deserialize(sk)
		if err != nil {
			return nil, fmt.Errorf("colview/typed: deserialize index: %w", err)
		}
		out = append(out, k)
	}
	return out, nil
}

// ForEachIndexWhile walks entries in domain order (best-first for a
// collection keyed by price), stopping as soon as f returns false.
func (c *CustomOrderedCollection[K, W]) ForEachIndexWhile(f func(K) (bool, error)) error {
	return c.inner.ForEachKeyWhile(func(sk []byte) (bool, error) {
		k, err := c.ser.Deserialize(sk)
		if err != nil {
			return false, fmt.Errorf("colview/typed: deserialize index: %w", err)
		}
		return f(k)
	})
}

func (c *CustomOrderedCollection[K, W]) CloneUnchecked() (views.View, error) {
	clonedInner, err := c.inner.CloneUnchecked()
	if err != nil {
		return nil, err
	}
	typed, ok := clonedInner.(*collection.ByteCollectionView[W])
	if !ok {
		return nil, fmt.Errorf("colview/typed: unexpected clone type %T", clonedInner)
	}
	return &CustomOrderedCollection[K, W]{inner: typed, ser: c.ser}, nil
}
