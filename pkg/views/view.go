// Package views defines the contract every sub-view type obeys: load,
// rollback, flush, clear, and — for views that participate in Merkle-style
// hashing — hash and hash_mut. Collections, typed collections, and queues in
// the sibling packages all implement this contract.
package views

import (
	"errors"

	"github.com/nspcc-dev/colview/pkg/store"
)

// ErrCannotAcquireEntry is returned by a read-only entry lookup (e.g.
// ByteCollectionView.TryLoadEntry) when exclusive access to the pending
// updates map is already held by a concurrent mutable borrow. It is the
// only user-visible manifestation of the engine's internal locking.
var ErrCannotAcquireEntry = errors.New("colview/views: cannot acquire collection entry")

// View is the minimal contract every sub-view obeys.
type View interface {
	// Rollback discards pending mutations, leaving in-memory state
	// equivalent to immediately after Load of the current stored state.
	Rollback()
	// Flush appends the batch operations that would persist current
	// pending state. After Flush, Rollback and Flush are both no-ops.
	Flush(batch *store.Batch) error
	// Clear marks the view to be emptied on the next Flush; all pending
	// sub-state is discarded.
	Clear()
	// Context returns the store context this view is backed by.
	Context() *store.Context
}

// Hashable is implemented by views that participate in deterministic
// Merkle-style hashing.
type Hashable interface {
	View
	// Hash takes shared access and may internally cache the result behind
	// a mutex.
	Hash() ([]byte, error)
	// HashMut takes exclusive access and may populate the cache without
	// internal synchronization, since the caller already holds the only
	// reference.
	HashMut() ([]byte, error)
}

// Clonable is implemented by views that support clone_unchecked snapshotting
// for use by speculation layers.
type Clonable interface {
	View
	// CloneUnchecked returns a deep logical clone of the view. It returns
	// an error for a view whose sub-state does not itself support cloning.
	CloneUnchecked() (View, error)
}

// UpdateKind distinguishes a pending Set from a pending Removed marker in a
// collection's updates map.
type UpdateKind int

const (
	// UpdateSet marks an entry with a materialized, possibly-mutated
	// sub-view pending flush.
	UpdateSet UpdateKind = iota
	// UpdateRemoved shadows any stored entry with the same short-key.
	UpdateRemoved
)

// Update is one pending entry in a collection's updates map: either a live
// sub-view (Set) or a tombstone (Removed).
type Update[W any] struct {
	Kind UpdateKind
	View W
}

// Set returns a Set-tagged update wrapping view.
func Set[W any](view W) Update[W] {
	return Update[W]{Kind: UpdateSet, View: view}
}

// Removed returns a Removed-tagged update.
func Removed[W any]() Update[W] {
	return Update[W]{Kind: UpdateRemoved}
}
