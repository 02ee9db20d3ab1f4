package collection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nspcc-dev/colview/pkg/store"
	"github.com/nspcc-dev/colview/pkg/views"
)

func TestLoadIdempotence(t *testing.T) {
	s := store.NewMemoryStore()
	ctx1 := store.NewContext(s)

	c1, err := Load(ctx1, loadLeaf)
	require.NoError(t, err)
	leaf, err := c1.LoadEntryMut([]byte("a"))
	require.NoError(t, err)
	leaf.Set([]byte("hello"))

	b := store.NewBatch()
	require.NoError(t, c1.Flush(b))
	require.NoError(t, s.PutBatch(b))

	ctx2 := store.NewContext(s)
	c2, err := Load(ctx2, loadLeaf)
	require.NoError(t, err)

	keys1, err := c1.Keys()
	require.NoError(t, err)
	keys2, err := c2.Keys()
	require.NoError(t, err)
	require.Equal(t, keys1, keys2)

	h1, err := c1.Hash()
	require.NoError(t, err)
	h2, err := c2.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestFlushRoundTripsEntryValue(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)

	leaf, err := c.LoadEntryMut([]byte("k1"))
	require.NoError(t, err)
	leaf.Set([]byte("v1"))

	b := store.NewBatch()
	require.NoError(t, c.Flush(b))
	require.NoError(t, s.PutBatch(b))

	reloaded, err := Load(store.NewContext(s), loadLeaf)
	require.NoError(t, err)
	got, ok, err := reloaded.TryLoadEntry([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	v, has := got.Get()
	require.True(t, has)
	require.Equal(t, []byte("v1"), v)
}

func TestRollbackErasesPendingMutations(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)

	leaf, err := c.LoadEntryMut([]byte("k1"))
	require.NoError(t, err)
	leaf.Set([]byte("v1"))
	b := store.NewBatch()
	require.NoError(t, c.Flush(b))
	require.NoError(t, s.PutBatch(b))

	keysBefore, err := c.Keys()
	require.NoError(t, err)
	hashBefore, err := c.Hash()
	require.NoError(t, err)

	_, err = c.LoadEntryMut([]byte("k2"))
	require.NoError(t, err)
	c.RemoveEntry([]byte("k1"))

	c.Rollback()

	keysAfter, err := c.Keys()
	require.NoError(t, err)
	hashAfter, err := c.Hash()
	require.NoError(t, err)

	require.Equal(t, keysBefore, keysAfter)
	require.Equal(t, hashBefore, hashAfter)
}

func TestDeterministicOrderedTraversalMergesStoredAndPending(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)

	for _, k := range []string{"b", "d", "f"} {
		leaf, err := c.LoadEntryMut([]byte(k))
		require.NoError(t, err)
		leaf.Set([]byte("stored-" + k))
	}
	b := store.NewBatch()
	require.NoError(t, c.Flush(b))
	require.NoError(t, s.PutBatch(b))

	reloaded, err := Load(store.NewContext(s), loadLeaf)
	require.NoError(t, err)

	for _, k := range []string{"a", "e"} {
		leaf, err := reloaded.LoadEntryMut([]byte(k))
		require.NoError(t, err)
		leaf.Set([]byte("pending-" + k))
	}
	reloaded.RemoveEntry([]byte("d"))

	keys, err := reloaded.Keys()
	require.NoError(t, err)
	got := make([]string, len(keys))
	for i, k := range keys {
		got[i] = string(k)
	}
	require.Equal(t, []string{"a", "b", "e", "f"}, got)
}

func TestForEachKeyWhileStopsEarly(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)
	for _, k := range []string{"a", "b", "c"} {
		leaf, err := c.LoadEntryMut([]byte(k))
		require.NoError(t, err)
		leaf.Set([]byte(k))
	}

	var visited []string
	err = c.ForEachKeyWhile(func(k []byte) (bool, error) {
		visited = append(visited, string(k))
		return string(k) != "b", nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, visited)
}

func TestHashDeterministicAndSensitiveToContent(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)
	leaf, err := c.LoadEntryMut([]byte("a"))
	require.NoError(t, err)
	leaf.Set([]byte("v1"))

	h1, err := c.Hash()
	require.NoError(t, err)
	h2, err := c.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2, "hash must be cached and stable across repeated calls")

	leaf, err = c.LoadEntryMut([]byte("a"))
	require.NoError(t, err)
	leaf.Set([]byte("v2"))
	h3, err := c.Hash()
	require.NoError(t, err)
	require.NotEqual(t, h1, h3, "mutation must invalidate the cached hash")
}

func TestClearMasksStoredEntries(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)
	leaf, err := c.LoadEntryMut([]byte("a"))
	require.NoError(t, err)
	leaf.Set([]byte("v1"))
	b := store.NewBatch()
	require.NoError(t, c.Flush(b))
	require.NoError(t, s.PutBatch(b))

	reloaded, err := Load(store.NewContext(s), loadLeaf)
	require.NoError(t, err)
	reloaded.Clear()

	keys, err := reloaded.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)

	ok, err := reloaded.ContainsKey([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)

	b2 := store.NewBatch()
	require.NoError(t, reloaded.Flush(b2))
	require.NoError(t, s.PutBatch(b2))

	fresh, err := Load(store.NewContext(s), loadLeaf)
	require.NoError(t, err)
	keysFresh, err := fresh.Keys()
	require.NoError(t, err)
	require.Empty(t, keysFresh)
}

func TestPrefixIsolationBetweenSiblingEntries(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)

	leafA, err := c.LoadEntryMut([]byte("a"))
	require.NoError(t, err)
	leafA.Set([]byte("va"))
	leafB, err := c.LoadEntryMut([]byte("ab"))
	require.NoError(t, err)
	leafB.Set([]byte("vab"))

	b := store.NewBatch()
	require.NoError(t, c.Flush(b))
	require.NoError(t, s.PutBatch(b))

	reloaded, err := Load(store.NewContext(s), loadLeaf)
	require.NoError(t, err)
	gotA, okA, err := reloaded.TryLoadEntry([]byte("a"))
	require.NoError(t, err)
	require.True(t, okA)
	vA, _ := gotA.Get()
	require.Equal(t, []byte("va"), vA)

	gotB, okB, err := reloaded.TryLoadEntry([]byte("ab"))
	require.NoError(t, err)
	require.True(t, okB)
	vB, _ := gotB.Get()
	require.Equal(t, []byte("vab"), vB)
}

func TestRemoveEntryThenReinsert(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)
	leaf, err := c.LoadEntryMut([]byte("a"))
	require.NoError(t, err)
	leaf.Set([]byte("v1"))
	b := store.NewBatch()
	require.NoError(t, c.Flush(b))
	require.NoError(t, s.PutBatch(b))

	reloaded, err := Load(store.NewContext(s), loadLeaf)
	require.NoError(t, err)
	reloaded.RemoveEntry([]byte("a"))
	ok, err := reloaded.ContainsKey([]byte("a"))
	require.NoError(t, err)
	require.False(t, ok)

	again, err := reloaded.LoadEntryMut([]byte("a"))
	require.NoError(t, err)
	_, has := again.Get()
	require.False(t, has, "re-inserting after Removed must start from a cleared sub-view, not stale storage")
}

func TestTryLoadEntryFailsUnderConcurrentExclusiveAccess(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _, err = c.TryLoadEntry([]byte("a"))
	require.ErrorIs(t, err, views.ErrCannotAcquireEntry)
}

func TestCloneUncheckedIsIndependentSnapshot(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := store.NewContext(s)
	c, err := Load(ctx, loadLeaf)
	require.NoError(t, err)
	leaf, err := c.LoadEntryMut([]byte("a"))
	require.NoError(t, err)
	leaf.Set([]byte("v1"))

	clonedView, err := c.CloneUnchecked()
	require.NoError(t, err)
	cloned := clonedView.(*ByteCollectionView[*leafView])

	leaf.Set([]byte("v2"))

	clonedLeaf, ok, err := cloned.TryLoadEntry([]byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	v, _ := clonedLeaf.Get()
	require.Equal(t, []byte("v1"), v, "clone must not observe mutations made to the original after cloning")
}
