package collection

import (
	"github.com/nspcc-dev/colview/pkg/store"
	"github.com/nspcc-dev/colview/pkg/views"
)

// leafView is a minimal views.Hashable used only by this package's tests:
// a single opaque byte string stored under its context's base prefix.
type leafView struct {
	ctx      *store.Context
	value    []byte
	hasValue bool
}

func loadLeaf(ctx *store.Context) (*leafView, error) {
	v, ok, err := ctx.ReadValue(ctx.BasePrefix())
	if err != nil {
		return nil, err
	}
	return &leafView{ctx: ctx, value: v, hasValue: ok}, nil
}

func (l *leafView) Context() *store.Context { return l.ctx }

func (l *leafView) Set(v []byte) {
	l.value = append([]byte(nil), v...)
	l.hasValue = true
}

func (l *leafView) Get() ([]byte, bool) { return l.value, l.hasValue }

func (l *leafView) Rollback() {
	v, ok, err := l.ctx.ReadValue(l.ctx.BasePrefix())
	if err != nil {
		panic(err)
	}
	l.value, l.hasValue = v, ok
}

func (l *leafView) Flush(batch *store.Batch) error {
	if l.hasValue {
		batch.Put(l.ctx.BasePrefix(), l.value)
	} else {
		batch.Delete(l.ctx.BasePrefix())
	}
	return nil
}

func (l *leafView) Clear() {
	l.value = nil
	l.hasValue = false
}

func (l *leafView) Hash() ([]byte, error) {
	h := views.NewHasher()
	if l.hasValue {
		h.WriteUint64(1)
		h.WriteBytes(l.value)
	} else {
		h.WriteUint64(0)
	}
	return h.Sum(), nil
}

func (l *leafView) HashMut() ([]byte, error) { return l.Hash() }

func (l *leafView) CloneUnchecked() (views.View, error) {
	return &leafView{ctx: l.ctx, value: append([]byte(nil), l.value...), hasValue: l.hasValue}, nil
}
