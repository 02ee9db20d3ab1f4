package store

import (
	"bytes"
	"sort"
)

// Context is a store handle plus a base prefix. Every key a Context
// produces is base ‖ suffix. A Context is cloned-with-new-base via
// DeriveChild to give a sub-view its own disjoint key-space.
type Context struct {
	Store Store
	base  []byte
}

// NewContext returns a root context over s with an empty base prefix.
func NewContext(s Store) *Context {
	return &Context{Store: s}
}

// BasePrefix returns the context's base prefix.
func (c *Context) BasePrefix() []byte {
	return append([]byte(nil), c.base...)
}

// DeriveChild returns a context whose base is c.base ‖ suffix.
func (c *Context) DeriveChild(suffix []byte) *Context {
	nb := make([]byte, 0, len(c.base)+len(suffix))
	nb = append(nb, c.base...)
	nb = append(nb, suffix...)
	return &Context{Store: c.Store, base: nb}
}

// DeriveTagPrefix returns c.base ‖ tag, the canonical prefix for one kind of
// record owned by a view rooted at c.
func (c *Context) DeriveTagPrefix(tag byte) []byte {
	p := make([]byte, 0, len(c.base)+1)
	p = append(p, c.base...)
	p = append(p, tag)
	return p
}

// DeriveTagIndex returns c.base ‖ tag ‖ shortKey.
func (c *Context) DeriveTagIndex(tag byte, shortKey []byte) []byte {
	p := c.DeriveTagPrefix(tag)
	return append(p, shortKey...)
}

// ReadValue performs an exact lookup, returning ok=false rather than an
// error when the key is absent.
func (c *Context) ReadValue(key []byte) (value []byte, ok bool, err error) {
	v, err := c.Store.Get(key)
	if err == ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// ContainsKey reports whether key is present.
func (c *Context) ContainsKey(key []byte) (bool, error) {
	_, ok, err := c.ReadValue(key)
	return ok, err
}

// FindKeysByPrefix returns every stored key beginning with prefix, as
// suffixes (prefix stripped), in ascending lexicographic order.
func (c *Context) FindKeysByPrefix(prefix []byte) [][]byte {
	var out [][]byte
	c.Store.Seek(SeekRange{Prefix: prefix}, func(k, _ []byte) bool {
		out = append(out, append([]byte(nil), k[len(prefix):]...))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i], out[j]) < 0 })
	return out
}

// FindKeyValuesByPrefix returns every stored (key, value) pair beginning
// with prefix, keys given as suffixes, in ascending lexicographic order.
func (c *Context) FindKeyValuesByPrefix(prefix []byte) []KeyValue {
	var out []KeyValue
	c.Store.Seek(SeekRange{Prefix: prefix}, func(k, v []byte) bool {
		out = append(out, KeyValue{
			Key:   append([]byte(nil), k[len(prefix):]...),
			Value: append([]byte(nil), v...),
		})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}
