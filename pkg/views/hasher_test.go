package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasherDeterministic(t *testing.T) {
	build := func() []byte {
		h := NewHasher()
		h.WriteUint64(2)
		h.WriteBytes([]byte("alpha"))
		h.WriteBytes([]byte{0x01, 0x02, 0x03})
		h.WriteBytes([]byte("beta"))
		h.WriteBytes([]byte{0x04, 0x05, 0x06})
		return h.Sum()
	}
	assert.Equal(t, build(), build())
}

func TestHasherSensitiveToContent(t *testing.T) {
	h1 := NewHasher()
	h1.WriteBytes([]byte("a"))
	d1 := h1.Sum()

	h2 := NewHasher()
	h2.WriteBytes([]byte("b"))
	d2 := h2.Sum()

	assert.NotEqual(t, d1, d2)
}

func TestHasherLengthPrefixAvoidsCollision(t *testing.T) {
	// Without a length prefix, WriteBytes("ab"); WriteBytes("c") would
	// collide with WriteBytes("a"); WriteBytes("bc").
	h1 := NewHasher()
	h1.WriteBytes([]byte("ab"))
	h1.WriteBytes([]byte("c"))

	h2 := NewHasher()
	h2.WriteBytes([]byte("a"))
	h2.WriteBytes([]byte("bc"))

	assert.NotEqual(t, h1.Sum(), h2.Sum())
}

func TestUpdateHelpers(t *testing.T) {
	s := Set(42)
	assert.Equal(t, UpdateSet, s.Kind)
	assert.Equal(t, 42, s.View)

	r := Removed[int]()
	assert.Equal(t, UpdateRemoved, r.Kind)
}
