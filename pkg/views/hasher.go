package views

import (
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/sha3"
)

// DigestSize is the length in bytes of a Hasher digest.
const DigestSize = 32

// Hasher is the deterministic, streaming, endian-agnostic cryptographic
// sponge used throughout this module for Merkle-style hashing. SHA3-256 is
// a literal sponge construction, seeded empty (sha3.New256's initial
// state), which is exactly the incremental absorb-then-sum shape every
// view's hash algorithm needs.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a freshly seeded Hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha3.New256()}
}

// WriteUint64 absorbs n in canonical (big-endian) binary form.
func (h *Hasher) WriteUint64(n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	h.h.Write(buf[:])
}

// WriteBytes absorbs b as a length-prefixed record: its length, then its
// bytes.
func (h *Hasher) WriteBytes(b []byte) {
	h.WriteUint64(uint64(len(b)))
	h.h.Write(b)
}

// Sum returns the finalized digest without mutating the Hasher's state.
func (h *Hasher) Sum() []byte {
	return h.h.Sum(nil)
}
