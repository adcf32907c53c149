// hash.go - MiMC-based derivation of protocol identifiers.
//
// All identifiers are MiMC digests over the BN254 scalar field, the same hash the
// payment circuit uses, so an identifier computed natively can be reproduced in-circuit.
// Each absorbed value is written as one left-padded field element.

package types

import (
	"encoding/binary"
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// maxChunk keeps every absorbed element strictly below the field modulus.
const maxChunk = fr.Bytes - 1

// Hasher absorbs protocol fields into a MiMC sponge.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns an empty MiMC hasher.
func NewHasher() *Hasher {
	return &Hasher{h: mimc.NewMiMC()}
}

// writeElement writes b (at most maxChunk bytes) as a single field element.
func (h *Hasher) writeElement(b []byte) {
	var block [fr.Bytes]byte
	copy(block[fr.Bytes-len(b):], b)
	// block < 2^248 so it is always a canonical element
	_, _ = h.h.Write(block[:])
}

// Uint64 absorbs v as one field element.
func (h *Hasher) Uint64(v uint64) *Hasher {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.writeElement(buf[:])
	return h
}

// Int64 absorbs v as one field element (two's complement bits).
func (h *Hasher) Int64(v int64) *Hasher {
	return h.Uint64(uint64(v))
}

// Address absorbs a as one field element.
func (h *Hasher) Address(a Address) *Hasher {
	h.writeElement(a[:])
	return h
}

// Field absorbs e as is.
func (h *Hasher) Field(e fr.Element) *Hasher {
	b := e.Bytes()
	_, _ = h.h.Write(b[:])
	return h
}

// Hash absorbs x as two 128-bit field elements.
func (h *Hasher) Hash(x Hash) *Hasher {
	h.writeElement(x[:HashLength/2])
	h.writeElement(x[HashLength/2:])
	return h
}

// Bytes absorbs a length prefix followed by b in maxChunk-sized elements.
func (h *Hasher) Bytes(b []byte) *Hasher {
	h.Uint64(uint64(len(b)))
	for len(b) > 0 {
		n := len(b)
		if n > maxChunk {
			n = maxChunk
		}
		h.writeElement(b[:n])
		b = b[n:]
	}
	return h
}

// Sum returns the digest of everything absorbed so far.
func (h *Hasher) Sum() Hash {
	var out Hash
	copy(out[:], h.h.Sum(nil))
	return out
}
