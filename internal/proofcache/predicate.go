// predicate.go - Acceptance predicates: checksum oracle and Groth16 verifier.

package proofcache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"privatepay/internal/circuit"
	"privatepay/internal/types"
)

// Predicate decides whether a proof is accepted for its public inputs.
// Inputs are validated non-negative 256-bit integers.
type Predicate interface {
	Accept(proof []byte, inputs []*big.Int) bool
}

const (
	// TagSize is the size of the checksum tag trailing a sealed proof.
	TagSize = 8
	// MinProofSize is the smallest proof the checksum oracle considers.
	MinProofSize = 32 + TagSize
)

// ChecksumOracle accepts a proof whose trailing big-endian tag lies within
// Tolerance of the checksum of the proof body and public inputs.
//
// It only checks that the proof was produced for these inputs by a party
// that knows the sealing rule. It is NOT a cryptographic verifier; use
// Groth16Verifier where soundness matters.
type ChecksumOracle struct {
	Tolerance uint64
}

func (o ChecksumOracle) Accept(proof []byte, inputs []*big.Int) bool {
	if len(proof) < MinProofSize {
		return false
	}
	body, tag := proof[:len(proof)-TagSize], binary.BigEndian.Uint64(proof[len(proof)-TagSize:])
	want := checksum(body, inputs)
	if tag > want {
		return tag-want <= o.Tolerance
	}
	return want-tag <= o.Tolerance
}

// Seal appends the checksum tag to body, zero-padding short bodies, so that
// the result is accepted by a ChecksumOracle for inputs.
func Seal(body []byte, inputs []*big.Int) []byte {
	size := len(body)
	if size < MinProofSize-TagSize {
		size = MinProofSize - TagSize
	}
	sealed := make([]byte, size, size+TagSize)
	copy(sealed, body)
	return binary.BigEndian.AppendUint64(sealed, checksum(sealed, inputs))
}

func checksum(body []byte, inputs []*big.Int) uint64 {
	h := types.NewHasher().Bytes(body).Uint64(uint64(len(inputs)))
	for _, input := range inputs {
		h.Hash(inputHash(input))
	}
	sum := h.Sum()
	return binary.BigEndian.Uint64(sum[:8])
}

// Groth16Verifier accepts serialized Groth16 proofs of the payment circuit.
type Groth16Verifier struct {
	vk groth16.VerifyingKey
}

func NewGroth16Verifier(vk groth16.VerifyingKey) *Groth16Verifier {
	return &Groth16Verifier{vk: vk}
}

// LoadGroth16Verifier reads the verifying key at path.
func LoadGroth16Verifier(path string) (*Groth16Verifier, error) {
	vk, err := circuit.LoadVerifyingKey(path)
	if err != nil {
		return nil, fmt.Errorf("could not load verifying key %s: %w", path, err)
	}
	return NewGroth16Verifier(vk), nil
}

func (v *Groth16Verifier) Accept(proof []byte, inputs []*big.Int) bool {
	if len(inputs) != 3 {
		return false
	}
	modulus := circuit.Curve.ScalarField()
	for _, input := range inputs {
		// reduced inputs would let distinct commitments share a proof
		if input.Cmp(modulus) >= 0 {
			return false
		}
	}
	p := groth16.NewProof(circuit.Curve)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return false
	}
	public, err := frontend.NewWitness(&circuit.PaymentCircuit{
		Commitment: inputs[0],
		Amount:     inputs[1],
		DecoyCount: inputs[2],
	}, circuit.Curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false
	}
	return groth16.Verify(p, v.vk, public) == nil
}

// AcceptAll accepts every proof. Only meant for local development.
type AcceptAll struct{}

func (AcceptAll) Accept([]byte, []*big.Int) bool { return true }
