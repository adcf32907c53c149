package proofcache

import (
	"encoding/binary"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privatepay/internal/circuit"
)

func TestChecksumOracle(t *testing.T) {
	in := inputs(5, 6)
	sealed := Seal([]byte("body"), in)
	require.Len(t, sealed, MinProofSize)

	t.Run("exact", func(t *testing.T) {
		assert.True(t, ChecksumOracle{}.Accept(sealed, in))
	})

	t.Run("short proofs are rejected", func(t *testing.T) {
		assert.False(t, ChecksumOracle{}.Accept(sealed[:MinProofSize-1], in))
	})

	t.Run("inputs are bound", func(t *testing.T) {
		assert.False(t, ChecksumOracle{}.Accept(sealed, inputs(5, 7)))
	})

	t.Run("tolerance", func(t *testing.T) {
		shifted := append([]byte(nil), sealed...)
		tag := binary.BigEndian.Uint64(shifted[len(shifted)-TagSize:])
		binary.BigEndian.PutUint64(shifted[len(shifted)-TagSize:], tag^1)

		assert.False(t, ChecksumOracle{}.Accept(shifted, in))
		assert.True(t, ChecksumOracle{Tolerance: 1}.Accept(shifted, in))
	})

	t.Run("long bodies are kept", func(t *testing.T) {
		body := make([]byte, 100)
		long := Seal(body, in)
		assert.Len(t, long, 100+TagSize)
		assert.True(t, ChecksumOracle{}.Accept(long, in))
	})
}

func TestGroth16Verifier(t *testing.T) {
	ccs, err := circuit.Compile()
	require.NoError(t, err)
	dir := t.TempDir()
	pk, _, err := circuit.SetupOrLoadKeys(ccs, filepath.Join(dir, "payment.pk"), filepath.Join(dir, "payment.vk"))
	require.NoError(t, err)

	verifier, err := LoadGroth16Verifier(filepath.Join(dir, "payment.vk"))
	require.NoError(t, err)

	var secret fr.Element
	secret.SetUint64(99)
	commitment := circuit.Commit(secret, 3, 4)
	proof, err := circuit.Prove(ccs, pk, secret, 3, 4)
	require.NoError(t, err)

	assert.True(t, verifier.Accept(proof, circuit.PublicInputs(commitment, 3, 4)))
	assert.False(t, verifier.Accept(proof, circuit.PublicInputs(commitment, 4, 4)))
	assert.False(t, verifier.Accept(proof, circuit.PublicInputs(commitment, 3, 4)[:2]))
	assert.False(t, verifier.Accept([]byte("garbage"), circuit.PublicInputs(commitment, 3, 4)))

	aliased := circuit.PublicInputs(commitment, 3, 4)
	aliased[0] = new(big.Int).Add(aliased[0], circuit.Curve.ScalarField())
	assert.False(t, verifier.Accept(proof, aliased))

	_, err = LoadGroth16Verifier(filepath.Join(dir, "missing.vk"))
	assert.Error(t, err)
}
