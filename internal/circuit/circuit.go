// circuit.go - Payment circuit binding a commitment to its amount and decoy count.

// Package circuit defines the payment circuit verified by the Groth16 proof
// backend, together with its key management.
//
// A proof shows knowledge of a secret such that
//
//	Commitment = MiMC(Secret, Amount, DecoyCount)
//
// over the BN254 scalar field, without revealing the secret.
package circuit

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"privatepay/internal/types"
)

// PaymentCircuit binds a commitment to the amount and decoy count of a request.
type PaymentCircuit struct {
	// Public inputs
	Commitment frontend.Variable `gnark:",public"`
	Amount     frontend.Variable `gnark:",public"`
	DecoyCount frontend.Variable `gnark:",public"`

	// Private inputs
	Secret frontend.Variable
}

func (c *PaymentCircuit) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.Secret, c.Amount, c.DecoyCount)
	api.AssertIsEqual(c.Commitment, hasher.Sum())

	// 3 <= DecoyCount <= 8; below 3 the difference wraps around the field
	api.AssertIsLessOrEqual(api.Sub(c.DecoyCount, 3), 5)
	return nil
}

// Commit computes the commitment the circuit expects for secret, amount and decoyCount.
func Commit(secret fr.Element, amount, decoyCount uint64) types.Commitment {
	return types.NewHasher().Field(secret).Uint64(amount).Uint64(decoyCount).Sum()
}

// NewSecret draws a random commitment secret.
func NewSecret() (fr.Element, error) {
	var secret fr.Element
	if _, err := secret.SetRandom(); err != nil {
		return fr.Element{}, err
	}
	return secret, nil
}

// PublicInputs returns the public inputs of a payment in circuit order.
func PublicInputs(commitment types.Commitment, amount, decoyCount uint64) []*big.Int {
	return []*big.Int{
		commitment.Big(),
		new(big.Int).SetUint64(amount),
		new(big.Int).SetUint64(decoyCount),
	}
}
