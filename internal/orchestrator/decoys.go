// decoys.go - Decoy suggestions for clients building a payment request.

package orchestrator

import (
	"fmt"
	"math"
	"math/rand"

	"privatepay/internal/types"
)

const (
	minDecoyFactor = 0.3
	maxDecoyFactor = 3.0

	minTimingOffset = 1
	maxTimingOffset = 60
)

// SuggestDecoys draws count decoy descriptors around amount: amounts between
// 0.3x and 3x, timing offsets between 1 and 60 seconds, random recipients.
// The same seed always yields the same decoys.
func SuggestDecoys(amount uint64, count int, seed int64) ([]Decoy, error) {
	if count < MinDecoys || count > MaxDecoys {
		return nil, fmt.Errorf("%w: %d decoys", ErrInvalidDecoyCount, count)
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	rng := rand.New(rand.NewSource(seed))
	decoys := make([]Decoy, count)
	for i := range decoys {
		var recipient types.Address
		for recipient.IsZero() {
			_, _ = rng.Read(recipient[:])
		}
		factor := minDecoyFactor + rng.Float64()*(maxDecoyFactor-minDecoyFactor)
		var decoyAmount uint64
		switch scaled := float64(amount) * factor; {
		case scaled >= math.MaxUint64:
			decoyAmount = math.MaxUint64
		case scaled < 1:
			decoyAmount = 1
		default:
			decoyAmount = uint64(scaled)
		}
		decoys[i] = Decoy{
			Recipient:    recipient,
			Amount:       decoyAmount,
			TimingOffset: uint64(minTimingOffset + rng.Intn(maxTimingOffset-minTimingOffset+1)),
		}
	}
	return decoys, nil
}
