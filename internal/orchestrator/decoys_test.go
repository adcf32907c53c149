package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestDecoys(t *testing.T) {
	t.Run("count bounds", func(t *testing.T) {
		_, err := SuggestDecoys(100, 2, 1)
		assert.ErrorIs(t, err, ErrInvalidDecoyCount)
		_, err = SuggestDecoys(100, 9, 1)
		assert.ErrorIs(t, err, ErrInvalidDecoyCount)
		_, err = SuggestDecoys(0, 4, 1)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("ranges", func(t *testing.T) {
		for count := MinDecoys; count <= MaxDecoys; count++ {
			decoys, err := SuggestDecoys(1000, count, int64(count))
			require.NoError(t, err)
			require.Len(t, decoys, count)
			for _, d := range decoys {
				assert.False(t, d.Recipient.IsZero())
				assert.GreaterOrEqual(t, d.Amount, uint64(300))
				assert.LessOrEqual(t, d.Amount, uint64(3000))
				assert.GreaterOrEqual(t, d.TimingOffset, uint64(1))
				assert.LessOrEqual(t, d.TimingOffset, uint64(60))
			}
		}
	})

	t.Run("deterministic per seed", func(t *testing.T) {
		a, err := SuggestDecoys(50, 5, 42)
		require.NoError(t, err)
		b, err := SuggestDecoys(50, 5, 42)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("tiny amounts stay positive", func(t *testing.T) {
		decoys, err := SuggestDecoys(1, 8, 3)
		require.NoError(t, err)
		for _, d := range decoys {
			assert.GreaterOrEqual(t, d.Amount, uint64(1))
		}
	})
}
