package orchestrator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePrivacyScore(t *testing.T) {
	cases := []struct {
		name    string
		profile Profile
		want    uint64
	}{
		{"new account", Profile{}, 50},
		{"stored score is ignored", Profile{PrivacyScore: 3}, 50},
		{"no decoys", Profile{TotalTransactions: 10}, 70},
		{"volume bonus caps at 20", Profile{TotalTransactions: 100}, 80},
		{"one decoy per payment", Profile{TotalTransactions: 2, SuccessfulDecoys: 2, PatternComplexity: 1}, 88},
		{"fractional ratio", Profile{TotalTransactions: 3, SuccessfulDecoys: 1, PatternComplexity: 20}, 86},
		{"bonuses overlap past the clamp", Profile{TotalTransactions: 1, SuccessfulDecoys: 4, PatternComplexity: 4}, 100},
		{"saturated counters", Profile{TotalTransactions: math.MaxUint64, SuccessfulDecoys: math.MaxUint64, PatternComplexity: math.MaxUint64}, 100},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, CalculatePrivacyScore(c.profile))
		})
	}
}

func TestPrivacyScoreBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10_000; i++ {
		p := Profile{
			TotalTransactions: rng.Uint64() >> uint(rng.Intn(64)),
			SuccessfulDecoys:  rng.Uint64() >> uint(rng.Intn(64)),
			PatternComplexity: rng.Uint64() >> uint(rng.Intn(64)),
			PrivacyScore:      rng.Uint64(),
		}
		score := CalculatePrivacyScore(p)
		assert.LessOrEqual(t, score, uint64(MaxPrivacyScore))
		assert.Equal(t, score, CalculatePrivacyScore(p))
		if p.TotalTransactions > 0 {
			assert.GreaterOrEqual(t, score, uint64(60))
		}
	}
}

func TestDecoyRatio(t *testing.T) {
	huge := uint64(math.MaxUint64 / 50)
	cases := []struct {
		name string
		p    Profile
		want uint64
	}{
		{"empty", Profile{}, 0},
		{"one decoy each", Profile{TotalTransactions: 3, SuccessfulDecoys: 3}, 100},
		{"truncates", Profile{TotalTransactions: 3, SuccessfulDecoys: 10}, 333},
		{"large remainder", Profile{TotalTransactions: huge, SuccessfulDecoys: huge - 1}, 99},
		{"large quotient saturates", Profile{TotalTransactions: 1, SuccessfulDecoys: math.MaxUint64}, math.MaxUint64},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, decoyRatio(c.p))
		})
	}
}

func TestNextComplexity(t *testing.T) {
	assert.Equal(t, uint64(6), nextComplexity(Profile{}, 6))
	assert.Equal(t, uint64(5), nextComplexity(Profile{TotalTransactions: 1, PatternComplexity: 4}, 5))
	assert.Equal(t, uint64(4), nextComplexity(Profile{TotalTransactions: 3, PatternComplexity: 4}, 3))
}

func TestRating(t *testing.T) {
	for score, want := range map[uint64]string{
		100: "Excellent",
		95:  "Excellent",
		94:  "Very Good",
		85:  "Very Good",
		75:  "Good",
		60:  "Fair",
		59:  "Needs Improvement",
		0:   "Needs Improvement",
	} {
		assert.Equal(t, want, Rating(score), "score %d", score)
	}
}

func TestTrackingResistance(t *testing.T) {
	assert.Zero(t, TrackingResistance(Profile{}))
	assert.Equal(t, uint64(50), TrackingResistance(Profile{TotalTransactions: 2, SuccessfulDecoys: 1}))
	assert.Equal(t, uint64(100), TrackingResistance(Profile{TotalTransactions: 1, SuccessfulDecoys: 8}))
}
