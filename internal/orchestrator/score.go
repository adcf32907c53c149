// score.go - Privacy score, rating bands and recommendations.

package orchestrator

import (
	"math"
	"math/bits"
	"time"
)

// CalculatePrivacyScore derives the 0-100 privacy score of a profile.
//
// The volume, decoy and complexity bonuses are capped individually but their
// sum is only bounded by the final clamp.
func CalculatePrivacyScore(p Profile) uint64 {
	if p.TotalTransactions == 0 {
		return DefaultPrivacyScore
	}
	const base = 60
	volumeBonus := min(p.TotalTransactions, 20)
	decoyBonus := mulSat(decoyRatio(p), 25) / 100
	complexityBonus := min(p.PatternComplexity, 15)
	return min(addSat(base+volumeBonus+complexityBonus, decoyBonus), MaxPrivacyScore)
}

// decoyRatio is the number of decoys per payment, in percent.
func decoyRatio(p Profile) uint64 {
	if p.TotalTransactions == 0 {
		return 0
	}
	t := p.TotalTransactions
	// rem < t, so rem*100/t fits and is below 100
	hi, lo := bits.Mul64(p.SuccessfulDecoys%t, 100)
	frac, _ := bits.Div64(hi, lo, t)
	return addSat(mulSat(p.SuccessfulDecoys/t, 100), frac)
}

// nextComplexity folds a payment's decoy count into the pattern complexity.
func nextComplexity(p Profile, decoys uint64) uint64 {
	if p.TotalTransactions == 0 {
		return decoys
	}
	return (p.PatternComplexity + decoys + 1) / 2
}

// Rating names the band a score falls into.
func Rating(score uint64) string {
	switch {
	case score >= 95:
		return "Excellent"
	case score >= 85:
		return "Very Good"
	case score >= 75:
		return "Good"
	case score >= 60:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

// TrackingResistance is the decoy ratio in percent, capped at 100.
func TrackingResistance(p Profile) uint64 {
	return min(decoyRatio(p), 100)
}

func recommendations(p Profile, now time.Time) []string {
	if p.TotalTransactions == 0 {
		return []string{"Settle a first private payment to start building a privacy profile"}
	}
	var out []string
	if p.SuccessfulDecoys < p.TotalTransactions*5 {
		out = append(out, "Increase decoy count for higher-value transactions")
	}
	if p.PatternComplexity < 5 {
		out = append(out, "Vary transaction amounts to avoid pattern recognition")
	}
	if last := p.LastTransactionTime(); !last.IsZero() && now.Sub(last) < time.Hour {
		out = append(out, "Use different timing intervals between payments")
	}
	if len(out) == 0 {
		out = append(out, "Keep the current payment pattern")
	}
	return out
}

func mulSat(a, b uint64) uint64 {
	if a != 0 && b > math.MaxUint64/a {
		return math.MaxUint64
	}
	return a * b
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
