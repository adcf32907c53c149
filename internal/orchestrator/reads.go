// reads.go - Read-only views of profiles, balances, commitments and global counters.

package orchestrator

import (
	"context"

	"privatepay/internal/storage"
	"privatepay/internal/types"
)

// CalculatePrivacyScore computes the current privacy score of account.
func (o *Orchestrator) CalculatePrivacyScore(ctx context.Context, account types.Address) (uint64, error) {
	p, err := o.Profile(ctx, account)
	if err != nil {
		return 0, err
	}
	return CalculatePrivacyScore(p), nil
}

// Profile returns the privacy profile of account, zero-valued for unknown accounts.
func (o *Orchestrator) Profile(ctx context.Context, account types.Address) (Profile, error) {
	_, release, err := o.gate.Enter(ctx)
	if err != nil {
		return Profile{}, err
	}
	defer release()

	var p Profile
	err = storage.View(o.db, func(tx *storage.Tx) error {
		p, _, err = o.profile(tx, account)
		return err
	})
	return p, err
}

// PrivacyMetrics reports the privacy statistics of account.
func (o *Orchestrator) PrivacyMetrics(ctx context.Context, account types.Address) (*PrivacyMetrics, error) {
	p, err := o.Profile(ctx, account)
	if err != nil {
		return nil, err
	}
	score := CalculatePrivacyScore(p)
	return &PrivacyMetrics{
		TotalPayments:      p.TotalTransactions,
		TotalDecoys:        p.SuccessfulDecoys,
		PatternComplexity:  p.PatternComplexity,
		PrivacyScore:       score,
		StoredScore:        p.PrivacyScore,
		Rating:             Rating(score),
		TrackingResistance: TrackingResistance(p),
		LastPayment:        p.LastTransactionTime(),
		Recommendations:    recommendations(p, o.now()),
	}, nil
}

// VaultBalance returns the vault balance of account.
func (o *Orchestrator) VaultBalance(ctx context.Context, account types.Address) (uint64, error) {
	_, release, err := o.gate.Enter(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	var balance uint64
	err = o.db.View(storage.RetrieveOrDefault(vaultKey(account), &balance))
	return balance, err
}

// GlobalStats returns the settlement counters and the average stored privacy
// score over every profile.
func (o *Orchestrator) GlobalStats(ctx context.Context) (GlobalStats, error) {
	_, release, err := o.gate.Enter(ctx)
	if err != nil {
		return GlobalStats{}, err
	}
	defer release()

	var counters settlementCounters
	var summary profileSummary
	err = storage.View(o.db, func(tx *storage.Tx) error {
		if err := tx.Do(storage.RetrieveOrDefault(globalStatsKey(), &counters)); err != nil {
			return err
		}
		return tx.Do(storage.RetrieveOrDefault(summaryKey(), &summary))
	})
	if err != nil {
		return GlobalStats{}, err
	}

	stats := GlobalStats{
		SettledPayments: counters.SettledPayments,
		DecoysEmitted:   counters.DecoysEmitted,
		Profiles:        summary.Profiles,
	}
	if summary.Profiles > 0 {
		stats.AveragePrivacyScore = summary.ScoreSum / summary.Profiles
	}
	return stats, nil
}

// IsCommitmentUsed reports whether a commitment was consumed by a settlement.
func (o *Orchestrator) IsCommitmentUsed(ctx context.Context, c types.Commitment) (bool, error) {
	_, release, err := o.gate.Enter(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	var used bool
	err = o.db.View(storage.Check(commitmentKey(c), &used))
	return used, err
}

// Commitment returns the consumption record of c, or storage.ErrNotFound.
func (o *Orchestrator) Commitment(ctx context.Context, c types.Commitment) (*CommitmentRecord, error) {
	_, release, err := o.gate.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var record CommitmentRecord
	if err := o.db.View(storage.Retrieve(commitmentKey(c), &record)); err != nil {
		return nil, err
	}
	return &record, nil
}

// Noise returns a stored noise record, or storage.ErrNotFound.
func (o *Orchestrator) Noise(ctx context.Context, fp types.Hash) (*NoiseRecord, error) {
	_, release, err := o.gate.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var record NoiseRecord
	if err := o.db.View(storage.Retrieve(noiseKey(fp), &record)); err != nil {
		return nil, err
	}
	return &record, nil
}
