// payment.go - Private payment settlement pipeline.

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"privatepay/internal/circuit"
	"privatepay/internal/events"
	"privatepay/internal/storage"
	"privatepay/internal/types"
)

func vaultKey(account types.Address) []byte {
	return storage.MakeKey(storage.CodeVaultBalance, account)
}

func commitmentKey(c types.Commitment) []byte {
	return storage.MakeKey(storage.CodeCommitment, c)
}

func profileKey(account types.Address) []byte {
	return storage.MakeKey(storage.CodeProfile, account)
}

func noiseKey(fp types.Hash) []byte {
	return storage.MakeKey(storage.CodeNoise, fp)
}

func globalStatsKey() []byte {
	return storage.MakeKey(storage.CodeGlobalStats)
}

func summaryKey() []byte {
	return storage.MakeKey(storage.CodeProfileSummary)
}

// ExecutePrivatePayment validates req and, if every check passes, consumes its
// commitment, emits noise for each decoy and pays req.Amount from the caller's
// vault balance to req.Recipient.
//
// Checks run in a fixed order and the first failing one decides the error:
// amount and recipient, decoy count, commitment freshness, vault balance,
// proof acceptance, privacy score.
func (o *Orchestrator) ExecutePrivatePayment(ctx context.Context, caller types.Address, req Request, decoys []Decoy) (*Receipt, error) {
	ctx, release, err := o.gate.EnterMutating(ctx)
	if err != nil {
		return nil, o.reject(err)
	}
	defer release()

	ctx, releaseCache, err := o.cache.Lock(ctx)
	if err != nil {
		return nil, o.reject(err)
	}
	defer releaseCache()

	ctx, releaseLedger, err := o.ledger.Lock(ctx)
	if err != nil {
		return nil, o.reject(err)
	}
	defer releaseLedger()

	start := o.now()
	var receipt *Receipt
	err = storage.Update(o.db, func(tx *storage.Tx) error {
		receipt, err = o.settle(ctx, tx, caller, req, decoys)
		return err
	})
	if err != nil {
		return nil, o.reject(err)
	}
	o.metrics.Settlement(len(decoys), o.now().Sub(start))
	return receipt, nil
}

func (o *Orchestrator) settle(ctx context.Context, tx *storage.Tx, caller types.Address, req Request, decoys []Decoy) (*Receipt, error) {
	// received -> validated
	if req.Amount == 0 {
		return nil, ErrInvalidAmount
	}
	if req.Recipient.IsZero() {
		return nil, ErrInvalidRecipient
	}
	if caller.IsZero() {
		return nil, ErrInvalidAddress
	}
	if len(decoys) < MinDecoys || len(decoys) > MaxDecoys {
		return nil, fmt.Errorf("%w: %d decoys", ErrInvalidDecoyCount, len(decoys))
	}
	if req.DecoyCount != len(decoys) {
		return nil, fmt.Errorf("%w: request declares %d decoys, %d supplied", ErrInvalidDecoyCount, req.DecoyCount, len(decoys))
	}
	var used bool
	if err := tx.Do(storage.Check(commitmentKey(req.Commitment), &used)); err != nil {
		return nil, err
	}
	if used {
		return nil, fmt.Errorf("%w: %s", ErrCommitmentAlreadyUsed, req.Commitment)
	}
	balance, err := o.vaultBalance(tx, caller)
	if err != nil {
		return nil, err
	}
	if balance < req.Amount {
		return nil, fmt.Errorf("%w: vault holds %d, needs %d", ErrInsufficientBalance, balance, req.Amount)
	}

	// validated -> proof-checked
	decoyCount := uint64(len(decoys))
	inputs := circuit.PublicInputs(req.Commitment, req.Amount, decoyCount)
	accepted, err := o.cache.VerifyTx(ctx, tx, caller, req.Proof, inputs)
	if err != nil {
		return nil, err
	}
	if !accepted {
		return nil, ErrInvalidZKProof
	}

	// proof-checked -> score-checked
	profile, existed, err := o.profile(tx, caller)
	if err != nil {
		return nil, err
	}
	if score := CalculatePrivacyScore(profile); score < o.minimum {
		return nil, fmt.Errorf("%w: %d", ErrPrivacyScoreTooLow, score)
	}

	// score-checked -> committed
	now := o.now()
	commitment := CommitmentRecord{Caller: caller, Timestamp: now.UnixNano()}
	err = tx.Do(storage.Insert(commitmentKey(req.Commitment), commitment))
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil, fmt.Errorf("%w: %s", ErrCommitmentAlreadyUsed, req.Commitment)
	}
	if err != nil {
		return nil, fmt.Errorf("could not consume commitment: %w", err)
	}

	noise := make([]types.Hash, 0, len(decoys))
	for i, decoy := range decoys {
		record := NoiseRecord{
			Fingerprint:  noiseFingerprint(decoy, now.UnixNano(), uint64(i)),
			Commitment:   req.Commitment,
			Index:        uint64(i),
			TimingOffset: decoy.TimingOffset,
			Timestamp:    now.UnixNano(),
		}
		err := tx.Do(storage.Insert(noiseKey(record.Fingerprint), record))
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%w: decoy %d", ErrNoiseCollision, i)
		}
		if err != nil {
			return nil, fmt.Errorf("could not store noise record: %w", err)
		}
		noise = append(noise, record.Fingerprint)
		tx.OnSucceed(func() {
			o.emitter.Emit(events.Event{
				Kind:   events.DecoyNoise,
				Source: source,
				Caller: caller,
				Time:   now,
				Fields: map[string]interface{}{
					"fingerprint":   record.Fingerprint.Hex(),
					"index":         record.Index,
					"timing_offset": record.TimingOffset,
				},
			})
		})
	}

	if err := tx.Do(storage.Upsert(vaultKey(caller), balance-req.Amount)); err != nil {
		return nil, fmt.Errorf("could not debit vault: %w", err)
	}
	execution, err := o.ledger.TransferTx(ctx, tx, o.self, caller, req.Recipient, req.Amount, types.NativeAsset)
	if err != nil {
		return nil, fmt.Errorf("settlement transfer: %w", err)
	}
	commitment.Execution = execution
	if err := tx.Do(storage.Upsert(commitmentKey(req.Commitment), commitment)); err != nil {
		return nil, fmt.Errorf("could not link commitment to execution: %w", err)
	}

	// committed -> settled
	before := profile.PrivacyScore
	profile.PatternComplexity = nextComplexity(profile, decoyCount)
	profile.TotalTransactions++
	profile.SuccessfulDecoys = addSat(profile.SuccessfulDecoys, decoyCount)
	profile.PrivacyScore = CalculatePrivacyScore(profile)
	profile.LastTransaction = now.UnixNano()
	if err := o.storeProfile(tx, caller, profile, before, existed); err != nil {
		return nil, err
	}

	var counters settlementCounters
	if err := tx.Do(storage.RetrieveOrDefault(globalStatsKey(), &counters)); err != nil {
		return nil, err
	}
	counters.SettledPayments++
	counters.DecoysEmitted = addSat(counters.DecoysEmitted, decoyCount)
	if err := tx.Do(storage.Upsert(globalStatsKey(), counters)); err != nil {
		return nil, fmt.Errorf("could not update global stats: %w", err)
	}

	receipt := &Receipt{
		Execution:    execution,
		Commitment:   req.Commitment,
		Noise:        noise,
		PrivacyScore: profile.PrivacyScore,
		Rating:       Rating(profile.PrivacyScore),
		SettledAt:    now,
	}
	tx.OnSucceed(func() {
		o.log.Info().
			Str("caller", caller.Hex()).
			Str("commitment", req.Commitment.Hex()).
			Int("decoys", len(decoys)).
			Uint64("privacy_score", profile.PrivacyScore).
			Msg("private payment settled")
		o.emitter.Emit(events.Event{
			Kind:   events.PaymentSettled,
			Source: source,
			Caller: caller,
			Time:   now,
			Fields: map[string]interface{}{
				"commitment":    req.Commitment.Hex(),
				"decoys":        len(decoys),
				"privacy_score": profile.PrivacyScore,
				"execution":     execution.Hex(),
			},
		})
	})
	return receipt, nil
}

// noiseFingerprint derives the identifier of a decoy's noise record.
func noiseFingerprint(d Decoy, now int64, index uint64) types.Hash {
	return types.NewHasher().
		Address(d.Recipient).
		Uint64(d.Amount).
		Uint64(d.TimingOffset).
		Int64(now).
		Uint64(index).
		Sum()
}

// profile loads the profile of account, zero-valued if it does not exist yet.
func (o *Orchestrator) profile(tx *storage.Tx, account types.Address) (Profile, bool, error) {
	var p Profile
	var exists bool
	if err := tx.Do(storage.Check(profileKey(account), &exists)); err != nil {
		return Profile{}, false, err
	}
	if !exists {
		return Profile{}, false, nil
	}
	if err := tx.Do(storage.Retrieve(profileKey(account), &p)); err != nil {
		return Profile{}, false, fmt.Errorf("could not read profile: %w", err)
	}
	return p, true, nil
}

// storeProfile writes p and folds the score change into the running summary.
func (o *Orchestrator) storeProfile(tx *storage.Tx, account types.Address, p Profile, before uint64, existed bool) error {
	if err := tx.Do(storage.Upsert(profileKey(account), p)); err != nil {
		return fmt.Errorf("could not store profile: %w", err)
	}
	var summary profileSummary
	if err := tx.Do(storage.RetrieveOrDefault(summaryKey(), &summary)); err != nil {
		return err
	}
	if !existed {
		summary.Profiles++
		before = 0
	}
	summary.ScoreSum = summary.ScoreSum - before + p.PrivacyScore
	if err := tx.Do(storage.Upsert(summaryKey(), summary)); err != nil {
		return fmt.Errorf("could not update profile summary: %w", err)
	}
	return nil
}

func (o *Orchestrator) vaultBalance(tx *storage.Tx, account types.Address) (uint64, error) {
	var balance uint64
	if err := tx.Do(storage.RetrieveOrDefault(vaultKey(account), &balance)); err != nil {
		return 0, fmt.Errorf("could not read vault balance: %w", err)
	}
	return balance, nil
}
