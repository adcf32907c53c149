// model.go - Execution records, payouts and ledger statistics.

package custody

import (
	"time"

	"privatepay/internal/types"
)

// ExecutionRecord is the immutable log entry of one executed transfer or withdrawal.
type ExecutionRecord struct {
	ID        types.ExecutionID
	Operation string
	From      types.Address
	To        types.Address
	Amount    uint64
	Asset     types.AssetID
	Timestamp int64 // unix nanoseconds
}

// Time returns the execution time.
func (r ExecutionRecord) Time() time.Time {
	return time.Unix(0, r.Timestamp).UTC()
}

// Stats aggregates every recorded execution.
type Stats struct {
	TotalExecutions uint64
	TotalVolume     uint64
}

// TransferItem is one leg of a batch transfer.
type TransferItem struct {
	From   types.Address
	To     types.Address
	Amount uint64
}

// Payout describes an asset leaving custody.
type Payout struct {
	Execution types.ExecutionID
	Asset     types.AssetID
	From      types.Address
	To        types.Address
	Amount    uint64
	Timestamp int64
}

const (
	opTransfer = "transfer"
	opWithdraw = "withdraw"
	opBatch    = "batch_transfer"
	opDeposit  = "deposit"
	opAuth     = "set_authorized"
)
