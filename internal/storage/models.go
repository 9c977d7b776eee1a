package storage

import (
	"encoding/json"
	"time"
)

// All monetary amounts are stored as integers scaled by 10^6 (USDC
// decimals). Integer math end to end keeps repeated runs drift-free.

// ChainSnapshot is one observation of a vault's reserves.
// Immutable after insertion; LockedMicro is always zero today because
// per-user lock accounting is not wired in, but the column keeps the
// seam for a real lock ledger.
type ChainSnapshot struct {
	ID                int64
	ChainID           int64
	TotalReserveMicro int64
	LockedMicro       int64
	AvailableMicro    int64
	CapturedAt        time.Time
	BlockNumber       int64
	CreatedAt         time.Time
}

// BridgeEvent is a cross-chain transfer observed by external chain
// monitoring. Read-only input to the engine.
type BridgeEvent struct {
	ID                 int64
	TxHash             string
	UserAddress        string
	AmountMicro        int64
	SourceChainID      int64
	DestinationChainID int64
	BlockNumber        int64
	OccurredAt         time.Time
	Status             string
}

// LPUnlock is an upcoming liquidity obligation: funds that must be
// available on a chain by the unlock time.
type LPUnlock struct {
	ID          int64
	ChainID     int64
	LPAddress   string
	AmountMicro int64
	UnlockAt    time.Time
	Processed   bool
}

// ReasoningRecord is the persisted audit trail of one analysis run.
// Never mutated after insertion.
type ReasoningRecord struct {
	ID                   int64
	AnalysisAt           time.Time
	InterestAMicro       int64
	InterestBMicro       int64
	NetFlowMicro         int64
	DebtMicro            int64
	SourceChainID        int64
	DestinationChainID   int64
	NeedsRebalance       bool
	SuggestedAmountMicro int64
	SuggestedRoute       json.RawMessage
	Thoughts             []string
	DataFreshness        bool
	SufficientLiquidity  bool
	CostEfficiency       bool
	ConfidenceScore      float64
	SnapshotAID          int64
	SnapshotBID          int64
	EventIDs             []int64
	CreatedAt            time.Time
}

// Rebalance action statuses. Transitions only move forward:
// suggested -> executed or suggested -> failed.
const (
	ActionSuggested = "suggested"
	ActionExecuted  = "executed"
	ActionFailed    = "failed"
)

// RebalanceAction is a suggested (and possibly later executed)
// cross-chain transfer.
type RebalanceAction struct {
	ID                 int64
	ActionAt           time.Time
	SourceChainID      int64
	DestinationChainID int64
	AmountMicro        int64
	NetDebtMicro       int64
	Route              json.RawMessage
	Status             string
	TxHash             *string
	ReasoningID        int64
	CreatedAt          time.Time
}
