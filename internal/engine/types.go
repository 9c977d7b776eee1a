package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// FlowSummary is the output of flow aggregation over a window of
// bridge events.
type FlowSummary struct {
	// InterestMicro estimates yield earned per chain. It attributes any
	// reserve growth not explained by tracked transfers to interest, an
	// approximation inherited from the vault design, not a ledger
	// reconciliation.
	InterestMicro map[int64]int64
	// NetFlowMicro is (A->B transfers) - (B->A transfers). Positive
	// means chain A is net losing liquidity to chain B.
	NetFlowMicro int64
}

// Obligation is liquidity that must be available on a chain by a
// given time.
type Obligation struct {
	ChainID     int64
	AmountMicro int64
	DueAt       time.Time
}

// DebtResult says who owes whom how much. AmountMicro is zero when the
// system is balanced; when positive, source and destination always
// differ.
type DebtResult struct {
	AmountMicro        int64
	SourceChainID      int64
	DestinationChainID int64
}

// ConfidenceFactors are three independent sanity checks on a
// suggested rebalance.
type ConfidenceFactors struct {
	DataFreshness       bool
	SufficientLiquidity bool
	CostEfficiency      bool
}

// Score maps the factors to {0, 1/3, 2/3, 1}.
func (f ConfidenceFactors) Score() float64 {
	trues := 0
	for _, v := range []bool{f.DataFreshness, f.SufficientLiquidity, f.CostEfficiency} {
		if v {
			trues++
		}
	}
	return float64(trues) / 3
}

// FormatMicro renders a micro-unit amount as a plain decimal string.
func FormatMicro(v int64) string {
	return decimal.New(v, -6).String()
}
