package engine

import (
	"fmt"
	"strings"
	"time"

	"vault-rebalancer/internal/config"
	"vault-rebalancer/internal/route"
	"vault-rebalancer/internal/storage"
)

// ComposeInput collects everything a finished analysis needs to turn
// into a reasoning trace.
type ComposeInput struct {
	ChainA, ChainB config.ChainConfig
	SnapA, SnapB   storage.ChainSnapshot
	Flow           FlowSummary
	Obligations    []Obligation
	Debt           DebtResult
	NeedsRebalance bool
	Quote          *route.Quote
	AnalysisAt     time.Time
	Freshness      time.Duration
}

// Compose deterministically assembles the human-readable thought
// sequence and the confidence factors. Pure: same input, same output.
func Compose(in ComposeInput) ([]string, ConfidenceFactors) {
	thoughts := []string{
		chainStateThought(in.ChainA, in.SnapA),
		interestThought(in.ChainA, in.Flow.InterestMicro[in.ChainA.ChainID]),
		chainStateThought(in.ChainB, in.SnapB),
		interestThought(in.ChainB, in.Flow.InterestMicro[in.ChainB.ChainID]),
		fmt.Sprintf("Net transfer flow %s->%s: %s USDC",
			in.ChainA.Name, in.ChainB.Name, FormatMicro(in.Flow.NetFlowMicro)),
		obligationsThought(in),
		debtThought(in),
		routeThought(in),
	}

	factors := ConfidenceFactors{
		DataFreshness: snapshotsFresh(in),
	}
	if in.Quote != nil {
		sourceTotal := in.SnapA.TotalReserveMicro
		if in.Debt.SourceChainID == in.ChainB.ChainID {
			sourceTotal = in.SnapB.TotalReserveMicro
		}
		factors.SufficientLiquidity = in.Debt.AmountMicro < sourceTotal/2
		factors.CostEfficiency = in.Quote.EstimatedCostMicro < in.Debt.AmountMicro/100
	}

	return thoughts, factors
}

func snapshotsFresh(in ComposeInput) bool {
	ageA := in.AnalysisAt.Sub(in.SnapA.CapturedAt)
	ageB := in.AnalysisAt.Sub(in.SnapB.CapturedAt)
	oldest := ageA
	if ageB > oldest {
		oldest = ageB
	}
	return oldest < in.Freshness
}

func chainStateThought(c config.ChainConfig, snap storage.ChainSnapshot) string {
	return fmt.Sprintf("Analyzed %s (chain %d): %s USDC total reserve at block %d",
		c.Name, c.ChainID, FormatMicro(snap.TotalReserveMicro), snap.BlockNumber)
}

func interestThought(c config.ChainConfig, interest int64) string {
	return fmt.Sprintf("%s interest earned: %s USDC", c.Name, FormatMicro(interest))
}

func obligationsThought(in ComposeInput) string {
	countA, countB := 0, 0
	var sumA, sumB int64
	for _, ob := range in.Obligations {
		switch ob.ChainID {
		case in.ChainA.ChainID:
			countA++
			sumA += ob.AmountMicro
		case in.ChainB.ChainID:
			countB++
			sumB += ob.AmountMicro
		}
	}
	return fmt.Sprintf("Upcoming obligations (24h): %s=%d (%s USDC), %s=%d (%s USDC)",
		in.ChainA.Name, countA, FormatMicro(sumA),
		in.ChainB.Name, countB, FormatMicro(sumB))
}

func debtThought(in ComposeInput) string {
	if in.Debt.AmountMicro == 0 {
		return "Debt calculation: reserves cover projected demand on both chains"
	}
	return fmt.Sprintf("Debt calculation: chain %d needs %s USDC",
		in.Debt.DestinationChainID, FormatMicro(in.Debt.AmountMicro))
}

func routeThought(in ComposeInput) string {
	if !in.NeedsRebalance {
		return "No rebalancing needed: debt is under the configured threshold"
	}
	if in.Quote == nil {
		return "No actionable route available from the quoting service"
	}
	tools := make([]string, 0, len(in.Quote.Steps))
	for _, s := range in.Quote.Steps {
		tools = append(tools, s.Tool)
	}
	return fmt.Sprintf("Route found: %s (est. cost %s USDC)",
		strings.Join(tools, " -> "), FormatMicro(in.Quote.EstimatedCostMicro))
}
