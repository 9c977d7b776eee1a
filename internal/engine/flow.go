package engine

import "vault-rebalancer/internal/storage"

// AggregateFlow partitions bridge events between the two chains and
// derives per-chain interest plus the net directional flow.
//
// interest(C) = reserve(C) - (inflows_to_C - outflows_from_C), floored
// at zero: unexplained reserve growth beyond tracked transfers is
// treated as yield. It assumes every event since the window start is
// visible.
func AggregateFlow(events []storage.BridgeEvent, reserves map[int64]int64, chainA, chainB int64) FlowSummary {
	inflows := make(map[int64]int64, 2)
	outflows := make(map[int64]int64, 2)
	var aToB, bToA int64

	for _, ev := range events {
		inflows[ev.DestinationChainID] += ev.AmountMicro
		outflows[ev.SourceChainID] += ev.AmountMicro

		switch {
		case ev.SourceChainID == chainA && ev.DestinationChainID == chainB:
			aToB += ev.AmountMicro
		case ev.SourceChainID == chainB && ev.DestinationChainID == chainA:
			bToA += ev.AmountMicro
		}
	}

	interest := make(map[int64]int64, 2)
	for _, chainID := range []int64{chainA, chainB} {
		netChange := inflows[chainID] - outflows[chainID]
		earned := reserves[chainID] - netChange
		if earned < 0 {
			earned = 0
		}
		interest[chainID] = earned
	}

	return FlowSummary{
		InterestMicro: interest,
		NetFlowMicro:  aToB - bToA,
	}
}
