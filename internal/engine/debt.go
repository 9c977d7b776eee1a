package engine

// ComputeDebt combines available reserves, projected demand, and the
// safety buffer into a signed who-owes-whom result.
//
// required(C) = demand(C) * (100 + bufferPct) / 100, in integer math
// rounded down. debt(C) = max(0, required(C) - available(C)). The
// chain with the larger debt becomes the destination. When both debts
// are zero the orientation is arbitrary (chain A as source) since no
// action will be taken.
func ComputeDebt(chainA, chainB int64, availableA, availableB, demandA, demandB, bufferPct int64) DebtResult {
	debtA := chainDebt(availableA, demandA, bufferPct)
	debtB := chainDebt(availableB, demandB, bufferPct)

	if debtA > debtB {
		return DebtResult{
			AmountMicro:        debtA,
			SourceChainID:      chainB,
			DestinationChainID: chainA,
		}
	}
	return DebtResult{
		AmountMicro:        debtB,
		SourceChainID:      chainA,
		DestinationChainID: chainB,
	}
}

func chainDebt(available, demand, bufferPct int64) int64 {
	required := demand * (100 + bufferPct) / 100
	if required <= available {
		return 0
	}
	return required - available
}
