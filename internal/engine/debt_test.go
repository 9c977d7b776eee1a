package engine

import "testing"

func TestComputeDebtBalanced(t *testing.T) {
	debt := ComputeDebt(chainBase, chainArb, 15_000_000, 15_000_000, 0, 0, 10)

	if debt.AmountMicro != 0 {
		t.Fatalf("expected zero debt, got %d", debt.AmountMicro)
	}
	if debt.SourceChainID == debt.DestinationChainID {
		t.Fatal("source and destination must differ even when balanced")
	}
}

func TestComputeDebtWithBuffer(t *testing.T) {
	// Demand 10 USDC with a 10% buffer requires 11 USDC; with 5 USDC
	// available the shortfall is 6 USDC.
	debt := ComputeDebt(chainBase, chainArb, 5_000_000, 50_000_000, 10_000_000, 0, 10)

	if debt.AmountMicro != 6_000_000 {
		t.Fatalf("expected debt 6,000,000, got %d", debt.AmountMicro)
	}
	if debt.DestinationChainID != chainBase {
		t.Fatalf("deficit chain must be the destination, got %d", debt.DestinationChainID)
	}
	if debt.SourceChainID != chainArb {
		t.Fatalf("surplus chain must be the source, got %d", debt.SourceChainID)
	}
}

func TestComputeDebtLargerDeficitWins(t *testing.T) {
	// Both chains short; chain B is shorter.
	debt := ComputeDebt(chainBase, chainArb, 9_000_000, 2_000_000, 10_000_000, 10_000_000, 0)

	if debt.DestinationChainID != chainArb {
		t.Fatalf("chain with larger deficit must be destination, got %d", debt.DestinationChainID)
	}
	if debt.AmountMicro != 8_000_000 {
		t.Fatalf("expected debt 8,000,000, got %d", debt.AmountMicro)
	}
}

func TestComputeDebtZeroBuffer(t *testing.T) {
	debt := ComputeDebt(chainBase, chainArb, 10_000_000, 10_000_000, 10_000_000, 10_000_000, 0)

	if debt.AmountMicro != 0 {
		t.Fatalf("exact coverage with zero buffer is not a deficit, got %d", debt.AmountMicro)
	}
}

func TestComputeDebtNeverNegative(t *testing.T) {
	debt := ComputeDebt(chainBase, chainArb, 100_000_000, 100_000_000, 1_000_000, 1_000_000, 10)

	if debt.AmountMicro < 0 {
		t.Fatalf("debt must never be negative, got %d", debt.AmountMicro)
	}
}

func TestComputeDebtIntegerRounding(t *testing.T) {
	// 1 micro-unit of demand at 10% buffer still requires 1 micro-unit:
	// integer math rounds the buffered requirement down.
	debt := ComputeDebt(chainBase, chainArb, 0, 10_000_000, 1, 0, 10)

	if debt.AmountMicro != 1 {
		t.Fatalf("expected debt 1, got %d", debt.AmountMicro)
	}
}
