package engine

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"vault-rebalancer/internal/config"
	"vault-rebalancer/internal/route"
	"vault-rebalancer/internal/storage"
)

func composeFixture() ComposeInput {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return ComposeInput{
		ChainA: config.ChainConfig{Name: "Base", ChainID: chainBase},
		ChainB: config.ChainConfig{Name: "Arbitrum", ChainID: chainArb},
		SnapA: storage.ChainSnapshot{
			ChainID:           chainBase,
			TotalReserveMicro: 15_234_000_000,
			CapturedAt:        at.Add(-time.Minute),
			BlockNumber:       1200,
		},
		SnapB: storage.ChainSnapshot{
			ChainID:           chainArb,
			TotalReserveMicro: 13_034_000_000,
			CapturedAt:        at.Add(-time.Minute),
			BlockNumber:       3400,
		},
		Flow: FlowSummary{
			InterestMicro: map[int64]int64{chainBase: 12_000_000, chainArb: 9_000_000},
			NetFlowMicro:  1_100_000_000,
		},
		Debt:       DebtResult{AmountMicro: 0, SourceChainID: chainBase, DestinationChainID: chainArb},
		AnalysisAt: at,
		Freshness:  5 * time.Minute,
	}
}

func TestComposeThoughtOrdering(t *testing.T) {
	thoughts, _ := Compose(composeFixture())

	if len(thoughts) != 8 {
		t.Fatalf("expected 8 thoughts, got %d", len(thoughts))
	}

	markers := []string{
		"Analyzed Base",
		"Base interest earned",
		"Analyzed Arbitrum",
		"Arbitrum interest earned",
		"Net transfer flow",
		"Upcoming obligations",
		"Debt calculation",
		"No rebalancing needed",
	}
	for i, marker := range markers {
		if !strings.Contains(thoughts[i], marker) {
			t.Fatalf("thought %d should contain %q, got %q", i, marker, thoughts[i])
		}
	}
}

func TestComposeDeterministic(t *testing.T) {
	in := composeFixture()

	thoughtsA, factorsA := Compose(in)
	thoughtsB, factorsB := Compose(in)

	if !reflect.DeepEqual(thoughtsA, thoughtsB) || factorsA != factorsB {
		t.Fatal("composition must be deterministic for the same input")
	}
}

func TestComposeNoRouteFactorsFalse(t *testing.T) {
	in := composeFixture()
	in.Debt = DebtResult{AmountMicro: 6_000_000, SourceChainID: chainArb, DestinationChainID: chainBase}
	in.NeedsRebalance = true
	in.Quote = nil

	thoughts, factors := Compose(in)

	if factors.SufficientLiquidity || factors.CostEfficiency {
		t.Fatal("route-dependent factors must be false without a quote")
	}
	if !strings.Contains(thoughts[7], "No actionable route") {
		t.Fatalf("expected no-route thought, got %q", thoughts[7])
	}
}

func TestComposeRouteFactors(t *testing.T) {
	in := composeFixture()
	in.Debt = DebtResult{AmountMicro: 6_000_000_000, SourceChainID: chainArb, DestinationChainID: chainBase}
	in.NeedsRebalance = true
	in.Quote = &route.Quote{
		Steps:              []route.Step{{Tool: "stargate"}, {Tool: "hop"}},
		EstimatedCostMicro: 1_500_000,
	}

	thoughts, factors := Compose(in)

	// Source is Arbitrum with 13,034 USDC: a 6,000 USDC move is under
	// half the reserve, and cost 1.5 is under 1% of the amount.
	if !factors.SufficientLiquidity {
		t.Fatal("expected sufficient liquidity to hold")
	}
	if !factors.CostEfficiency {
		t.Fatal("expected cost efficiency to hold")
	}
	if !strings.Contains(thoughts[7], "stargate -> hop") {
		t.Fatalf("expected route tools in thought, got %q", thoughts[7])
	}
}

func TestComposeStaleSnapshots(t *testing.T) {
	in := composeFixture()
	in.SnapB.CapturedAt = in.AnalysisAt.Add(-10 * time.Minute)

	_, factors := Compose(in)

	if factors.DataFreshness {
		t.Fatal("a stale snapshot must fail the freshness check")
	}
}
