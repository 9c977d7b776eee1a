package engine

import (
	"context"
	"testing"
	"time"

	"vault-rebalancer/internal/storage"
)

func TestProjectDemandSumsPerChain(t *testing.T) {
	obligations := []Obligation{
		{ChainID: chainBase, AmountMicro: 3_000_000},
		{ChainID: chainArb, AmountMicro: 1_000_000},
		{ChainID: chainBase, AmountMicro: 2_000_000},
	}

	if got := ProjectDemand(obligations, chainBase); got != 5_000_000 {
		t.Fatalf("expected 5,000,000 for Base, got %d", got)
	}
	if got := ProjectDemand(obligations, chainArb); got != 1_000_000 {
		t.Fatalf("expected 1,000,000 for Arb, got %d", got)
	}
	if got := ProjectDemand(obligations, 1); got != 0 {
		t.Fatalf("unknown chain must project zero demand, got %d", got)
	}
}

type fakeUnlockStore struct {
	unlocks []storage.LPUnlock
}

func (f *fakeUnlockStore) ListUnlocksDue(_ context.Context, _, _ time.Time) ([]storage.LPUnlock, error) {
	return f.unlocks, nil
}

func TestStoreObligationsMapsUnlocks(t *testing.T) {
	due := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeUnlockStore{unlocks: []storage.LPUnlock{
		{ChainID: chainBase, AmountMicro: 4_000_000, UnlockAt: due},
	}}

	obligations, err := NewStoreObligations(src).ObligationsDue(context.Background(), due.Add(-time.Hour), due.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(obligations) != 1 {
		t.Fatalf("expected one obligation, got %d", len(obligations))
	}
	ob := obligations[0]
	if ob.ChainID != chainBase || ob.AmountMicro != 4_000_000 || !ob.DueAt.Equal(due) {
		t.Fatalf("unexpected obligation: %+v", ob)
	}
}

func TestConfidenceScoreValues(t *testing.T) {
	cases := []struct {
		factors ConfidenceFactors
		want    float64
	}{
		{ConfidenceFactors{}, 0},
		{ConfidenceFactors{DataFreshness: true}, 1.0 / 3},
		{ConfidenceFactors{DataFreshness: true, SufficientLiquidity: true}, 2.0 / 3},
		{ConfidenceFactors{DataFreshness: true, SufficientLiquidity: true, CostEfficiency: true}, 1},
	}

	for _, tc := range cases {
		if got := tc.factors.Score(); got != tc.want {
			t.Fatalf("factors %+v: expected score %v, got %v", tc.factors, tc.want, got)
		}
	}
}

func TestFormatMicro(t *testing.T) {
	if got := FormatMicro(15_234_000_000); got != "15234" {
		t.Fatalf("expected 15234, got %s", got)
	}
	if got := FormatMicro(6_500_000); got != "6.5" {
		t.Fatalf("expected 6.5, got %s", got)
	}
	if got := FormatMicro(-1_000_000); got != "-1" {
		t.Fatalf("expected -1, got %s", got)
	}
}
