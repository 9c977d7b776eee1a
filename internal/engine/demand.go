package engine

import (
	"context"
	"time"

	"vault-rebalancer/internal/storage"
)

// ObligationSource supplies upcoming liquidity obligations. The seam
// exists so a richer obligation feed can replace the unlock table
// without touching downstream contracts.
type ObligationSource interface {
	ObligationsDue(ctx context.Context, from, to time.Time) ([]Obligation, error)
}

// ProjectDemand sums obligations falling on one chain. Returns zero,
// never negative, when the chain has no obligations.
func ProjectDemand(obligations []Obligation, chainID int64) int64 {
	var total int64
	for _, ob := range obligations {
		if ob.ChainID == chainID {
			total += ob.AmountMicro
		}
	}
	return total
}

// StoreObligations adapts the lp_unlocks table to an ObligationSource.
type StoreObligations struct {
	store storage.ObligationStore
}

// NewStoreObligations wraps an ObligationStore.
func NewStoreObligations(store storage.ObligationStore) *StoreObligations {
	return &StoreObligations{store: store}
}

// ObligationsDue lists unprocessed unlocks due within [from, to).
func (s *StoreObligations) ObligationsDue(ctx context.Context, from, to time.Time) ([]Obligation, error) {
	unlocks, err := s.store.ListUnlocksDue(ctx, from, to)
	if err != nil {
		return nil, err
	}

	obligations := make([]Obligation, 0, len(unlocks))
	for _, u := range unlocks {
		obligations = append(obligations, Obligation{
			ChainID:     u.ChainID,
			AmountMicro: u.AmountMicro,
			DueAt:       u.UnlockAt,
		})
	}
	return obligations, nil
}

var _ ObligationSource = (*StoreObligations)(nil)
