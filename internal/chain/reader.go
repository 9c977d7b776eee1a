package chain

import (
	"context"
	"errors"
)

// ErrUnreachable marks a failed or timed-out chain-state read. Callers
// treat it as fatal for the current analysis run.
var ErrUnreachable = errors.New("chain: unreachable")

// Reserve is the observed state of a vault at read time.
type Reserve struct {
	// TotalMicro is the vault's total USDC reserve in micro-units.
	TotalMicro  int64
	BlockNumber uint64
}

// ReserveReader reads the current vault reserve on one chain.
type ReserveReader interface {
	ReadReserve(ctx context.Context, chainID int64) (Reserve, error)
}
