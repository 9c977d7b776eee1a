package route

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoRoute indicates the quoting service returned zero candidates or
// failed. Non-fatal: an analysis run degrades to "no actionable route".
var ErrNoRoute = errors.New("route: no route available")

// Request describes a desired cross-chain transfer to quote.
type Request struct {
	FromChainID int64
	ToChainID   int64
	FromToken   string
	ToToken     string
	FromAddress string
	ToAddress   string
	AmountMicro int64
}

// Step is one hop of a candidate route.
type Step struct {
	Tool            string
	DurationSeconds int64
}

// Quote is a candidate transfer route. Opaque beyond these fields; Raw
// carries the provider payload for later execution.
type Quote struct {
	Steps []Step
	// EstimatedCostMicro is the quoted gas cost converted to USDC
	// micro-units (USD parity assumed for a dollar stablecoin).
	EstimatedCostMicro int64
	Raw                json.RawMessage
}

// Quoter retrieves candidate routes, best first.
type Quoter interface {
	Routes(ctx context.Context, req Request) ([]Quote, error)
}
