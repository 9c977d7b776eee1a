package app

import (
	"context"
	"fmt"
	"os"

	"vault-rebalancer/internal/engine"
)

// Analyze performs a single analysis run and prints the reasoning
// trace to stdout.
func (a *App) Analyze(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	eng := a.newEngine(store)

	outcome, err := eng.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Analysis #%d at %s\n\n", outcome.Record.ID, outcome.Record.AnalysisAt.UTC().Format("2006-01-02 15:04:05"))
	for _, thought := range outcome.Record.Thoughts {
		fmt.Fprintf(os.Stdout, "  %s\n", thought)
	}
	fmt.Fprintln(os.Stdout)

	fmt.Fprintf(os.Stdout, "Needs rebalance: %v\n", outcome.NeedsRebalance)
	fmt.Fprintf(os.Stdout, "Confidence:      %.2f\n", outcome.Record.ConfidenceScore)

	if outcome.Action != nil {
		fmt.Fprintf(os.Stdout, "Suggested:       move %s USDC from chain %d to chain %d (action #%d)\n",
			engine.FormatMicro(outcome.Action.AmountMicro),
			outcome.Action.SourceChainID,
			outcome.Action.DestinationChainID,
			outcome.Action.ID,
		)
	} else if outcome.NeedsRebalance {
		fmt.Fprintln(os.Stdout, "Suggested:       none (no viable route found)")
	}

	return nil
}
