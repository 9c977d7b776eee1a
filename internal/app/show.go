package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"vault-rebalancer/internal/engine"
	"vault-rebalancer/internal/storage"
)

type reasoningLister interface {
	ListRecentReasoning(ctx context.Context, limit int) ([]storage.ReasoningRecord, error)
}

type actionLister interface {
	ListRecentActions(ctx context.Context, limit int) ([]storage.RebalanceAction, error)
}

// ShowOptions control the reasoning listing.
type ShowOptions struct {
	Limit   int
	Actions bool
}

// Show prints recent reasoning records, or recent rebalance actions
// when opts.Actions is set.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Actions {
		return a.showActions(ctx, store, opts.Limit)
	}
	return a.showReasoning(ctx, store, opts.Limit)
}

func (a *App) showReasoning(ctx context.Context, store reasoningLister, limit int) error {
	records, err := store.ListRecentReasoning(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no reasoning records found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tDebt\tNet Flow\tSource\tDest\tRebalance\tConfidence")

	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%d\t%d\t%v\t%.2f\n",
			rec.AnalysisAt.UTC().Format(time.RFC3339),
			engine.FormatMicro(rec.DebtMicro),
			engine.FormatMicro(rec.NetFlowMicro),
			rec.SourceChainID,
			rec.DestinationChainID,
			rec.NeedsRebalance,
			rec.ConfidenceScore,
		)
	}

	writer.Flush()
	return nil
}

func (a *App) showActions(ctx context.Context, store actionLister, limit int) error {
	actions, err := store.ListRecentActions(ctx, limit)
	if err != nil {
		return err
	}
	if len(actions) == 0 {
		fmt.Fprintln(os.Stdout, "no rebalance actions found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTime (UTC)\tAmount\tSource\tDest\tStatus\tTx Hash")

	for _, action := range actions {
		txHash := ""
		if action.TxHash != nil {
			txHash = sanitizeInline(*action.TxHash)
		}
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			action.ID,
			action.ActionAt.UTC().Format(time.RFC3339),
			engine.FormatMicro(action.AmountMicro),
			action.SourceChainID,
			action.DestinationChainID,
			action.Status,
			txHash,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
