package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"vault-rebalancer/internal/alerting"
	"vault-rebalancer/internal/config"
	"vault-rebalancer/internal/engine"
	"vault-rebalancer/internal/executor"
	"vault-rebalancer/internal/storage"
)

// ExecuteOptions identify the action to submit and the signing key.
type ExecuteOptions struct {
	ActionID      int64
	PrivateKeyHex string
}

// ExecuteAction submits a suggested rebalance action on chain and
// records the resulting status transition.
func (a *App) ExecuteAction(ctx context.Context, opts ExecuteOptions) error {
	if opts.ActionID <= 0 {
		return errors.New("a positive --action id is required")
	}
	keyHex := strings.TrimPrefix(strings.TrimSpace(opts.PrivateKeyHex), "0x")
	if keyHex == "" {
		return errors.New("a signing key is required (--key or REBALANCER_EXECUTOR_KEY)")
	}

	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return fmt.Errorf("parse signing key: %w", err)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	action, err := store.GetAction(ctx, opts.ActionID)
	if err != nil {
		return err
	}
	if action.Status != storage.ActionSuggested {
		return fmt.Errorf("action %d is %s; only suggested actions can be executed", action.ID, action.Status)
	}

	chains := []config.ChainConfig{a.Config.Chains.A, a.Config.Chains.B}
	exec := executor.New(chains, a.Config.Executor, a.Logger)

	txHash, execErr := exec.Execute(ctx, action, key)
	if execErr != nil {
		if updateErr := store.UpdateActionStatus(ctx, action.ID, storage.ActionFailed, nil); updateErr != nil {
			a.Logger.Error().Err(updateErr).Int64("action_id", action.ID).Msg("failed to mark action failed")
		}
		return execErr
	}

	if err := store.UpdateActionStatus(ctx, action.ID, storage.ActionExecuted, &txHash); err != nil {
		return fmt.Errorf("transfer sent (%s) but status update failed: %w", txHash, err)
	}

	a.notify(ctx, a.newNotifier(), alerting.Notification{
		Kind:               alerting.KindExecution,
		Timestamp:          action.ActionAt,
		SourceChainID:      action.SourceChainID,
		DestinationChainID: action.DestinationChainID,
		AmountMicro:        action.AmountMicro,
		Message:            "Tx: " + txHash,
	})

	fmt.Fprintf(os.Stdout, "action %d executed: moved %s USDC from chain %d to chain %d\n",
		action.ID, engine.FormatMicro(action.AmountMicro), action.SourceChainID, action.DestinationChainID)
	fmt.Fprintf(os.Stdout, "tx hash: %s\n", txHash)
	return nil
}
