package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"vault-rebalancer/internal/config"
	"vault-rebalancer/internal/storage"
)

func TestExecuteUnknownSourceChain(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	exec := New(nil, config.ExecutorConfig{}, zerolog.Nop())
	action := storage.RebalanceAction{ID: 1, SourceChainID: 8453, Status: storage.ActionSuggested}

	_, err = exec.Execute(context.Background(), action, key)
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("expected ErrExecutionFailed for unknown chain, got %v", err)
	}
}

func TestExecuteRejectsNonSuggestedAction(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	exec := New([]config.ChainConfig{
		{Name: "Base", ChainID: 8453, RPCURL: "http://localhost:8545", VaultAddress: "0x1"},
	}, config.ExecutorConfig{}, zerolog.Nop())

	for _, status := range []string{storage.ActionExecuted, storage.ActionFailed} {
		action := storage.RebalanceAction{ID: 1, SourceChainID: 8453, Status: status}
		if _, err := exec.Execute(context.Background(), action, key); !errors.Is(err, ErrExecutionFailed) {
			t.Fatalf("status %s must be rejected, got %v", status, err)
		}
	}
}
