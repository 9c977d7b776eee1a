package executor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"vault-rebalancer/internal/config"
	"vault-rebalancer/internal/metrics"
	"vault-rebalancer/internal/storage"
)

// ErrExecutionFailed marks a failed transfer submission. Isolated to
// the executor: analysis runs are unaffected, and there is no
// automatic retry. A failed execution needs a fresh analysis or a
// manual resubmission.
var ErrExecutionFailed = errors.New("executor: execution failed")

const bridgeABIJSON = `[{"inputs":[{"internalType":"uint256","name":"_amount","type":"uint256"}],"name":"bridge","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

var bridgeABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(bridgeABIJSON))
	if err != nil {
		panic("failed to parse bridge ABI: " + err.Error())
	}
	bridgeABI = parsed
}

// Executor submits approved rebalance transfers. Invoked from outside
// the periodic analysis cycle, on explicit operator approval.
type Executor struct {
	chains   map[int64]config.ChainConfig
	gasLimit uint64
	timeout  time.Duration
	logger   zerolog.Logger

	clientMux sync.Mutex
	clients   map[int64]*ethclient.Client
}

// New constructs an executor for the configured chains.
func New(chains []config.ChainConfig, cfg config.ExecutorConfig, logger zerolog.Logger) *Executor {
	byID := make(map[int64]config.ChainConfig, len(chains))
	for _, c := range chains {
		byID[c.ChainID] = c
	}

	gasLimit := cfg.GasLimit
	if gasLimit == 0 {
		gasLimit = 400_000
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Executor{
		chains:   byID,
		gasLimit: gasLimit,
		timeout:  timeout,
		logger:   logger.With().Str("component", "executor").Logger(),
		clients:  make(map[int64]*ethclient.Client),
	}
}

// Execute signs and submits the vault bridge call on the action's
// source chain and returns the transaction hash. The caller owns the
// suggested -> executed/failed status transition.
func (x *Executor) Execute(ctx context.Context, action storage.RebalanceAction, key *ecdsa.PrivateKey) (string, error) {
	cc, ok := x.chains[action.SourceChainID]
	if !ok {
		return "", fmt.Errorf("%w: source chain %d not configured", ErrExecutionFailed, action.SourceChainID)
	}
	if action.Status != storage.ActionSuggested {
		return "", fmt.Errorf("%w: action %d is %s, not %s", ErrExecutionFailed, action.ID, action.Status, storage.ActionSuggested)
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, x.timeout)
	defer cancel()

	client, err := x.getClient(ctx, cc)
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: dial chain %d: %v", ErrExecutionFailed, cc.ChainID, err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: pending nonce: %v", ErrExecutionFailed, err)
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: suggest gas price: %v", ErrExecutionFailed, err)
	}

	data, err := bridgeABI.Pack("bridge", big.NewInt(action.AmountMicro))
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: pack bridge call: %v", ErrExecutionFailed, err)
	}

	vault := common.HexToAddress(cc.VaultAddress)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &vault,
		Value:    big.NewInt(0),
		Gas:      x.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(cc.ChainID)), key)
	if err != nil {
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: sign transaction: %v", ErrExecutionFailed, err)
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: submit transaction: %v", ErrExecutionFailed, err)
	}

	hash := signed.Hash().Hex()
	metrics.ExecutionsTotal.WithLabelValues("ok").Inc()
	x.logger.Info().
		Int64("action_id", action.ID).
		Int64("source_chain", action.SourceChainID).
		Str("tx_hash", hash).
		Msg("rebalance transfer submitted")
	return hash, nil
}

func (x *Executor) getClient(ctx context.Context, cc config.ChainConfig) (*ethclient.Client, error) {
	x.clientMux.Lock()
	defer x.clientMux.Unlock()

	if client, ok := x.clients[cc.ChainID]; ok {
		return client, nil
	}

	client, err := ethclient.DialContext(ctx, cc.RPCURL)
	if err != nil {
		return nil, err
	}
	x.clients[cc.ChainID] = client
	return client, nil
}
