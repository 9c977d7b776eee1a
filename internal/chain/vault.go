package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"vault-rebalancer/internal/config"
)

const vaultABIJSON = `[{"inputs":[],"name":"totalAssets","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var vaultABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		panic("failed to parse vault ABI: " + err.Error())
	}
	vaultABI = parsed
}

// VaultReader reads vault reserves over Ethereum RPC for the configured chains.
type VaultReader struct {
	chains map[int64]config.ChainConfig
	logger zerolog.Logger

	clientMux sync.Mutex
	clients   map[int64]*ethclient.Client
}

// NewVaultReader builds a reserve reader for the given chain set.
func NewVaultReader(chains []config.ChainConfig, logger zerolog.Logger) *VaultReader {
	byID := make(map[int64]config.ChainConfig, len(chains))
	for _, c := range chains {
		byID[c.ChainID] = c
	}
	return &VaultReader{
		chains:  byID,
		logger:  logger.With().Str("component", "vault_reader").Logger(),
		clients: make(map[int64]*ethclient.Client),
	}
}

// ReadReserve calls totalAssets() on the chain's vault contract and
// pairs it with the current block number.
func (r *VaultReader) ReadReserve(ctx context.Context, chainID int64) (Reserve, error) {
	cfg, ok := r.chains[chainID]
	if !ok {
		return Reserve{}, fmt.Errorf("%w: chain %d not configured", ErrUnreachable, chainID)
	}
	if cfg.RPCURL == "" {
		return Reserve{}, fmt.Errorf("%w: chain %d has no rpc url", ErrUnreachable, chainID)
	}
	if cfg.VaultAddress == "" {
		return Reserve{}, fmt.Errorf("%w: chain %d has no vault address", ErrUnreachable, chainID)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := r.getClient(ctx, chainID, cfg.RPCURL)
	if err != nil {
		return Reserve{}, fmt.Errorf("%w: dial chain %d: %v", ErrUnreachable, chainID, err)
	}

	addr := common.HexToAddress(cfg.VaultAddress)
	payload, err := vaultABI.Pack("totalAssets")
	if err != nil {
		return Reserve{}, fmt.Errorf("pack totalAssets: %w", err)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return Reserve{}, fmt.Errorf("%w: totalAssets on chain %d: %v", ErrUnreachable, chainID, err)
	}

	outputs, err := vaultABI.Unpack("totalAssets", res)
	if err != nil {
		return Reserve{}, fmt.Errorf("%w: decode totalAssets on chain %d: %v", ErrUnreachable, chainID, err)
	}
	if len(outputs) != 1 {
		return Reserve{}, fmt.Errorf("%w: unexpected totalAssets response on chain %d", ErrUnreachable, chainID)
	}

	total, ok := outputs[0].(*big.Int)
	if !ok {
		return Reserve{}, fmt.Errorf("%w: totalAssets output not uint256 on chain %d", ErrUnreachable, chainID)
	}
	if !total.IsInt64() {
		return Reserve{}, fmt.Errorf("%w: reserve on chain %d overflows int64", ErrUnreachable, chainID)
	}

	blockNumber, err := client.BlockNumber(ctx)
	if err != nil {
		return Reserve{}, fmt.Errorf("%w: block number on chain %d: %v", ErrUnreachable, chainID, err)
	}

	return Reserve{TotalMicro: total.Int64(), BlockNumber: blockNumber}, nil
}

func (r *VaultReader) getClient(ctx context.Context, chainID int64, rpcURL string) (*ethclient.Client, error) {
	r.clientMux.Lock()
	defer r.clientMux.Unlock()

	if client, ok := r.clients[chainID]; ok {
		return client, nil
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	r.clients[chainID] = client
	return client, nil
}

var _ ReserveReader = (*VaultReader)(nil)
