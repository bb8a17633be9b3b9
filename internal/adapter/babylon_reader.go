package adapter

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/alitto/pond/v2"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/types"
	"github.com/babylon-scanner/internal/worker"
)

// Node API routes
const (
	pathNodeInfo          = "/cosmos/base/tendermint/v1beta1/node_info"
	pathLatestBlock       = "/cosmos/base/tendermint/v1beta1/blocks/latest"
	pathBlockByHeight     = "/cosmos/base/tendermint/v1beta1/blocks/%d"
	pathTxs               = "/cosmos/tx/v1beta1/txs"
	pathTxByHash          = "/cosmos/tx/v1beta1/txs/%s"
	pathBalances          = "/cosmos/bank/v1beta1/balances/%s"
	pathAccount           = "/cosmos/auth/v1beta1/accounts/%s"
	pathValidators        = "/cosmos/staking/v1beta1/validators"
	pathStakingPool       = "/cosmos/staking/v1beta1/pool"
	pathFinalityProviders = "/babylon/btcstaking/v1/finality_providers"
	pathBTCDelegations    = "/babylon/btcstaking/v1/btc_delegations"
	pathCurrentEpoch      = "/babylon/epoching/v1/current_epoch"
)

const (
	// recentTxBlockWindow is how many recent blocks GetRecentTransactions walks
	recentTxBlockWindow = 5
	// txsPerBlockLimit caps the by-height transaction query
	txsPerBlockLimit = 100
	// listPageLimit is the page size for validator and finality provider lists
	listPageLimit = 1000
	// BondedStatus is the validator status of the active set
	BondedStatus = "BOND_STATUS_BONDED"
)

// NodeReaderConfig configures a NodeReader
type NodeReaderConfig struct {
	ChainID string
	Workers int
}

// NodeReader implements ChainReader over a NodeClient
type NodeReader struct {
	client  *NodeClient
	chainID string
	pool    pond.Pool
	logger  *logging.Logger
}

// NewNodeReader creates a reader with its own bounded fan-out pool. Call Close to release it.
func NewNodeReader(client *NodeClient, cfg NodeReaderConfig, logger *logging.Logger) *NodeReader {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &NodeReader{
		client:  client,
		chainID: cfg.ChainID,
		pool:    worker.NewPool(workers),
		logger:  logger.WithField("component", "chain_reader"),
	}
}

// Close stops the fan-out pool after running tasks finish
func (r *NodeReader) Close() {
	r.pool.StopAndWait()
}

// Client returns the underlying node client
func (r *NodeReader) Client() *NodeClient {
	return r.client
}

// GetNodeInfo returns the node's network and software version
func (r *NodeReader) GetNodeInfo(ctx context.Context) (*types.NodeInfo, error) {
	var resp nodeInfoResponse
	if err := r.client.Fetch(ctx, pathNodeInfo, FetchOptions{}, &resp); err != nil {
		return nil, err
	}
	return &types.NodeInfo{
		Network:    resp.DefaultNodeInfo.Network,
		Moniker:    resp.DefaultNodeInfo.Moniker,
		Version:    resp.DefaultNodeInfo.Version,
		AppName:    resp.ApplicationVersion.Name,
		AppVersion: resp.ApplicationVersion.Version,
	}, nil
}

// GetLatestBlock returns the chain head
func (r *NodeReader) GetLatestBlock(ctx context.Context) (*types.Block, error) {
	var resp blockResponse
	if err := r.client.Fetch(ctx, pathLatestBlock, FetchOptions{Volatile: true}, &resp); err != nil {
		return nil, err
	}
	return resp.toBlock(r.chainID), nil
}

// GetBlockByHeight returns the block at height
func (r *NodeReader) GetBlockByHeight(ctx context.Context, height int64) (*types.Block, error) {
	if height < 1 {
		return nil, apperrors.NewInvalidParameterError("height", "must be at least 1")
	}
	var resp blockResponse
	if err := r.client.Fetch(ctx, fmt.Sprintf(pathBlockByHeight, height), FetchOptions{}, &resp); err != nil {
		return nil, err
	}
	return resp.toBlock(r.chainID), nil
}

// GetRecentBlocks returns the latest block plus up to count-1 predecessors, newest first.
// Only the latest block is required; predecessor lookups run concurrently and any that
// fail are dropped, marking the window partial.
func (r *NodeReader) GetRecentBlocks(ctx context.Context, count int) (*types.BlockWindow, error) {
	if count < 1 {
		count = 1
	}

	latest, err := r.GetLatestBlock(ctx)
	if err != nil {
		return nil, err
	}

	heights := make([]int64, 0, count-1)
	for i := int64(1); i < int64(count); i++ {
		h := latest.Height - i
		if h < 1 {
			break
		}
		heights = append(heights, h)
	}

	outcomes := worker.Map(ctx, r.pool, heights, r.GetBlockByHeight)

	blocks := make([]*types.Block, 0, len(heights)+1)
	blocks = append(blocks, latest)
	seen := map[int64]struct{}{latest.Height: {}}
	failed := 0
	for i, o := range outcomes {
		if o.Failed() {
			failed++
			r.logger.WithField("height", heights[i]).WithError(o.Err).Debug("block lookup failed")
			continue
		}
		if _, dup := seen[o.Value.Height]; dup {
			continue
		}
		seen[o.Value.Height] = struct{}{}
		blocks = append(blocks, o.Value)
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Height > blocks[j].Height
	})

	return &types.BlockWindow{
		Blocks:    blocks,
		Requested: count,
		Partial:   failed > 0,
	}, nil
}

// GetTransactionsByHeight returns every transaction included at height
func (r *NodeReader) GetTransactionsByHeight(ctx context.Context, height int64) ([]*types.Transaction, error) {
	q := url.Values{}
	q.Set("query", fmt.Sprintf("tx.height=%d", height))
	q.Set("limit", strconv.Itoa(txsPerBlockLimit))
	q.Set("page", "1")

	var resp txsResponse
	if err := r.client.Fetch(ctx, pathTxs+"?"+q.Encode(), FetchOptions{}, &resp); err != nil {
		return nil, err
	}
	return dedupTransactions(resp.transactions()), nil
}

// GetTransactionByHash returns a single transaction
func (r *NodeReader) GetTransactionByHash(ctx context.Context, hash string) (*types.Transaction, error) {
	hash = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(hash), "0x"))
	if hash == "" {
		return nil, apperrors.NewInvalidParameterError("hash", "must not be empty")
	}

	var resp txByHashResponse
	if err := r.client.Fetch(ctx, fmt.Sprintf(pathTxByHash, url.PathEscape(hash)), FetchOptions{}, &resp); err != nil {
		if apperrors.IsFeatureUnsupported(err) {
			return nil, apperrors.NewNotFoundError("transaction", hash)
		}
		return nil, err
	}
	return resp.TxResponse.toTransaction(resp.Tx), nil
}

// GetRecentTransactions walks the most recent blocks newest first and collects their
// transactions until limit is reached. Blocks whose transactions cannot be fetched are skipped.
func (r *NodeReader) GetRecentTransactions(ctx context.Context, limit int) (*types.TransactionWindow, error) {
	if limit < 1 {
		limit = 1
	}

	window, err := r.GetRecentBlocks(ctx, recentTxBlockWindow)
	if err != nil {
		return nil, err
	}

	txs := make([]*types.Transaction, 0, limit)
	partial := window.Partial
	for _, block := range window.Blocks {
		if len(txs) >= limit {
			break
		}
		if block.TxCount == 0 {
			continue
		}
		blockTxs, err := r.GetTransactionsByHeight(ctx, block.Height)
		if err != nil {
			partial = true
			r.logger.WithField("height", block.Height).WithError(err).Debug("skipping block transactions")
			continue
		}
		txs = append(txs, blockTxs...)
	}

	if len(txs) > limit {
		txs = txs[:limit]
	}

	return &types.TransactionWindow{
		Transactions: txs,
		Requested:    limit,
		Partial:      partial,
	}, nil
}

// SearchTransactions runs an event query such as message.sender='bbn1...', newest first
func (r *NodeReader) SearchTransactions(ctx context.Context, query string, limit int) ([]*types.Transaction, error) {
	if limit < 1 {
		limit = 1
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", "1")
	q.Set("order_by", "ORDER_BY_DESC")

	var resp txsResponse
	if err := r.client.Fetch(ctx, pathTxs+"?"+q.Encode(), FetchOptions{}, &resp); err != nil {
		return nil, err
	}

	txs := dedupTransactions(resp.transactions())
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// GetAccountBalance returns all balances held by address
func (r *NodeReader) GetAccountBalance(ctx context.Context, address string) (*types.AccountBalance, error) {
	var resp balancesResponse
	if err := r.client.Fetch(ctx, fmt.Sprintf(pathBalances, url.PathEscape(address)), FetchOptions{}, &resp); err != nil {
		return nil, err
	}
	balance := &types.AccountBalance{Address: address, Balances: make([]types.Coin, 0, len(resp.Balances))}
	for _, c := range resp.Balances {
		balance.Balances = append(balance.Balances, types.Coin{Denom: c.Denom, Amount: c.Amount})
	}
	return balance, nil
}

// GetAccountInfo returns the auth account. An address that never transacted has no account
// and the node answers 404, which is returned as an error.
func (r *NodeReader) GetAccountInfo(ctx context.Context, address string) (*types.AccountInfo, error) {
	var resp accountResponse
	if err := r.client.Fetch(ctx, fmt.Sprintf(pathAccount, url.PathEscape(address)), FetchOptions{}, &resp); err != nil {
		return nil, err
	}
	return resp.Account.toAccountInfo(address), nil
}

// GetValidators returns validators in status, or all validators when status is empty
func (r *NodeReader) GetValidators(ctx context.Context, status string) ([]*types.Validator, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	q.Set("pagination.limit", strconv.Itoa(listPageLimit))

	var resp validatorsResponse
	if err := r.client.Fetch(ctx, pathValidators+"?"+q.Encode(), FetchOptions{}, &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(resp.Validators))
	validators := make([]*types.Validator, 0, len(resp.Validators))
	for i := range resp.Validators {
		v := resp.Validators[i].toValidator()
		if _, dup := seen[v.OperatorAddress]; dup {
			continue
		}
		seen[v.OperatorAddress] = struct{}{}
		validators = append(validators, v)
	}
	return validators, nil
}

// GetStakingPool returns bonded and unbonded supply
func (r *NodeReader) GetStakingPool(ctx context.Context) (*types.StakingPool, error) {
	var resp poolResponse
	if err := r.client.Fetch(ctx, pathStakingPool, FetchOptions{}, &resp); err != nil {
		return nil, err
	}
	return &types.StakingPool{
		BondedTokens:    resp.Pool.BondedTokens,
		NotBondedTokens: resp.Pool.NotBondedTokens,
	}, nil
}

// GetFinalityProviders returns the finality provider set, empty if the node lacks btcstaking
func (r *NodeReader) GetFinalityProviders(ctx context.Context) ([]*types.FinalityProvider, error) {
	q := url.Values{}
	q.Set("pagination.limit", strconv.Itoa(listPageLimit))

	var resp finalityProvidersResponse
	if err := r.client.Fetch(ctx, pathFinalityProviders+"?"+q.Encode(), FetchOptions{}, &resp); err != nil {
		if apperrors.IsFeatureUnsupported(err) {
			r.logger.Debug("finality providers not served by node")
			return []*types.FinalityProvider{}, nil
		}
		return nil, err
	}

	seen := make(map[string]struct{}, len(resp.FinalityProviders))
	fps := make([]*types.FinalityProvider, 0, len(resp.FinalityProviders))
	for i := range resp.FinalityProviders {
		fp := resp.FinalityProviders[i].toFinalityProvider()
		key := fp.BTCPublicKey
		if key == "" {
			key = fp.Address
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fps = append(fps, fp)
	}
	return fps, nil
}

// GetBTCDelegations returns BTC delegations, optionally filtered by state (e.g. ACTIVE).
// Empty if the node lacks btcstaking.
func (r *NodeReader) GetBTCDelegations(ctx context.Context, status string) ([]*types.BTCDelegation, error) {
	path := pathBTCDelegations
	if status = strings.ToUpper(strings.TrimSpace(status)); status != "" {
		path += "?" + url.Values{"status": []string{status}}.Encode()
	}

	var resp btcDelegationsResponse
	if err := r.client.Fetch(ctx, path, FetchOptions{}, &resp); err != nil {
		if apperrors.IsFeatureUnsupported(err) {
			r.logger.Debug("btc delegations not served by node")
			return []*types.BTCDelegation{}, nil
		}
		return nil, err
	}

	seen := make(map[string]struct{}, len(resp.BtcDelegations))
	dels := make([]*types.BTCDelegation, 0, len(resp.BtcDelegations))
	for i := range resp.BtcDelegations {
		d := &resp.BtcDelegations[i]
		key := d.key()
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		dels = append(dels, d.toBTCDelegation())
	}
	return dels, nil
}

// GetCurrentEpoch returns the current epoch, zero-valued if the node lacks epoching
func (r *NodeReader) GetCurrentEpoch(ctx context.Context) (*types.Epoch, error) {
	var resp currentEpochResponse
	if err := r.client.Fetch(ctx, pathCurrentEpoch, FetchOptions{}, &resp); err != nil {
		if apperrors.IsFeatureUnsupported(err) {
			return &types.Epoch{}, nil
		}
		return nil, err
	}
	return resp.toEpoch(), nil
}

// dedupTransactions keeps the first occurrence of each hash
func dedupTransactions(txs []*types.Transaction) []*types.Transaction {
	seen := make(map[string]struct{}, len(txs))
	out := txs[:0]
	for _, tx := range txs {
		if _, dup := seen[tx.Hash]; dup {
			continue
		}
		seen[tx.Hash] = struct{}{}
		out = append(out, tx)
	}
	return out
}

var _ ChainReader = (*NodeReader)(nil)
