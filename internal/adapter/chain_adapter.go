package adapter

import (
	"context"
	"fmt"
	"net/http"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/types"
)

// ChainReader defines typed read access to a Babylon node API.
// Cosmos-standard accessors fail with an error matching errors.ErrUpstreamUnavailable.
// Babylon-specific accessors (finality providers, BTC delegations, epoch) return an
// empty result when the node does not serve the route.
type ChainReader interface {
	// GetNodeInfo returns the node's network and software version
	GetNodeInfo(ctx context.Context) (*types.NodeInfo, error)

	// GetLatestBlock returns the chain head. Never served from cache.
	GetLatestBlock(ctx context.Context) (*types.Block, error)

	// GetBlockByHeight returns the block at height
	GetBlockByHeight(ctx context.Context, height int64) (*types.Block, error)

	// GetRecentBlocks returns the latest block and up to count-1 predecessors, newest first.
	// Heights that fail to resolve are left out and the window is marked partial.
	GetRecentBlocks(ctx context.Context, count int) (*types.BlockWindow, error)

	// GetTransactionsByHeight returns every transaction included at height
	GetTransactionsByHeight(ctx context.Context, height int64) ([]*types.Transaction, error)

	// GetTransactionByHash returns a single transaction or a not-found error
	GetTransactionByHash(ctx context.Context, hash string) (*types.Transaction, error)

	// GetRecentTransactions walks the five most recent blocks until limit transactions are collected
	GetRecentTransactions(ctx context.Context, limit int) (*types.TransactionWindow, error)

	// SearchTransactions runs an event query, newest first, capped at limit
	SearchTransactions(ctx context.Context, query string, limit int) ([]*types.Transaction, error)

	// GetAccountBalance returns all balances held by address
	GetAccountBalance(ctx context.Context, address string) (*types.AccountBalance, error)

	// GetAccountInfo returns the auth account (type, number, sequence)
	GetAccountInfo(ctx context.Context, address string) (*types.AccountInfo, error)

	// GetValidators returns validators in the given bond status (empty means all)
	GetValidators(ctx context.Context, status string) ([]*types.Validator, error)

	// GetStakingPool returns bonded and unbonded supply
	GetStakingPool(ctx context.Context) (*types.StakingPool, error)

	// GetFinalityProviders returns the finality provider set with a derived active flag
	GetFinalityProviders(ctx context.Context) ([]*types.FinalityProvider, error)

	// GetBTCDelegations returns BTC delegations, optionally filtered by lifecycle state
	GetBTCDelegations(ctx context.Context, status string) ([]*types.BTCDelegation, error)

	// GetCurrentEpoch returns the current epoch, zero-valued if epoching is not served
	GetCurrentEpoch(ctx context.Context) (*types.Epoch, error)
}

// AdapterError wraps node API failures with the request that produced them.
// It always matches errors.ErrUpstreamUnavailable, and additionally
// errors.ErrFeatureUnsupported when the node answered 404 or 501.
type AdapterError struct {
	Op         string // Operation that failed (e.g., "fetch", "decode")
	Path       string
	StatusCode int
	Err        error
}

func (e *AdapterError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("node api error [%s %s]: status %d: %v", e.Op, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("node api error [%s %s]: %v", e.Op, e.Path, e.Err)
}

func (e *AdapterError) Unwrap() []error {
	errs := []error{apperrors.ErrUpstreamUnavailable}
	if e.Unsupported() {
		errs = append(errs, apperrors.ErrFeatureUnsupported)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Unsupported reports whether the node said the route or resource does not exist
func (e *AdapterError) Unsupported() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusNotImplemented
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(op, path string, statusCode int, err error) *AdapterError {
	return &AdapterError{
		Op:         op,
		Path:       path,
		StatusCode: statusCode,
		Err:        err,
	}
}
