package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/shopspring/decimal"

	"github.com/babylon-scanner/internal/adapter"
	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/models"
	"github.com/babylon-scanner/internal/storage"
	"github.com/babylon-scanner/internal/types"
	"github.com/babylon-scanner/internal/worker"
)

var (
	testParams = ChainParams{
		ChainID:         "bbn-test-6",
		NativeDenom:     "ubbn",
		Decimals:        6,
		AccountPrefix:   "bbn",
		ValidatorPrefix: "bbnvaloper",
	}

	errNodeDown  = adapter.NewAdapterError("fetch", "/test", 503, errors.New("service unavailable"))
	errNoRoute   = adapter.NewAdapterError("fetch", "/test", 404, errors.New("not found"))
	errStoreDown = apperrors.StoreFailure("get labels", errors.New("connection reset"))
)

// accountAddr builds a checksummed account address whose 20-byte payload repeats seed
func accountAddr(seed string) string {
	return encodeTestAddress(testParams.AccountPrefix, seed)
}

// operatorAddr builds a checksummed validator operator address
func operatorAddr(seed string) string {
	return encodeTestAddress(testParams.ValidatorPrefix, seed)
}

func encodeTestAddress(hrp, seed string) string {
	payload := []byte(strings.Repeat(seed, 20)[:20])
	data, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		panic(err)
	}
	addr, err := bech32.Encode(hrp, data)
	if err != nil {
		panic(err)
	}
	return addr
}

// fakeReader is a ChainReader whose methods are overridden per test.
// Unset methods fail as if the node were down.
type fakeReader struct {
	nodeInfo        func(ctx context.Context) (*types.NodeInfo, error)
	latestBlock     func(ctx context.Context) (*types.Block, error)
	recentBlocks    func(ctx context.Context, count int) (*types.BlockWindow, error)
	recentTxs       func(ctx context.Context, limit int) (*types.TransactionWindow, error)
	txByHash        func(ctx context.Context, hash string) (*types.Transaction, error)
	search          func(ctx context.Context, query string, limit int) ([]*types.Transaction, error)
	balance         func(ctx context.Context, address string) (*types.AccountBalance, error)
	account         func(ctx context.Context, address string) (*types.AccountInfo, error)
	validators      func(ctx context.Context, status string) ([]*types.Validator, error)
	stakingPool     func(ctx context.Context) (*types.StakingPool, error)
	fps             func(ctx context.Context) ([]*types.FinalityProvider, error)
	delegations     func(ctx context.Context, status string) ([]*types.BTCDelegation, error)
	epoch           func(ctx context.Context) (*types.Epoch, error)
	balanceRequests atomic.Int64
}

var _ adapter.ChainReader = (*fakeReader)(nil)

func (f *fakeReader) GetNodeInfo(ctx context.Context) (*types.NodeInfo, error) {
	if f.nodeInfo == nil {
		return nil, errNodeDown
	}
	return f.nodeInfo(ctx)
}

func (f *fakeReader) GetLatestBlock(ctx context.Context) (*types.Block, error) {
	if f.latestBlock == nil {
		return nil, errNodeDown
	}
	return f.latestBlock(ctx)
}

func (f *fakeReader) GetBlockByHeight(context.Context, int64) (*types.Block, error) {
	return nil, errNodeDown
}

func (f *fakeReader) GetRecentBlocks(ctx context.Context, count int) (*types.BlockWindow, error) {
	if f.recentBlocks == nil {
		return nil, errNodeDown
	}
	return f.recentBlocks(ctx, count)
}

func (f *fakeReader) GetTransactionsByHeight(context.Context, int64) ([]*types.Transaction, error) {
	return nil, errNodeDown
}

func (f *fakeReader) GetTransactionByHash(ctx context.Context, hash string) (*types.Transaction, error) {
	if f.txByHash == nil {
		return nil, errNodeDown
	}
	return f.txByHash(ctx, hash)
}

func (f *fakeReader) GetRecentTransactions(ctx context.Context, limit int) (*types.TransactionWindow, error) {
	if f.recentTxs == nil {
		return nil, errNodeDown
	}
	return f.recentTxs(ctx, limit)
}

func (f *fakeReader) SearchTransactions(ctx context.Context, query string, limit int) ([]*types.Transaction, error) {
	if f.search == nil {
		return nil, errNodeDown
	}
	return f.search(ctx, query, limit)
}

func (f *fakeReader) GetAccountBalance(ctx context.Context, address string) (*types.AccountBalance, error) {
	f.balanceRequests.Add(1)
	if f.balance == nil {
		return nil, errNodeDown
	}
	return f.balance(ctx, address)
}

func (f *fakeReader) GetAccountInfo(ctx context.Context, address string) (*types.AccountInfo, error) {
	if f.account == nil {
		return nil, errNodeDown
	}
	return f.account(ctx, address)
}

func (f *fakeReader) GetValidators(ctx context.Context, status string) ([]*types.Validator, error) {
	if f.validators == nil {
		return nil, errNodeDown
	}
	return f.validators(ctx, status)
}

func (f *fakeReader) GetStakingPool(ctx context.Context) (*types.StakingPool, error) {
	if f.stakingPool == nil {
		return nil, errNodeDown
	}
	return f.stakingPool(ctx)
}

func (f *fakeReader) GetFinalityProviders(ctx context.Context) ([]*types.FinalityProvider, error) {
	if f.fps == nil {
		return nil, errNodeDown
	}
	return f.fps(ctx)
}

func (f *fakeReader) GetBTCDelegations(ctx context.Context, status string) ([]*types.BTCDelegation, error) {
	if f.delegations == nil {
		return nil, errNodeDown
	}
	return f.delegations(ctx, status)
}

func (f *fakeReader) GetCurrentEpoch(ctx context.Context) (*types.Epoch, error) {
	if f.epoch == nil {
		return nil, errNodeDown
	}
	return f.epoch(ctx)
}

// balances serves fixed base-unit ubbn balances; unknown addresses fail
func balances(amounts map[string]string) func(context.Context, string) (*types.AccountBalance, error) {
	return func(_ context.Context, address string) (*types.AccountBalance, error) {
		amount, ok := amounts[address]
		if !ok {
			return nil, errNodeDown
		}
		return &types.AccountBalance{Address: address, Balances: []types.Coin{{Denom: "ubbn", Amount: amount}}}, nil
	}
}

// memoryCache is a SnapshotCache holding values in a map without expiry
type memoryCache struct {
	mu     sync.Mutex
	values map[string]interface{}
	gets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string]interface{})}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.values[key]
	if !ok {
		return false, nil
	}
	switch d := dest.(type) {
	case *types.NetworkStats:
		*d = *(v.(*types.NetworkStats))
	case *types.NetworkOverview:
		*d = *(v.(*types.NetworkOverview))
	default:
		return false, errors.New("unsupported cache type")
	}
	return true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}

// failingLabelStore wraps a MemoryStore and fails writes for selected addresses
type failingLabelStore struct {
	*storage.MemoryStore
	failFor map[string]bool
	failAll error
}

func (s *failingLabelStore) GetLabelsByAddress(ctx context.Context, address string) ([]*models.AddressLabel, error) {
	if s.failAll != nil {
		return nil, s.failAll
	}
	if s.failFor[address] {
		return nil, errStoreDown
	}
	return s.MemoryStore.GetLabelsByAddress(ctx, address)
}

func newTestPool(t interface{ Cleanup(func()) }) pond.Pool {
	pool := worker.NewPool(4)
	t.Cleanup(pool.StopAndWait)
	return pool
}

func testLogger() *logging.Logger {
	return logging.Nop()
}

func mustDecimal(t interface{ Fatalf(string, ...interface{}) }, s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}
