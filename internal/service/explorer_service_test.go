package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/models"
	"github.com/babylon-scanner/internal/storage"
	"github.com/babylon-scanner/internal/types"
)

func newTestExplorer(t *testing.T, reader *fakeReader, store *storage.MemoryStore, cache SnapshotCache) *ExplorerService {
	t.Helper()
	var (
		labels    LabelStore
		watchlist WatchlistStore
	)
	if store != nil {
		labels, watchlist = store, store
	}
	return NewExplorerService(reader, NewTxClassifier("ubbn"), labels, watchlist, cache, newTestPool(t), testParams, testLogger())
}

func sendTx(hash string, height int64, from, to string) *types.Transaction {
	return &types.Transaction{
		Hash:   hash,
		Height: height,
		Messages: []types.Message{msg("/cosmos.bank.v1beta1.MsgSend",
			fmt.Sprintf(`,"from_address":%q,"to_address":%q,"amount":[{"denom":"ubbn","amount":"1"}]`, from, to))},
	}
}

func typedTx(hash, typeURL string) *types.Transaction {
	return &types.Transaction{Hash: hash, Messages: []types.Message{{TypeURL: typeURL}}}
}

func blocksEvery(n int, gap time.Duration, txCount int) []*types.Block {
	head := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	blocks := make([]*types.Block, n)
	for i := range blocks {
		blocks[i] = &types.Block{
			Height:  int64(1000 - i),
			Time:    head.Add(-time.Duration(i) * gap),
			TxCount: txCount,
		}
	}
	return blocks
}

func TestGetNetworkStats(t *testing.T) {
	reader := &fakeReader{
		latestBlock: func(context.Context) (*types.Block, error) {
			return &types.Block{Height: 500, ChainID: "bbn-test-6"}, nil
		},
		nodeInfo: func(context.Context) (*types.NodeInfo, error) {
			return &types.NodeInfo{Version: "0.38.17", AppVersion: "v1.0.0"}, nil
		},
		validators: func(_ context.Context, status string) ([]*types.Validator, error) {
			assert.Equal(t, "BOND_STATUS_BONDED", status)
			return []*types.Validator{{}, {}, {}}, nil
		},
		stakingPool: func(context.Context) (*types.StakingPool, error) {
			return &types.StakingPool{BondedTokens: "123456"}, nil
		},
	}
	cache := newMemoryCache()
	svc := newTestExplorer(t, reader, nil, cache)

	stats, err := svc.GetNetworkStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(500), stats.LatestBlock.Height)
	assert.Equal(t, "v1.0.0", stats.NodeVersion)
	assert.Equal(t, 3, stats.TotalValidators)
	assert.Equal(t, "123456", stats.BondedTokens)
	assert.False(t, stats.Degraded)
	assert.True(t, cache.has(cacheKeyNetworkStats))

	// the second call is served from the cache
	reader.latestBlock = nil
	again, err := svc.GetNetworkStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(500), again.LatestBlock.Height)
}

func TestGetNetworkStatsDegradesOptionalReads(t *testing.T) {
	reader := &fakeReader{
		latestBlock: func(context.Context) (*types.Block, error) {
			return &types.Block{Height: 7}, nil
		},
	}
	cache := newMemoryCache()
	svc := newTestExplorer(t, reader, nil, cache)

	stats, err := svc.GetNetworkStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Degraded)
	assert.Equal(t, "unknown", stats.NodeVersion)
	assert.Equal(t, "0", stats.BondedTokens)
	assert.Equal(t, 0, stats.TotalValidators)
	assert.Equal(t, "bbn-test-6", stats.ChainID, "falls back to the configured chain id")
	assert.False(t, cache.has(cacheKeyNetworkStats), "degraded stats are not cached")
}

func TestGetNetworkStatsRequiresLatestBlock(t *testing.T) {
	svc := newTestExplorer(t, &fakeReader{}, nil, nil)

	_, err := svc.GetNetworkStats(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstreamUnavailable(err))
}

func TestGetAddressTransactionsMergesAndDeduplicates(t *testing.T) {
	me := accountAddr("q")
	other := accountAddr("p")

	// 15 sent, 12 received, 4 of the received are also in the sent list
	var sent, received []*types.Transaction
	for i := 0; i < 15; i++ {
		sent = append(sent, sendTx(fmt.Sprintf("S%02d", i), int64(100+i*2), me, other))
	}
	for i := 0; i < 4; i++ {
		received = append(received, sent[i])
	}
	for i := 0; i < 8; i++ {
		received = append(received, sendTx(fmt.Sprintf("R%02d", i), int64(101+i*2), other, me))
	}

	var mu sync.Mutex
	queries := make([]string, 0, 2)
	reader := &fakeReader{
		search: func(_ context.Context, query string, limit int) ([]*types.Transaction, error) {
			mu.Lock()
			queries = append(queries, query)
			mu.Unlock()
			assert.Equal(t, 50, limit)
			if strings.HasPrefix(query, "message.sender=") {
				return sent, nil
			}
			return received, nil
		},
	}
	svc := newTestExplorer(t, reader, nil, nil)

	result, err := svc.GetAddressTransactions(context.Background(), me, 50)
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.ElementsMatch(t, []string{"message.sender='" + me + "'", "transfer.recipient='" + me + "'"}, queries)

	require.Len(t, result.Transactions, 23)
	seen := make(map[string]bool)
	for i, tx := range result.Transactions {
		assert.False(t, seen[tx.Hash], "duplicate hash %s", tx.Hash)
		seen[tx.Hash] = true
		if i > 0 {
			assert.GreaterOrEqual(t, result.Transactions[i-1].Height, tx.Height)
		}
		if strings.HasPrefix(tx.Hash, "R") {
			assert.Equal(t, types.DirectionIn, tx.Direction)
		} else {
			assert.Equal(t, types.DirectionOut, tx.Direction)
		}
	}
}

func TestGetAddressTransactionsTruncatesAndDegrades(t *testing.T) {
	me := accountAddr("q")
	var sent []*types.Transaction
	for i := 0; i < 10; i++ {
		sent = append(sent, sendTx(fmt.Sprintf("S%02d", i), int64(i), me, accountAddr("p")))
	}
	reader := &fakeReader{
		search: func(_ context.Context, query string, _ int) ([]*types.Transaction, error) {
			if strings.HasPrefix(query, "message.sender=") {
				return sent, nil
			}
			return nil, errNodeDown
		},
	}
	svc := newTestExplorer(t, reader, nil, nil)

	result, err := svc.GetAddressTransactions(context.Background(), me, 3)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	require.Len(t, result.Transactions, 3)
	assert.Equal(t, "S09", result.Transactions[0].Hash)
}

func TestGetAddressTransactionsRejectsInvalidAddress(t *testing.T) {
	svc := newTestExplorer(t, &fakeReader{}, nil, nil)

	for _, addr := range []string{"", "cosmos1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq", "BBN1QQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQ", "bbn1short"} {
		_, err := svc.GetAddressTransactions(context.Background(), addr, 10)
		require.Error(t, err, addr)
		assert.True(t, apperrors.IsUserError(err), addr)
	}
}

func TestAddressWithBadChecksumIsRejected(t *testing.T) {
	// right prefix, alphabet and length, wrong checksum
	addr := "bbn1" + strings.Repeat("q", 38)
	svc := newTestExplorer(t, &fakeReader{}, nil, nil)

	_, err := svc.GetAddressInfo(context.Background(), addr)
	require.Error(t, err)
	assert.Equal(t, 400, apperrors.Categorize(err).StatusCode)

	_, err = svc.GetAddressTransactions(context.Background(), addr, 10)
	require.Error(t, err)
	assert.True(t, apperrors.IsUserError(err))
}

func TestMergeTransactions(t *testing.T) {
	a := &types.Transaction{Hash: "A", Height: 1}
	b := &types.Transaction{Hash: "B", Height: 2}
	aAgain := &types.Transaction{Hash: "A", Height: 99}

	merged := MergeTransactions([]*types.Transaction{a, nil}, nil, []*types.Transaction{aAgain, b})
	require.Len(t, merged, 2)
	assert.Same(t, a, merged[0], "first occurrence wins")
	assert.Same(t, b, merged[1])
}

func TestMergeTransactionsProperties(t *testing.T) {
	toTxs := func(hashes []string, offset int) []*types.Transaction {
		txs := make([]*types.Transaction, len(hashes))
		for i, h := range hashes {
			txs[i] = &types.Transaction{Hash: h, Height: int64(offset + i)}
		}
		return txs
	}
	hashes := gen.SliceOf(gen.OneConstOf("A", "B", "C", "D", "E", "F"))

	properties := gopter.NewProperties(nil)
	properties.Property("one entry per hash, first observation kept", prop.ForAll(
		func(sent, received []string) bool {
			first := toTxs(sent, 0)
			second := toTxs(received, len(sent))
			merged := MergeTransactions(first, second)

			firstSeen := map[string]*types.Transaction{}
			for _, tx := range append(append([]*types.Transaction{}, first...), second...) {
				if _, ok := firstSeen[tx.Hash]; !ok {
					firstSeen[tx.Hash] = tx
				}
			}
			if len(merged) != len(firstSeen) {
				return false
			}
			for _, tx := range merged {
				if firstSeen[tx.Hash] != tx {
					return false
				}
			}
			return true
		},
		hashes, hashes,
	))
	properties.TestingRun(t)
}

func TestBuildOverviewHistogram(t *testing.T) {
	var txs []*types.Transaction
	add := func(n int, typeURL string) {
		for i := 0; i < n; i++ {
			txs = append(txs, typedTx(fmt.Sprintf("%s-%d", typeURL, i), typeURL))
		}
	}
	add(40, "/babylon.finality.v1.MsgAddFinalitySig")
	add(25, "/cosmos.bank.v1beta1.MsgSend")
	add(10, "/cosmos.staking.v1beta1.MsgDelegate")
	add(10, "/ibc.core.client.v1.MsgUpdateClient")
	add(7, "/cosmos.gov.v1.MsgVote")
	add(5, "/babylon.btcstaking.v1.MsgCreateBTCDelegation")
	add(3, "/cosmos.staking.v1beta1.MsgUndelegate")
	txs = append(txs, &types.Transaction{Hash: "empty"})

	overview := BuildOverview(nil, txs, nil)

	assert.Equal(t, 100, overview.TotalTransactions, "transactions without messages are not counted")
	require.Len(t, overview.TxTypes, 6)
	assert.Equal(t, types.TxTypeShare{Type: "Finality Sig", Count: 40, Percent: 40}, overview.TxTypes[0])
	assert.Equal(t, types.TxTypeShare{Type: "Transfer", Count: 25, Percent: 25}, overview.TxTypes[1])
	// equal counts keep first-seen order
	assert.Equal(t, "Delegate", overview.TxTypes[2].Type)
	assert.Equal(t, "UpdateClient", overview.TxTypes[3].Type)
	assert.Equal(t, "BTC Stake", overview.TxTypes[5].Type)
}

func TestBuildOverviewPercentRounding(t *testing.T) {
	txs := []*types.Transaction{
		typedTx("1", "/cosmos.bank.v1beta1.MsgSend"),
		typedTx("2", "/cosmos.bank.v1beta1.MsgSend"),
		typedTx("3", "/cosmos.gov.v1.MsgVote"),
	}
	overview := BuildOverview(nil, txs, nil)
	require.Len(t, overview.TxTypes, 2)
	assert.Equal(t, 67, overview.TxTypes[0].Percent)
	assert.Equal(t, 33, overview.TxTypes[1].Percent)
}

func TestBuildOverviewBlockMetrics(t *testing.T) {
	blocks := blocksEvery(20, 5*time.Second, 10)
	overview := BuildOverview(nil, nil, blocks)

	assert.InDelta(t, 5.0, overview.AvgBlockTime, 1e-9)
	assert.Equal(t, "5.0", overview.AvgBlockTimeFormatted)
	assert.InDelta(t, 2.0, overview.TPS, 1e-9)
	assert.Equal(t, "2.0", overview.TPSFormatted)
	require.Len(t, overview.RecentBlocks, 10)
	assert.Equal(t, int64(1000), overview.RecentBlocks[0].Height)
}

func TestBuildOverviewSingleBlockFallback(t *testing.T) {
	overview := BuildOverview(nil, nil, blocksEvery(1, 0, 12))
	assert.Equal(t, 6.0, overview.AvgBlockTime)
	assert.Equal(t, "6.0", overview.AvgBlockTimeFormatted)
	assert.InDelta(t, 2.0, overview.TPS, 1e-9)

	empty := BuildOverview(nil, nil, nil)
	assert.Equal(t, 6.0, empty.AvgBlockTime)
	assert.Equal(t, 0.0, empty.TPS)
	assert.Empty(t, empty.TxTypes)
}

func TestBuildOverviewNonPositiveBlockGaps(t *testing.T) {
	cases := []struct {
		name    string
		gap     time.Duration
		txCount int
		tps     float64
	}{
		{"equal timestamps", 0, 12, 2.0},
		{"equal timestamps without transactions", 0, 0, 0},
		{"timestamps out of order", -3 * time.Second, 6, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			overview := BuildOverview(nil, nil, blocksEvery(5, tc.gap, tc.txCount))

			assert.Equal(t, 6.0, overview.AvgBlockTime)
			assert.False(t, math.IsNaN(overview.TPS) || math.IsInf(overview.TPS, 0))
			assert.InDelta(t, tc.tps, overview.TPS, 1e-9)

			_, err := json.Marshal(overview)
			assert.NoError(t, err)
		})
	}
}

func TestGetNetworkOverviewDegrades(t *testing.T) {
	reader := &fakeReader{
		latestBlock: func(context.Context) (*types.Block, error) { return &types.Block{Height: 1}, nil },
		recentBlocks: func(_ context.Context, count int) (*types.BlockWindow, error) {
			assert.Equal(t, 20, count)
			return &types.BlockWindow{Blocks: blocksEvery(3, 6*time.Second, 1), Requested: count, Partial: true}, nil
		},
	}
	cache := newMemoryCache()
	svc := newTestExplorer(t, reader, nil, cache)

	overview, err := svc.GetNetworkOverview(context.Background())
	require.NoError(t, err)
	assert.True(t, overview.Degraded)
	assert.Equal(t, 0, overview.TotalTransactions)
	assert.Len(t, overview.RecentBlocks, 3)
	assert.False(t, cache.has(cacheKeyOverview))
}

func TestGetNetworkOverviewCachesCompleteResult(t *testing.T) {
	reader := &fakeReader{
		latestBlock: func(context.Context) (*types.Block, error) { return &types.Block{Height: 1}, nil },
		nodeInfo:    func(context.Context) (*types.NodeInfo, error) { return &types.NodeInfo{Version: "v1"}, nil },
		validators:  func(context.Context, string) ([]*types.Validator, error) { return nil, nil },
		stakingPool: func(context.Context) (*types.StakingPool, error) { return &types.StakingPool{}, nil },
		recentBlocks: func(_ context.Context, count int) (*types.BlockWindow, error) {
			return &types.BlockWindow{Blocks: blocksEvery(count, 6*time.Second, 2), Requested: count}, nil
		},
		recentTxs: func(_ context.Context, limit int) (*types.TransactionWindow, error) {
			assert.Equal(t, 100, limit)
			return &types.TransactionWindow{Transactions: []*types.Transaction{typedTx("a", "/cosmos.gov.v1.MsgVote")}, Requested: limit}, nil
		},
	}
	cache := newMemoryCache()
	svc := newTestExplorer(t, reader, nil, cache)

	overview, err := svc.GetNetworkOverview(context.Background())
	require.NoError(t, err)
	assert.False(t, overview.Degraded)
	assert.True(t, cache.has(cacheKeyOverview))
	assert.Equal(t, "v1", overview.Stats.NodeVersion)
}

func TestRankFinalityProviders(t *testing.T) {
	fps := []*types.FinalityProvider{
		{Moniker: "low", HighestVotedHeight: 10, SlashedBabylonHeight: "0", Active: true},
		{Moniker: "high", HighestVotedHeight: 90, SlashedBabylonHeight: "0"},
		{Moniker: "slashed", HighestVotedHeight: 50, SlashedBabylonHeight: "12", Active: true},
		{Moniker: "tie", HighestVotedHeight: 10, SlashedBabylonHeight: "0", Jailed: true},
	}
	ranked := RankFinalityProviders(fps)

	names := make([]string, len(ranked))
	for i, fp := range ranked {
		names[i] = fp.Moniker
	}
	assert.Equal(t, []string{"high", "slashed", "low", "tie"}, names)
	assert.True(t, ranked[0].Active, "active is derived, not trusted")
	assert.False(t, ranked[1].Active)
	assert.False(t, ranked[3].Active)
}

func TestGetBTCDelegations(t *testing.T) {
	reader := &fakeReader{
		delegations: func(_ context.Context, status string) ([]*types.BTCDelegation, error) {
			assert.Equal(t, "ACTIVE", status)
			return []*types.BTCDelegation{{StakingValueSat: 100_000}, {StakingValueSat: 250_000}}, nil
		},
	}
	svc := newTestExplorer(t, reader, nil, nil)

	overview, err := svc.GetBTCDelegations(context.Background(), "ACTIVE")
	require.NoError(t, err)
	assert.Equal(t, uint64(350_000), overview.TotalStakeSat)
	assert.True(t, overview.Degraded, "epoch lookup failed")
	require.NotNil(t, overview.Epoch)
	assert.Zero(t, overview.Epoch.Number)
}

func TestGetKnownEntities(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	for _, l := range []struct{ addr, category string }{
		{accountAddr("q"), "whale"}, {accountAddr("p"), "whale"}, {operatorAddr("z"), "validator"},
	} {
		_, err := store.CreateLabel(ctx, &models.AddressLabel{Address: l.addr, Label: "x", Category: l.category})
		require.NoError(t, err)
	}

	var fps []*types.FinalityProvider
	for i := 0; i < 12; i++ {
		fps = append(fps, &types.FinalityProvider{
			Address:              accountAddr(fmt.Sprintf("fp%d", i)),
			Moniker:              fmt.Sprintf("fp-%02d", i),
			HighestVotedHeight:   uint64(i),
			SlashedBabylonHeight: "0",
			Jailed:               i == 11,
		})
	}
	fps[0].Moniker = ""

	var validators []*types.Validator
	for i := 0; i < 7; i++ {
		validators = append(validators, &types.Validator{
			OperatorAddress: operatorAddr(fmt.Sprintf("val%d", i)),
			Moniker:         fmt.Sprintf("val-%d", i),
			Tokens:          decimal.NewFromInt(int64(i) * 1_000_000).String(),
			Jailed:          i == 6,
		})
	}

	reader := &fakeReader{
		fps:        func(context.Context) ([]*types.FinalityProvider, error) { return fps, nil },
		validators: func(context.Context, string) ([]*types.Validator, error) { return validators, nil },
	}
	svc := newTestExplorer(t, reader, store, nil)

	entities, err := svc.GetKnownEntities(ctx)
	require.NoError(t, err)
	assert.False(t, entities.Degraded)
	require.Equal(t, 15, entities.TotalEntities)

	first := entities.Entities[0]
	assert.Equal(t, "fp-11", first.Name)
	assert.Equal(t, "Suspended", first.Status)
	assert.False(t, first.Active)
	assert.Equal(t, "Finality Provider", first.Type)
	assert.Equal(t, fps[11].Address[:8]+"..."+fps[11].Address[len(fps[11].Address)-8:], first.AddressShort)

	topValidator := entities.Entities[10]
	assert.Equal(t, "val-6", topValidator.Name)
	assert.Equal(t, "Jailed", topValidator.Status)
	assert.Equal(t, "Validator", topValidator.Type)
	assert.Equal(t, "val-2", entities.Entities[14].Name)

	assert.Equal(t, 13, entities.ActiveEntities)
	assert.Equal(t, int64(3), entities.TotalLabeled)
	assert.Equal(t, map[string]int64{"whale": 2, "validator": 1}, entities.LabelsByCategory)
}

func TestGetKnownEntitiesDegrades(t *testing.T) {
	reader := &fakeReader{
		fps: func(context.Context) ([]*types.FinalityProvider, error) {
			return []*types.FinalityProvider{{Address: accountAddr("q"), SlashedBabylonHeight: "0"}}, nil
		},
	}
	svc := newTestExplorer(t, reader, nil, nil)

	entities, err := svc.GetKnownEntities(context.Background())
	require.NoError(t, err)
	assert.True(t, entities.Degraded)
	require.Len(t, entities.Entities, 1)
	assert.Equal(t, "Unknown Provider", entities.Entities[0].Name)
	assert.NotNil(t, entities.LabelsByCategory)
}

func TestGetAddressInfo(t *testing.T) {
	addr := accountAddr("q")
	reader := &fakeReader{
		balance: balances(map[string]string{addr: "2500000"}),
		account: func(_ context.Context, address string) (*types.AccountInfo, error) {
			return &types.AccountInfo{Address: address, Type: "/cosmos.auth.v1beta1.BaseAccount", Sequence: 4}, nil
		},
	}
	svc := newTestExplorer(t, reader, nil, nil)

	info, err := svc.GetAddressInfo(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromFloat(2.5).Equal(info.NativeBalance))
	assert.Equal(t, uint64(4), info.Account.Sequence)
	assert.False(t, info.Degraded)
	assert.False(t, info.IsValidator)

	reader.account = func(context.Context, string) (*types.AccountInfo, error) { return nil, errNoRoute }
	info, err = svc.GetAddressInfo(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, info.Degraded, "an address without an account is a new address")
	assert.Equal(t, addr, info.Account.Address)
	assert.Zero(t, info.Account.Sequence)

	reader.account = nil
	info, err = svc.GetAddressInfo(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, info.Degraded)
	assert.Equal(t, addr, info.Account.Address)

	reader.balance = nil
	_, err = svc.GetAddressInfo(context.Background(), addr)
	assert.Error(t, err)
}

func TestGetTransaction(t *testing.T) {
	reader := &fakeReader{
		txByHash: func(_ context.Context, hash string) (*types.Transaction, error) {
			tx := sendTx(hash, 10, accountAddr("q"), accountAddr("p"))
			tx.Memo = "hello"
			tx.Messages = append(tx.Messages, types.Message{TypeURL: "/cosmos.gov.v1.MsgVote"})
			return tx, nil
		},
	}
	svc := newTestExplorer(t, reader, nil, nil)

	detail, err := svc.GetTransaction(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, "Transfer", detail.Label)
	assert.Equal(t, "hello", detail.Memo)
	assert.Equal(t, []string{"/cosmos.bank.v1beta1.MsgSend", "/cosmos.gov.v1.MsgVote"}, detail.MessageTypes)
}

func TestWatchlist(t *testing.T) {
	store := storage.NewMemoryStore()
	a, b := accountAddr("q"), accountAddr("p")
	reader := &fakeReader{balance: balances(map[string]string{a: "1000000"})}
	svc := newTestExplorer(t, reader, store, nil)
	ctx := context.Background()

	wa, err := svc.AddWatchedAddress(ctx, a, "  treasury ")
	require.NoError(t, err)
	require.NotNil(t, wa.Nickname)
	assert.Equal(t, "treasury", *wa.Nickname)

	wb, err := svc.AddWatchedAddress(ctx, b, " ")
	require.NoError(t, err)
	assert.Nil(t, wb.Nickname)

	_, err = svc.AddWatchedAddress(ctx, a, "")
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = svc.AddWatchedAddress(ctx, "nope", "")
	assert.True(t, apperrors.IsUserError(err))

	list, err := svc.ListWatchedAddresses(ctx)
	require.NoError(t, err)
	require.Len(t, list.Addresses, 2)
	assert.True(t, list.Degraded, "balance of b is unavailable")
	assert.True(t, decimal.NewFromInt(1).Equal(list.TotalBalance))

	require.NoError(t, svc.RemoveWatchedAddress(ctx, wa.ID))
	err = svc.RemoveWatchedAddress(ctx, wa.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWatchlistWithoutStore(t *testing.T) {
	svc := newTestExplorer(t, &fakeReader{}, nil, nil)

	list, err := svc.ListWatchedAddresses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list.Addresses)

	_, err = svc.AddWatchedAddress(context.Background(), accountAddr("q"), "")
	assert.Error(t, err)
}
