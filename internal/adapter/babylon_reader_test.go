package adapter

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/logging"
)

// fakeLCD serves a small chain: blocks 1..head, with configurable failures
type fakeLCD struct {
	head         int64
	failHeights  map[int64]bool
	txsPerHeight map[int64]int
	failTxs      map[int64]bool
	routes       map[string]string // exact path -> body
	missing      map[string]bool   // path prefix -> 404
	blockCalls   atomic.Int32
}

func (f *fakeLCD) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	for prefix := range f.missing {
		if strings.HasPrefix(path, prefix) {
			http.Error(w, `{"code":12,"message":"Not Implemented"}`, http.StatusNotImplemented)
			return
		}
	}
	if body, ok := f.routes[path]; ok {
		_, _ = w.Write([]byte(body))
		return
	}

	switch {
	case path == pathLatestBlock:
		_, _ = w.Write([]byte(blockJSON(f.head, f.txsPerHeight[f.head])))
	case strings.HasPrefix(path, "/cosmos/base/tendermint/v1beta1/blocks/"):
		f.blockCalls.Add(1)
		h, _ := strconv.ParseInt(strings.TrimPrefix(path, "/cosmos/base/tendermint/v1beta1/blocks/"), 10, 64)
		if f.failHeights[h] || h < 1 || h > f.head {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(blockJSON(h, f.txsPerHeight[h])))
	case path == pathTxs:
		query := r.URL.Query().Get("query")
		h, _ := strconv.ParseInt(strings.TrimPrefix(query, "tx.height="), 10, 64)
		if f.failTxs[h] {
			http.Error(w, "boom", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(txsJSON(h, f.txsPerHeight[h])))
	default:
		http.NotFound(w, r)
	}
}

func blockJSON(height int64, txs int) string {
	list := make([]string, txs)
	for i := range list {
		list[i] = `"dHg="`
	}
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(height) * 6 * time.Second)
	hash := base64.StdEncoding.EncodeToString([]byte{0xAB, byte(height)})
	return fmt.Sprintf(`{"block_id":{"hash":%q},"block":{"header":{"chain_id":"bbn-test-6","height":"%d","time":%q,"proposer_address":""},"data":{"txs":[%s]}}}`,
		hash, height, ts.Format(time.RFC3339Nano), strings.Join(list, ","))
}

func txsJSON(height int64, n int) string {
	responses := make([]string, n)
	for i := range responses {
		responses[i] = fmt.Sprintf(`{"txhash":"h%d-%d","height":"%d","code":0,"gas_wanted":"200000","gas_used":"150000","timestamp":"2025-01-01T00:00:00Z","tx":{"body":{"messages":[{"@type":"/cosmos.bank.v1beta1.MsgSend","from_address":"bbn1a","to_address":"bbn1b","amount":[{"denom":"ubbn","amount":"5"}]}]}}}`, height, i, height)
	}
	return fmt.Sprintf(`{"txs":[],"tx_responses":[%s],"total":"%d"}`, strings.Join(responses, ","), n)
}

func newTestReader(t *testing.T, lcd http.Handler) *NodeReader {
	t.Helper()
	srv := httptest.NewServer(lcd)
	t.Cleanup(srv.Close)
	client := NewNodeClient(NodeClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second, CacheTTL: 10 * time.Second}, logging.Nop())
	reader := NewNodeReader(client, NodeReaderConfig{ChainID: "bbn-test-6", Workers: 4}, logging.Nop())
	t.Cleanup(reader.Close)
	return reader
}

func TestGetRecentBlocksToleratesPartialFailure(t *testing.T) {
	lcd := &fakeLCD{head: 100, failHeights: map[int64]bool{95: true, 93: true}}
	reader := newTestReader(t, lcd)

	window, err := reader.GetRecentBlocks(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, window.Blocks, 8, "latest plus the 7 heights that resolved")
	assert.True(t, window.Partial)
	assert.Equal(t, 10, window.Requested)

	seen := map[int64]bool{}
	for i, b := range window.Blocks {
		assert.False(t, seen[b.Height], "duplicate height %d", b.Height)
		seen[b.Height] = true
		if i > 0 {
			assert.Greater(t, window.Blocks[i-1].Height, b.Height)
		}
	}
	assert.Equal(t, int64(100), window.Blocks[0].Height)
	assert.False(t, seen[95])
	assert.False(t, seen[93])
}

func TestNodeReaderWithoutLogger(t *testing.T) {
	srv := httptest.NewServer(&fakeLCD{head: 10, failHeights: map[int64]bool{8: true}})
	t.Cleanup(srv.Close)
	client := NewNodeClient(NodeClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}, nil)
	reader := NewNodeReader(client, NodeReaderConfig{ChainID: "bbn-test-6"}, nil)
	t.Cleanup(reader.Close)

	window, err := reader.GetRecentBlocks(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, window.Partial)
	assert.Len(t, window.Blocks, 4)
}

func TestGetRecentBlocksClampsAtGenesis(t *testing.T) {
	lcd := &fakeLCD{head: 3}
	reader := newTestReader(t, lcd)

	window, err := reader.GetRecentBlocks(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, window.Blocks, 3)
	assert.False(t, window.Partial)
	assert.Equal(t, int32(2), lcd.blockCalls.Load(), "heights below 1 are never requested")
	assert.Equal(t, int64(1), window.Blocks[2].Height)
}

func TestGetRecentBlocksFailsWithoutHead(t *testing.T) {
	lcd := &fakeLCD{head: 10, missing: map[string]bool{pathLatestBlock: true}}
	reader := newTestReader(t, lcd)

	_, err := reader.GetRecentBlocks(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, apperrors.IsUpstreamUnavailable(err))
}

func TestGetRecentTransactions(t *testing.T) {
	lcd := &fakeLCD{
		head:         50,
		txsPerHeight: map[int64]int{50: 2, 49: 0, 48: 3, 47: 4, 46: 1},
		failTxs:      map[int64]bool{48: true},
	}
	reader := newTestReader(t, lcd)

	window, err := reader.GetRecentTransactions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, window.Transactions, 5)
	assert.True(t, window.Partial, "block 48 failed")

	// 2 from block 50, then 3 of block 47's 4; block 48 skipped
	assert.Equal(t, "H50-0", window.Transactions[0].Hash)
	assert.Equal(t, int64(47), window.Transactions[2].Height)
	assert.Equal(t, int64(47), window.Transactions[4].Height)
	assert.Equal(t, "/cosmos.bank.v1beta1.MsgSend", window.Transactions[0].Messages[0].TypeURL)
}

func TestGetRecentTransactionsFewerThanLimit(t *testing.T) {
	lcd := &fakeLCD{head: 5, txsPerHeight: map[int64]int{5: 1, 3: 1}}
	reader := newTestReader(t, lcd)

	window, err := reader.GetRecentTransactions(context.Background(), 20)
	require.NoError(t, err)
	assert.Len(t, window.Transactions, 2)
	assert.False(t, window.Partial)
}

func TestBlockParsing(t *testing.T) {
	lcd := &fakeLCD{head: 7, txsPerHeight: map[int64]int{7: 3}}
	reader := newTestReader(t, lcd)

	block, err := reader.GetLatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), block.Height)
	assert.Equal(t, 3, block.TxCount)
	assert.Equal(t, "AB07", block.Hash)
	assert.Equal(t, "bbn-test-6", block.ChainID)
	assert.Equal(t, 42*time.Second, block.Time.Sub(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestBabylonAccessorsAbsorbMissingRoutes(t *testing.T) {
	lcd := &fakeLCD{head: 1, missing: map[string]bool{"/babylon/": true}}
	reader := newTestReader(t, lcd)
	ctx := context.Background()

	fps, err := reader.GetFinalityProviders(ctx)
	require.NoError(t, err)
	assert.NotNil(t, fps)
	assert.Empty(t, fps)

	dels, err := reader.GetBTCDelegations(ctx, "active")
	require.NoError(t, err)
	assert.Empty(t, dels)

	epoch, err := reader.GetCurrentEpoch(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), epoch.Number)
}

func TestBabylonAccessorsPropagateOutages(t *testing.T) {
	reader := newTestReader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))

	_, err := reader.GetFinalityProviders(context.Background())
	assert.True(t, apperrors.IsUpstreamUnavailable(err))
}

func TestGetFinalityProviders(t *testing.T) {
	body := `{"finality_providers":[
		{"btc_pk":"pk1","addr":"bbn1fp1","description":{"moniker":"Alpha"},"commission":"0.05","slashed_babylon_height":"0","jailed":false,"highest_voted_height":120,"soft_deleted":false,"active":false},
		{"btc_pk":"pk2","addr":"bbn1fp2","description":{"moniker":"Beta"},"slashed_babylon_height":"5521","jailed":false,"highest_voted_height":90,"active":true},
		{"btc_pk":"pk1","addr":"bbn1fp1","description":{"moniker":"Alpha duplicate"},"slashed_babylon_height":"0"},
		{"btc_pk":"pk3","addr":"bbn1fp3","slashed_babylon_height":0,"jailed":true,"highest_voted_height":"77"}
	]}`
	lcd := &fakeLCD{routes: map[string]string{pathFinalityProviders: body}}
	reader := newTestReader(t, lcd)

	fps, err := reader.GetFinalityProviders(context.Background())
	require.NoError(t, err)
	require.Len(t, fps, 3, "deduplicated on BTC public key")

	assert.Equal(t, "Alpha", fps[0].Moniker)
	assert.True(t, fps[0].Active, "derived flag overrides the node's")
	assert.Equal(t, uint64(120), fps[0].HighestVotedHeight)
	assert.False(t, fps[1].Active, "slashed")
	assert.False(t, fps[2].Active, "jailed")
	assert.Equal(t, "0", fps[2].SlashedBabylonHeight, "numeric zero decodes to the same text")
	assert.Equal(t, uint64(77), fps[2].HighestVotedHeight)
}

func TestGetBTCDelegations(t *testing.T) {
	body := `{"btc_delegations":[
		{"staking_tx_hash":"aa","staker_addr":"bbn1s","fp_btc_pk_list":["pk1"],"staking_value":"100000","staking_time":64000,"unbonding_time":1008,"state":"active"},
		{"staking_tx_hash":"aa","staker_addr":"bbn1s","staking_value":"100000"},
		{"staking_tx_hex":"0200","staker_addr":"bbn1t","total_sat":"5000","status_desc":"UNBONDED"}
	]}`
	lcd := &fakeLCD{routes: map[string]string{pathBTCDelegations: body}}
	reader := newTestReader(t, lcd)

	dels, err := reader.GetBTCDelegations(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, dels, 2)
	assert.Equal(t, "ACTIVE", dels[0].State)
	assert.Equal(t, uint64(100000), dels[0].StakingValueSat)
	assert.Equal(t, uint64(64000), dels[0].StakingTime)
	assert.Equal(t, "0200", dels[1].StakingTxHash)
	assert.Equal(t, uint64(5000), dels[1].StakingValueSat)
	assert.Equal(t, "UNBONDED", dels[1].State)
}

func TestGetCurrentEpochShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want uint64
	}{
		{"query shape", `{"current_epoch":"812","epoch_boundary":"290160"}`, 812},
		{"detail shape", `{"epoch":{"epoch_number":"9","current_epoch_interval":"360","first_block_height":"2881"}}`, 9},
		{"flat shape", `{"epoch_number":"11","current_epoch_interval":"360"}`, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := newTestReader(t, &fakeLCD{routes: map[string]string{pathCurrentEpoch: tt.body}})
			epoch, err := reader.GetCurrentEpoch(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, epoch.Number)
		})
	}
}

func TestGetAccountInfo(t *testing.T) {
	routes := map[string]string{
		"/cosmos/auth/v1beta1/accounts/bbn1plain":  `{"account":{"@type":"/cosmos.auth.v1beta1.BaseAccount","address":"bbn1plain","account_number":"17","sequence":"250"}}`,
		"/cosmos/auth/v1beta1/accounts/bbn1module": `{"account":{"@type":"/cosmos.auth.v1beta1.ModuleAccount","base_account":{"account_number":"3","sequence":"0"},"name":"bonded_tokens_pool"}}`,
		"/cosmos/auth/v1beta1/accounts/bbn1vest":   `{"account":{"@type":"/cosmos.vesting.v1beta1.ContinuousVestingAccount","base_vesting_account":{"base_account":{"account_number":"88","sequence":"4"}}}}`,
	}
	reader := newTestReader(t, &fakeLCD{routes: routes})
	ctx := context.Background()

	plain, err := reader.GetAccountInfo(ctx, "bbn1plain")
	require.NoError(t, err)
	assert.Equal(t, uint64(250), plain.Sequence)
	assert.Equal(t, uint64(17), plain.AccountNumber)

	module, err := reader.GetAccountInfo(ctx, "bbn1module")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), module.AccountNumber)
	assert.Equal(t, "/cosmos.auth.v1beta1.ModuleAccount", module.Type)

	vest, err := reader.GetAccountInfo(ctx, "bbn1vest")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), vest.Sequence)

	_, err = reader.GetAccountInfo(ctx, "bbn1unknown")
	assert.True(t, apperrors.IsUpstreamUnavailable(err), "unknown accounts surface as errors")
}

func TestGetTransactionByHash(t *testing.T) {
	routes := map[string]string{
		"/cosmos/tx/v1beta1/txs/ABCD": `{"tx":{"body":{"messages":[{"@type":"/babylon.finality.v1.MsgAddFinalitySig","signer":"bbn1fp"}],"memo":"hi"}},"tx_response":{"txhash":"ABCD","height":"12","code":5,"gas_used":"10","gas_wanted":"20","timestamp":"2025-02-01T10:00:00Z"}}`,
	}
	reader := newTestReader(t, &fakeLCD{routes: routes})

	tx, err := reader.GetTransactionByHash(context.Background(), "0xabcd")
	require.NoError(t, err)
	assert.Equal(t, int64(12), tx.Height)
	assert.Equal(t, "hi", tx.Memo)
	assert.Equal(t, "/babylon.finality.v1.MsgAddFinalitySig", tx.Messages[0].TypeURL)
	assert.Equal(t, "failed", string(tx.Status()))

	_, err = reader.GetTransactionByHash(context.Background(), "FFFF")
	var catErr *apperrors.CategorizedError
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, http.StatusNotFound, catErr.StatusCode)
}

func TestSearchTransactionsPairsParallelArrays(t *testing.T) {
	var gotQuery string
	reader := newTestReader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{
			"txs":[{"body":{"messages":[{"@type":"/cosmos.staking.v1beta1.MsgDelegate"}]}},{"body":{"messages":[{"@type":"/cosmos.gov.v1.MsgVote"}]}},{"body":{"messages":[]}}],
			"tx_responses":[{"txhash":"A","height":"9"},{"txhash":"B","height":"8"},{"txhash":"A","height":"9"}]
		}`))
	}))

	txs, err := reader.SearchTransactions(context.Background(), "message.sender='bbn1x'", 20)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "/cosmos.staking.v1beta1.MsgDelegate", txs[0].Messages[0].TypeURL)
	assert.Equal(t, "/cosmos.gov.v1.MsgVote", txs[1].Messages[0].TypeURL)
	assert.Contains(t, gotQuery, "order_by=ORDER_BY_DESC")
	assert.Contains(t, gotQuery, "limit=20")
}

func TestValidatorsAndPool(t *testing.T) {
	routes := map[string]string{
		pathValidators:  `{"validators":[{"operator_address":"bbnvaloper1a","status":"BOND_STATUS_BONDED","tokens":"1000","description":{"moniker":"Val A"},"commission":{"commission_rates":{"rate":"0.1"}}},{"operator_address":"bbnvaloper1a"}]}`,
		pathStakingPool: `{"pool":{"bonded_tokens":"123","not_bonded_tokens":"4"}}`,
		pathNodeInfo:    `{"default_node_info":{"network":"bbn-test-6","version":"0.38.17","moniker":"node"},"application_version":{"name":"babylon","version":"v1.0.0"}}`,
	}
	reader := newTestReader(t, &fakeLCD{routes: routes})
	ctx := context.Background()

	vals, err := reader.GetValidators(ctx, BondedStatus)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	assert.Equal(t, "Val A", vals[0].Moniker)
	assert.Equal(t, "0.1", vals[0].CommissionRate)

	pool, err := reader.GetStakingPool(ctx)
	require.NoError(t, err)
	assert.Equal(t, "123", pool.BondedTokens)

	info, err := reader.GetNodeInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.38.17", info.Version)
	assert.Equal(t, "v1.0.0", info.AppVersion)
}
