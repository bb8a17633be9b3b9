package service

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/babylon-scanner/internal/adapter"
	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/types"
	"github.com/babylon-scanner/internal/worker"
)

const (
	// overviewTxSample is how many recent transactions feed the type histogram
	overviewTxSample = 100
	// overviewBlockSample is how many recent blocks feed block time and TPS
	overviewBlockSample = 20
	// overviewTopTypes is how many histogram entries are kept
	overviewTopTypes = 6
	// overviewVolumeBlocks is how many blocks are listed in the volume chart
	overviewVolumeBlocks = 10
	// fallbackBlockTime is used when fewer than two blocks are available
	fallbackBlockTime = 6.0

	entityFinalityProviders = 10
	entityValidators        = 5

	cacheKeyNetworkStats = "stats:network"
	cacheKeyOverview     = "analytics:overview"
)

// ExplorerService aggregates chain reads into dashboard views.
// Every view degrades to partial data instead of failing when an optional read fails.
type ExplorerService struct {
	reader     adapter.ChainReader
	classifier *TxClassifier
	labels     LabelStore
	watchlist  WatchlistStore
	cache      SnapshotCache
	pool       pond.Pool
	params     ChainParams
	logger     *logging.Logger
}

// NewExplorerService creates an explorer service. labels, watchlist and cache may be nil.
// pool bounds the per-address balance fan-out of the watchlist.
func NewExplorerService(
	reader adapter.ChainReader,
	classifier *TxClassifier,
	labels LabelStore,
	watchlist WatchlistStore,
	cache SnapshotCache,
	pool pond.Pool,
	params ChainParams,
	logger *logging.Logger,
) *ExplorerService {
	return &ExplorerService{
		reader:     reader,
		classifier: classifier,
		labels:     labels,
		watchlist:  watchlist,
		cache:      cache,
		pool:       pool,
		params:     params,
		logger:     logger.WithField("component", "explorer"),
	}
}

// Params returns the chain parameters the service was built with
func (s *ExplorerService) Params() ChainParams {
	return s.params
}

// GetNetworkStats returns the chain head summary. Only the latest block is required;
// node version, validator count and bonded supply fall back to defaults.
func (s *ExplorerService) GetNetworkStats(ctx context.Context) (*types.NetworkStats, error) {
	if s.cache != nil {
		var cached types.NetworkStats
		if found, err := s.cache.Get(ctx, cacheKeyNetworkStats, &cached); err != nil {
			s.logger.WithError(err).Debug("network stats cache read failed")
		} else if found {
			return &cached, nil
		}
	}

	var (
		g          errgroup.Group
		latest     worker.Outcome[*types.Block]
		nodeInfo   worker.Outcome[*types.NodeInfo]
		validators worker.Outcome[[]*types.Validator]
		pool       worker.Outcome[*types.StakingPool]
	)
	worker.Go(ctx, &g, &latest, nil, s.reader.GetLatestBlock)
	worker.Go(ctx, &g, &nodeInfo, nil, s.reader.GetNodeInfo)
	worker.Go(ctx, &g, &validators, nil, func(ctx context.Context) ([]*types.Validator, error) {
		return s.reader.GetValidators(ctx, adapter.BondedStatus)
	})
	worker.Go(ctx, &g, &pool, nil, s.reader.GetStakingPool)
	_ = g.Wait()

	if latest.Failed() {
		return nil, latest.Err
	}

	stats := &types.NetworkStats{
		LatestBlock:     latest.Value,
		ChainID:         latest.Value.ChainID,
		NodeVersion:     "unknown",
		TotalValidators: len(validators.Value),
		BondedTokens:    "0",
		Degraded:        worker.AnyFailed(nodeInfo.Failed(), validators.Failed(), pool.Failed()),
	}
	if stats.ChainID == "" {
		stats.ChainID = s.params.ChainID
	}
	if info := nodeInfo.Value; info != nil {
		switch {
		case info.AppVersion != "":
			stats.NodeVersion = info.AppVersion
		case info.Version != "":
			stats.NodeVersion = info.Version
		}
	}
	if p := pool.Value; p != nil && p.BondedTokens != "" {
		stats.BondedTokens = p.BondedTokens
	}

	if stats.Degraded {
		s.logger.WithFields(map[string]interface{}{
			"node_info":  errText(nodeInfo.Err),
			"validators": errText(validators.Err),
			"pool":       errText(pool.Err),
		}).Warn("network stats degraded")
	} else if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKeyNetworkStats, stats); err != nil {
			s.logger.WithError(err).Debug("network stats cache write failed")
		}
	}
	return stats, nil
}

// GetRecentBlocks returns up to count recent blocks, newest first
func (s *ExplorerService) GetRecentBlocks(ctx context.Context, count int) (*types.BlockWindow, error) {
	return s.reader.GetRecentBlocks(ctx, count)
}

// RecentTransactions is a classified recent transaction list
type RecentTransactions struct {
	Transactions []*types.ClassifiedTransaction `json:"transactions"`
	Partial      bool                           `json:"partial"`
}

// GetRecentTransactions returns up to limit recent transactions, classified without an address
func (s *ExplorerService) GetRecentTransactions(ctx context.Context, limit int) (*RecentTransactions, error) {
	window, err := s.reader.GetRecentTransactions(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &RecentTransactions{
		Transactions: s.classifier.ClassifyAll(window.Transactions, ""),
		Partial:      window.Partial,
	}, nil
}

// TransactionDetail is a single transaction with its classification
type TransactionDetail struct {
	*types.ClassifiedTransaction
	Memo         string   `json:"memo,omitempty"`
	MessageTypes []string `json:"messageTypes"`
}

// GetTransaction returns the transaction with hash
func (s *ExplorerService) GetTransaction(ctx context.Context, hash string) (*TransactionDetail, error) {
	tx, err := s.reader.GetTransactionByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	detail := &TransactionDetail{
		ClassifiedTransaction: s.classifier.ClassifyTransaction(tx, ""),
		Memo:                  tx.Memo,
		MessageTypes:          make([]string, 0, len(tx.Messages)),
	}
	for _, m := range tx.Messages {
		detail.MessageTypes = append(detail.MessageTypes, m.TypeURL)
	}
	return detail, nil
}

// GetAddressTransactions returns the newest transactions address sent or received.
// The node cannot query "sender OR recipient", so both queries run and are merged by hash.
func (s *ExplorerService) GetAddressTransactions(ctx context.Context, address string, limit int) (*types.AddressTransactions, error) {
	address = strings.TrimSpace(address)
	if err := s.params.ValidateAddress(address); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 1
	}

	var (
		g        errgroup.Group
		sent     worker.Outcome[[]*types.Transaction]
		received worker.Outcome[[]*types.Transaction]
	)
	worker.Go(ctx, &g, &sent, nil, func(ctx context.Context) ([]*types.Transaction, error) {
		return s.reader.SearchTransactions(ctx, "message.sender='"+address+"'", limit)
	})
	worker.Go(ctx, &g, &received, nil, func(ctx context.Context) ([]*types.Transaction, error) {
		return s.reader.SearchTransactions(ctx, "transfer.recipient='"+address+"'", limit)
	})
	_ = g.Wait()

	merged := MergeTransactions(sent.Value, received.Value)
	classified := s.classifier.ClassifyAll(merged, address)
	sort.SliceStable(classified, func(i, j int) bool {
		return classified[i].Height > classified[j].Height
	})
	if len(classified) > limit {
		classified = classified[:limit]
	}

	result := &types.AddressTransactions{
		Address:      address,
		Transactions: classified,
		Degraded:     worker.AnyFailed(sent.Failed(), received.Failed()),
	}
	if result.Degraded {
		s.logger.WithFields(map[string]interface{}{
			"address":  address,
			"sent":     errText(sent.Err),
			"received": errText(received.Err),
		}).Warn("address history degraded")
	}
	return result, nil
}

// MergeTransactions concatenates the lists in order and keeps the first occurrence of each hash
func MergeTransactions(lists ...[]*types.Transaction) []*types.Transaction {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	seen := make(map[string]struct{}, total)
	out := make([]*types.Transaction, 0, total)
	for _, l := range lists {
		for _, tx := range l {
			if tx == nil {
				continue
			}
			if _, dup := seen[tx.Hash]; dup {
				continue
			}
			seen[tx.Hash] = struct{}{}
			out = append(out, tx)
		}
	}
	return out
}

// GetAddressInfo returns balances and account metadata. Balances are required;
// account metadata falls back to an empty account. An address without an account is not degraded.
func (s *ExplorerService) GetAddressInfo(ctx context.Context, address string) (*types.AddressInfo, error) {
	address = strings.TrimSpace(address)
	if err := s.params.ValidateAddress(address); err != nil {
		return nil, err
	}

	var (
		g       errgroup.Group
		balance worker.Outcome[*types.AccountBalance]
		account worker.Outcome[*types.AccountInfo]
	)
	worker.Go(ctx, &g, &balance, nil, func(ctx context.Context) (*types.AccountBalance, error) {
		return s.reader.GetAccountBalance(ctx, address)
	})
	worker.Go(ctx, &g, &account, &types.AccountInfo{Address: address}, func(ctx context.Context) (*types.AccountInfo, error) {
		info, err := s.reader.GetAccountInfo(ctx, address)
		if apperrors.IsFeatureUnsupported(err) {
			// no account yet: the address has never signed or received anything
			return &types.AccountInfo{Address: address}, nil
		}
		return info, err
	})
	_ = g.Wait()

	if balance.Failed() {
		return nil, balance.Err
	}

	return &types.AddressInfo{
		Address:       address,
		Balances:      balance.Value.Balances,
		NativeBalance: s.params.WholeUnits(balance.Value.AmountOf(s.params.NativeDenom)),
		Account:       account.Value,
		IsValidator:   s.params.IsValidatorAddress(address),
		Degraded:      account.Failed(),
	}, nil
}

// GetNetworkOverview builds the analytics summary from stats, the last 100 transactions and
// the last 20 blocks. Each input degrades independently.
func (s *ExplorerService) GetNetworkOverview(ctx context.Context) (*types.NetworkOverview, error) {
	if s.cache != nil {
		var cached types.NetworkOverview
		if found, err := s.cache.Get(ctx, cacheKeyOverview, &cached); err == nil && found {
			return &cached, nil
		}
	}

	var (
		g      errgroup.Group
		stats  worker.Outcome[*types.NetworkStats]
		txs    worker.Outcome[*types.TransactionWindow]
		blocks worker.Outcome[*types.BlockWindow]
	)
	worker.Go(ctx, &g, &stats, nil, s.GetNetworkStats)
	worker.Go(ctx, &g, &txs, &types.TransactionWindow{}, func(ctx context.Context) (*types.TransactionWindow, error) {
		return s.reader.GetRecentTransactions(ctx, overviewTxSample)
	})
	worker.Go(ctx, &g, &blocks, &types.BlockWindow{}, func(ctx context.Context) (*types.BlockWindow, error) {
		return s.reader.GetRecentBlocks(ctx, overviewBlockSample)
	})
	_ = g.Wait()

	overview := BuildOverview(stats.Value, txs.Value.Transactions, blocks.Value.Blocks)
	overview.Degraded = worker.AnyFailed(
		stats.Failed(), txs.Failed(), blocks.Failed(),
		stats.Value != nil && stats.Value.Degraded,
		txs.Value.Partial, blocks.Value.Partial,
	)

	if overview.Degraded {
		s.logger.WithFields(map[string]interface{}{
			"stats":  errText(stats.Err),
			"txs":    errText(txs.Err),
			"blocks": errText(blocks.Err),
		}).Warn("network overview degraded")
	} else if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKeyOverview, overview); err != nil {
			s.logger.WithError(err).Debug("overview cache write failed")
		}
	}
	return overview, nil
}

// BuildOverview computes the histogram and block metrics. Only the first message of each
// transaction is counted; transactions without messages are skipped. blocks must be newest first.
func BuildOverview(stats *types.NetworkStats, txs []*types.Transaction, blocks []*types.Block) *types.NetworkOverview {
	counts := make(map[string]int)
	order := make([]string, 0)
	total := 0
	for _, tx := range txs {
		m, ok := tx.FirstMessage()
		if !ok {
			continue
		}
		_, label := KindOf(m.TypeURL)
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
		total++
	}

	shares := make([]types.TxTypeShare, 0, len(order))
	for _, label := range order {
		shares = append(shares, types.TxTypeShare{
			Type:    label,
			Count:   counts[label],
			Percent: int(math.Round(float64(counts[label]) / float64(total) * 100)),
		})
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Count > shares[j].Count
	})
	if len(shares) > overviewTopTypes {
		shares = shares[:overviewTopTypes]
	}

	avgBlockTime := AverageBlockTime(blocks)
	tps := 0.0
	if len(blocks) > 0 {
		txSum := 0
		for _, b := range blocks {
			txSum += b.TxCount
		}
		tps = float64(txSum) / float64(len(blocks)) / avgBlockTime
	}

	volume := make([]types.BlockVolume, 0, overviewVolumeBlocks)
	for i, b := range blocks {
		if i == overviewVolumeBlocks {
			break
		}
		volume = append(volume, types.BlockVolume{Height: b.Height, TxCount: b.TxCount})
	}

	return &types.NetworkOverview{
		Stats:                 stats,
		TxTypes:               shares,
		TotalTransactions:     total,
		AvgBlockTime:          avgBlockTime,
		AvgBlockTimeFormatted: strconv.FormatFloat(avgBlockTime, 'f', 1, 64),
		TPS:                   tps,
		TPSFormatted:          strconv.FormatFloat(tps, 'f', 1, 64),
		RecentBlocks:          volume,
	}
}

// AverageBlockTime is the mean gap in seconds between consecutive blocks (newest first).
// It is 6 seconds when fewer than two blocks are available or the gaps do not add up to a
// positive duration, so TPS never divides by zero.
func AverageBlockTime(blocks []*types.Block) float64 {
	if len(blocks) < 2 {
		return fallbackBlockTime
	}
	sum := 0.0
	for i := 0; i < len(blocks)-1; i++ {
		sum += blocks[i].Time.Sub(blocks[i+1].Time).Seconds()
	}
	avg := sum / float64(len(blocks)-1)
	if avg <= 0 || math.IsNaN(avg) || math.IsInf(avg, 0) {
		return fallbackBlockTime
	}
	return avg
}

// GetFinalityProviders returns finality providers ordered by highest voted height, with the
// active flag derived locally
func (s *ExplorerService) GetFinalityProviders(ctx context.Context) (*types.FinalityProviderRanking, error) {
	fps, err := s.reader.GetFinalityProviders(ctx)
	if err != nil {
		return nil, err
	}
	ranked := RankFinalityProviders(fps)
	active := 0
	for _, fp := range ranked {
		if fp.Active {
			active++
		}
	}
	return &types.FinalityProviderRanking{
		FinalityProviders: ranked,
		Total:             len(ranked),
		Active:            active,
	}, nil
}

// RankFinalityProviders recomputes Active and sorts by highest voted height descending.
// Ties keep their input order.
func RankFinalityProviders(fps []*types.FinalityProvider) []*types.FinalityProvider {
	ranked := make([]*types.FinalityProvider, len(fps))
	copy(ranked, fps)
	for _, fp := range ranked {
		fp.Active = fp.IsActive()
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].HighestVotedHeight > ranked[j].HighestVotedHeight
	})
	return ranked
}

// GetBTCDelegations returns delegations in status (all when empty) with the current epoch.
// The epoch is optional.
func (s *ExplorerService) GetBTCDelegations(ctx context.Context, status string) (*types.StakingOverview, error) {
	var (
		g     errgroup.Group
		dels  worker.Outcome[[]*types.BTCDelegation]
		epoch worker.Outcome[*types.Epoch]
	)
	worker.Go(ctx, &g, &dels, nil, func(ctx context.Context) ([]*types.BTCDelegation, error) {
		return s.reader.GetBTCDelegations(ctx, status)
	})
	worker.Go(ctx, &g, &epoch, &types.Epoch{}, s.reader.GetCurrentEpoch)
	_ = g.Wait()

	if dels.Failed() {
		return nil, dels.Err
	}

	var total uint64
	for _, d := range dels.Value {
		total += d.StakingValueSat
	}
	return &types.StakingOverview{
		Delegations:   dels.Value,
		TotalStakeSat: total,
		Epoch:         epoch.Value,
		Degraded:      epoch.Failed(),
	}, nil
}

// GetKnownEntities lists the top finality providers and validators as named entities,
// with label counts per category from the store
func (s *ExplorerService) GetKnownEntities(ctx context.Context) (*types.KnownEntities, error) {
	var (
		g          errgroup.Group
		fps        worker.Outcome[[]*types.FinalityProvider]
		validators worker.Outcome[[]*types.Validator]
		counts     worker.Outcome[map[string]int64]
	)
	worker.Go(ctx, &g, &fps, nil, s.reader.GetFinalityProviders)
	worker.Go(ctx, &g, &validators, nil, func(ctx context.Context) ([]*types.Validator, error) {
		return s.reader.GetValidators(ctx, adapter.BondedStatus)
	})
	worker.Go(ctx, &g, &counts, map[string]int64{}, func(ctx context.Context) (map[string]int64, error) {
		if s.labels == nil {
			return map[string]int64{}, nil
		}
		return s.labels.CountByCategory(ctx)
	})
	_ = g.Wait()

	entities := make([]types.KnownEntity, 0, entityFinalityProviders+entityValidators)
	for i, fp := range RankFinalityProviders(fps.Value) {
		if i == entityFinalityProviders {
			break
		}
		status := "Verified"
		if fp.Jailed {
			status = "Suspended"
		}
		entities = append(entities, types.KnownEntity{
			Name:         nameOr(fp.Moniker, "Unknown Provider"),
			Type:         "Finality Provider",
			Address:      fp.Address,
			AddressShort: ShortenAddress(fp.Address, defaultShortenChars),
			Status:       status,
			Website:      fp.Website,
			Active:       fp.Active,
		})
	}
	for i, v := range validatorsByStake(validators.Value) {
		if i == entityValidators {
			break
		}
		status := "Verified"
		if v.Jailed {
			status = "Jailed"
		}
		entities = append(entities, types.KnownEntity{
			Name:         nameOr(v.Moniker, "Unknown Validator"),
			Type:         "Validator",
			Address:      v.OperatorAddress,
			AddressShort: ShortenAddress(v.OperatorAddress, defaultShortenChars),
			Status:       status,
			Website:      v.Website,
			Active:       !v.Jailed,
		})
	}

	result := &types.KnownEntities{
		Entities:         entities,
		TotalEntities:    len(entities),
		LabelsByCategory: counts.Value,
		Degraded:         worker.AnyFailed(fps.Failed(), validators.Failed(), counts.Failed()),
	}
	for _, e := range entities {
		if e.Active {
			result.ActiveEntities++
		}
	}
	for _, n := range counts.Value {
		result.TotalLabeled += n
	}
	return result, nil
}

// validatorsByStake orders validators by bonded tokens descending
func validatorsByStake(validators []*types.Validator) []*types.Validator {
	sorted := make([]*types.Validator, len(validators))
	copy(sorted, validators)
	tokens := make(map[*types.Validator]decimal.Decimal, len(sorted))
	for _, v := range sorted {
		d, err := decimal.NewFromString(v.Tokens)
		if err != nil {
			d = decimal.Zero
		}
		tokens[v] = d
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return tokens[sorted[i]].GreaterThan(tokens[sorted[j]])
	})
	return sorted
}

func nameOr(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
