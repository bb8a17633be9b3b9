package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/babylon-scanner/internal/adapter"
	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/models"
	"github.com/babylon-scanner/internal/types"
	"github.com/babylon-scanner/internal/worker"
)

// Score contributions and level thresholds
const (
	baseRiskScore          = 30
	finalityProviderDelta  = -25
	validatorDelta         = -20
	labeledDelta           = -10
	exchangeLabelDelta     = -5
	foundationLabelDelta   = -10
	whaleDelta             = 10
	newAccountDelta        = 15
	highActivityDelta      = 5
	highRiskScoreThreshold = 80
	mediumRiskThreshold    = 50
	lowRiskThreshold       = 20
)

// RiskAnalyzer scores addresses with an additive, explainable heuristic
type RiskAnalyzer struct {
	reader          adapter.ChainReader
	labels          LabelStore
	labeler         *LabelingService
	params          ChainParams
	labelOnAnalysis bool
	now             func() time.Time
	logger          *logging.Logger
}

// NewRiskAnalyzer creates an analyzer. When labelOnAnalysis is set, each analysis records the
// known-entity facts it found through labeler.
func NewRiskAnalyzer(
	reader adapter.ChainReader,
	labels LabelStore,
	labeler *LabelingService,
	params ChainParams,
	labelOnAnalysis bool,
	logger *logging.Logger,
) *RiskAnalyzer {
	return &RiskAnalyzer{
		reader:          reader,
		labels:          labels,
		labeler:         labeler,
		params:          params,
		labelOnAnalysis: labelOnAnalysis && labeler != nil,
		now:             time.Now,
		logger:          logger.WithField("component", "risk"),
	}
}

// AnalyzeAddress fetches balance, account and the finality provider set concurrently, reads
// the stored labels and scores the address. Lookups that fail fall back to defaults and the
// result is marked degraded; the analysis itself never fails on upstream errors.
func (a *RiskAnalyzer) AnalyzeAddress(ctx context.Context, address string) (*types.RiskAnalysis, error) {
	address = strings.TrimSpace(address)
	if err := a.params.ValidateAddress(address); err != nil {
		return nil, err
	}

	var (
		g       errgroup.Group
		balance worker.Outcome[*types.AccountBalance]
		account worker.Outcome[*types.AccountInfo]
		fps     worker.Outcome[[]*types.FinalityProvider]
		labels  worker.Outcome[[]*models.AddressLabel]
	)
	worker.Go(ctx, &g, &balance, &types.AccountBalance{Address: address}, func(ctx context.Context) (*types.AccountBalance, error) {
		return a.reader.GetAccountBalance(ctx, address)
	})
	worker.Go(ctx, &g, &account, nil, func(ctx context.Context) (*types.AccountInfo, error) {
		info, err := a.reader.GetAccountInfo(ctx, address)
		if apperrors.IsFeatureUnsupported(err) {
			// no account yet: the address has never signed or received anything
			return nil, nil
		}
		return info, err
	})
	worker.Go(ctx, &g, &fps, nil, a.reader.GetFinalityProviders)
	worker.Go(ctx, &g, &labels, nil, func(ctx context.Context) ([]*models.AddressLabel, error) {
		if a.labels == nil {
			return nil, nil
		}
		return a.labels.GetLabelsByAddress(ctx, address)
	})
	_ = g.Wait()

	degraded := worker.AnyFailed(balance.Failed(), account.Failed(), fps.Failed(), labels.Failed())
	if degraded {
		a.logger.WithFields(map[string]interface{}{
			"address": address,
			"balance": errText(balance.Err),
			"account": errText(account.Err),
			"fps":     errText(fps.Err),
			"labels":  errText(labels.Err),
		}).Warn("risk analysis degraded")
	}

	rawBalance := balance.Value.AmountOf(a.params.NativeDenom)
	metrics := types.RiskMetrics{
		BalanceRaw:  rawBalance.String(),
		Balance:     a.params.WholeUnits(rawBalance),
		AccountType: "Unknown",
	}
	if info := account.Value; info != nil {
		metrics.AccountType = AccountTypeName(info.Type)
		metrics.AccountNumber = info.AccountNumber
		metrics.Sequence = info.Sequence
	}

	hasLabels, exchange, foundation := labelFacts(labels.Value)
	factors := types.RiskFactors{
		IsValidator:        a.params.IsValidatorAddress(address),
		IsFinalityProvider: isFinalityProvider(fps.Value, address),
		HasLabels:          hasLabels,
		HasExchangeLabel:   exchange,
		HasFoundationLabel: foundation,
		BalanceLevel:       BalanceLevelOf(metrics.Balance),
		ActivityLevel:      ActivityLevelOf(metrics.Sequence),
	}

	score, level, flags := ScoreRisk(factors, degraded)

	labelNames := make([]string, 0, len(labels.Value))
	for _, l := range labels.Value {
		labelNames = append(labelNames, l.Label)
	}

	analysis := &types.RiskAnalysis{
		Address:   address,
		Score:     score,
		Level:     level,
		Flags:     flags,
		Labels:    labelNames,
		Factors:   factors,
		Metrics:   metrics,
		Degraded:  degraded,
		CheckedAt: a.now().UTC(),
	}

	if a.labelOnAnalysis {
		if n, err := a.labeler.LabelOnAnalysis(ctx, address, factors); err != nil {
			a.logger.WithField("address", address).WithError(err).Warn("labeling on analysis failed")
		} else if n > 0 {
			a.logger.WithField("address", address).Debugf("recorded %d labels from analysis", n)
		}
	}

	return analysis, nil
}

func isFinalityProvider(fps []*types.FinalityProvider, address string) bool {
	for _, fp := range fps {
		if fp.Address == address {
			return true
		}
	}
	return false
}

// ScoreRisk applies the additive heuristic to factors and clamps the result to [0, 100].
// Every contributing condition adds a flag; degraded adds a warning without changing the score.
func ScoreRisk(factors types.RiskFactors, degraded bool) (int, types.RiskLevel, []types.RiskFlag) {
	score := baseRiskScore
	flags := make([]types.RiskFlag, 0, 4)

	if factors.IsFinalityProvider {
		score += finalityProviderDelta
		flags = append(flags, types.RiskFlag{Severity: types.FlagInfo, Message: "Verified Finality Provider"})
	}
	if factors.IsValidator {
		score += validatorDelta
		flags = append(flags, types.RiskFlag{Severity: types.FlagInfo, Message: "Verified Validator Address"})
	}
	if factors.HasLabels {
		score += labeledDelta
		flags = append(flags, types.RiskFlag{Severity: types.FlagInfo, Message: "Known labels on record"})
		if factors.HasExchangeLabel {
			score += exchangeLabelDelta
			flags = append(flags, types.RiskFlag{Severity: types.FlagInfo, Message: "Labeled as Exchange"})
		}
		if factors.HasFoundationLabel {
			score += foundationLabelDelta
			flags = append(flags, types.RiskFlag{Severity: types.FlagInfo, Message: "Labeled as Foundation"})
		}
	}
	if factors.BalanceLevel == types.BalanceWhale {
		score += whaleDelta
		flags = append(flags, types.RiskFlag{Severity: types.FlagWarning, Message: "Whale-sized balance detected"})
	}
	switch factors.ActivityLevel {
	case types.ActivityNew:
		score += newAccountDelta
		flags = append(flags, types.RiskFlag{Severity: types.FlagWarning, Message: "New or inactive account"})
	case types.ActivityHigh:
		score += highActivityDelta
		flags = append(flags, types.RiskFlag{Severity: types.FlagWarning, Message: "High activity account"})
	}
	if degraded {
		flags = append(flags, types.RiskFlag{Severity: types.FlagWarning, Message: "Unable to fetch complete data"})
	}

	score = min(max(score, 0), 100)
	return score, RiskLevelOf(score), flags
}

// RiskLevelOf buckets a score
func RiskLevelOf(score int) types.RiskLevel {
	switch {
	case score >= highRiskScoreThreshold:
		return types.RiskHigh
	case score >= mediumRiskThreshold:
		return types.RiskMedium
	case score >= lowRiskThreshold:
		return types.RiskLow
	default:
		return types.RiskClean
	}
}
