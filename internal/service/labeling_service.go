package service

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/babylon-scanner/internal/adapter"
	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/logging"
	"github.com/babylon-scanner/internal/models"
	"github.com/babylon-scanner/internal/retry"
	"github.com/babylon-scanner/internal/types"
	"github.com/babylon-scanner/internal/worker"
)

const (
	validatorConfidence = 0.95
	fpConfidence        = 0.95
	whaleConfidence     = 0.85

	defaultLabelLimit = 50
	maxLabelLimit     = 100
	maxLabelLength    = 255

	// upsertStripes is the number of address lock stripes
	upsertStripes = 64
)

// Label texts written by the automatic labeling routines
const (
	LabelWhale            = "Whale"
	LabelValidator        = "Validator"
	LabelFinalityProvider = "Finality Provider"
	unknownValidatorLabel = "Unknown Validator"
	unknownFPLabel        = "Unknown FP"
)

// LabelingService owns every label write. All writes go through UpsertLabel.
type LabelingService struct {
	reader         adapter.ChainReader
	labels         LabelStore
	addresses      AddressStore
	pool           pond.Pool
	params         ChainParams
	whaleThreshold decimal.Decimal
	locks          [upsertStripes]sync.Mutex
	retry          *retry.RetryConfig // list reads only; per-address reads are not retried
	now            func() time.Time
	logger         *logging.Logger
}

// NewLabelingService creates a labeling service. whaleThreshold is in whole native-token units.
func NewLabelingService(
	reader adapter.ChainReader,
	labels LabelStore,
	addresses AddressStore,
	pool pond.Pool,
	params ChainParams,
	whaleThreshold int64,
	logger *logging.Logger,
) *LabelingService {
	return &LabelingService{
		reader:         reader,
		labels:         labels,
		addresses:      addresses,
		pool:           pool,
		params:         params,
		whaleThreshold: decimal.NewFromInt(whaleThreshold),
		retry:          retry.DefaultRetryConfig(),
		now:            time.Now,
		logger:         logger.WithField("component", "labeling"),
	}
}

// WhaleThreshold returns the default whale threshold in whole units
func (s *LabelingService) WhaleThreshold() decimal.Decimal {
	return s.whaleThreshold
}

func (s *LabelingService) lockFor(address string) *sync.Mutex {
	return &s.locks[xxhash.Sum64String(address)%upsertStripes]
}

// UpsertLabel records (label, category) on address. An existing identical label only has its
// confidence raised, never lowered, and no duplicate row is created. The address row is created
// first when missing. Upserts for the same address are serialized.
func (s *LabelingService) UpsertLabel(ctx context.Context, address, label, category string, confidence float64, source models.LabelSource) (*models.AddressLabel, error) {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, apperrors.NewInvalidParameterError("confidence", "must be between 0 and 1")
	}

	mu := s.lockFor(address)
	mu.Lock()
	defer mu.Unlock()

	existing, err := s.labels.GetLabelsByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	for _, l := range existing {
		if !l.SameLabel(label, category) {
			continue
		}
		if confidence > l.Confidence {
			return s.labels.UpdateLabelConfidence(ctx, l.ID, confidence)
		}
		return l, nil
	}

	known, err := s.addresses.GetAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if known == nil {
		if err := s.addresses.CreateAddress(ctx, &models.Address{
			Address:   address,
			FirstSeen: now,
			LastSeen:  now,
		}); err != nil {
			return nil, err
		}
	}

	return s.labels.CreateLabel(ctx, &models.AddressLabel{
		Address:    address,
		Label:      label,
		Category:   category,
		Confidence: confidence,
		Source:     source,
		CreatedAt:  now,
	})
}

// AddLabelInput is a manual label request. Zero values take the documented defaults.
type AddLabelInput struct {
	Address    string             `json:"address"`
	Label      string             `json:"label"`
	Category   string             `json:"category,omitempty"`
	Confidence *float64           `json:"confidence,omitempty"`
	Source     models.LabelSource `json:"source,omitempty"`
}

// AddLabel validates a manual label and upserts it. Defaults: category custom,
// confidence 1.0, source manual.
func (s *LabelingService) AddLabel(ctx context.Context, input AddLabelInput) (*models.AddressLabel, error) {
	address := strings.TrimSpace(input.Address)
	if err := s.params.ValidateAddress(address); err != nil {
		return nil, err
	}

	label := strings.TrimSpace(input.Label)
	if label == "" {
		return nil, apperrors.NewInvalidParameterError("label", "is required")
	}
	if len(label) > maxLabelLength {
		return nil, apperrors.NewInvalidParameterError("label", "must be at most 255 characters")
	}

	category := strings.ToLower(strings.TrimSpace(input.Category))
	if category == "" {
		category = models.CategoryCustom
	}

	confidence := 1.0
	if input.Confidence != nil {
		confidence = *input.Confidence
	}

	source := input.Source
	if source == "" {
		source = models.SourceManual
	}
	if !source.Valid() {
		return nil, apperrors.NewInvalidParameterError("source", "must be one of manual, heuristic, auto, ml, curated")
	}

	created, err := s.UpsertLabel(ctx, address, label, category, confidence, source)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(map[string]interface{}{
		"address":  address,
		"label":    label,
		"category": category,
	}).Info("label recorded")
	return created, nil
}

// LabelList is a page of labels plus the categories in use
type LabelList struct {
	Labels     []*models.AddressLabel `json:"labels"`
	Categories []string               `json:"categories"`
	Total      int                    `json:"total"`
}

// ListLabels returns the newest labels, optionally in one category.
// limit defaults to 50 and is capped at 100.
func (s *LabelingService) ListLabels(ctx context.Context, category string, limit int) (*LabelList, error) {
	if limit <= 0 {
		limit = defaultLabelLimit
	}
	if limit > maxLabelLimit {
		limit = maxLabelLimit
	}

	filter := models.LabelFilter{Category: strings.ToLower(strings.TrimSpace(category)), Limit: limit}

	var (
		g          errgroup.Group
		labels     []*models.AddressLabel
		categories []string
	)
	g.Go(func() error {
		var err error
		labels, err = s.labels.ListLabels(ctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.labels.ListCategories(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &LabelList{Labels: labels, Categories: categories, Total: len(labels)}, nil
}

// GetAddressLabels returns every label recorded for address
func (s *LabelingService) GetAddressLabels(ctx context.Context, address string) ([]*models.AddressLabel, error) {
	address = strings.TrimSpace(address)
	if err := s.params.ValidateAddress(address); err != nil {
		return nil, err
	}
	labels, err := s.labels.GetLabelsByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if labels == nil {
		labels = []*models.AddressLabel{}
	}
	return labels, nil
}

// DeleteLabel removes the label with id
func (s *LabelingService) DeleteLabel(ctx context.Context, id int64) error {
	removed, err := s.labels.DeleteLabel(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return apperrors.NewNotFoundError("label", strconv.FormatInt(id, 10))
	}
	return nil
}

// LabelValidators labels every bonded validator with its moniker.
// A failed upsert skips that validator.
func (s *LabelingService) LabelValidators(ctx context.Context) (int, error) {
	validators, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]*types.Validator, error) {
		return s.reader.GetValidators(ctx, adapter.BondedStatus)
	})
	if err != nil {
		return 0, err
	}

	labeled := 0
	for _, v := range validators {
		if _, err := s.UpsertLabel(ctx, v.OperatorAddress, nameOr(v.Moniker, unknownValidatorLabel), models.CategoryValidator, validatorConfidence, models.SourceAuto); err != nil {
			s.logger.WithField("address", v.OperatorAddress).WithError(err).Warn("skipping validator label")
			continue
		}
		labeled++
	}
	s.logger.Infof("auto-labeled %d validators", labeled)
	return labeled, nil
}

// LabelFinalityProviders labels every finality provider with its moniker as smart money.
// A failed upsert skips that provider.
func (s *LabelingService) LabelFinalityProviders(ctx context.Context) (int, error) {
	fps, err := retry.Do(ctx, s.retry, s.reader.GetFinalityProviders)
	if err != nil {
		return 0, err
	}

	labeled := 0
	for _, fp := range fps {
		if fp.Address == "" {
			continue
		}
		if _, err := s.UpsertLabel(ctx, fp.Address, nameOr(fp.Moniker, unknownFPLabel), models.CategorySmartMoney, fpConfidence, models.SourceAuto); err != nil {
			s.logger.WithField("address", fp.Address).WithError(err).Warn("skipping finality provider label")
			continue
		}
		labeled++
	}
	s.logger.Infof("auto-labeled %d finality providers", labeled)
	return labeled, nil
}

// LabelWhales labels every known address whose native balance is at least threshold whole
// units. Balances are fetched on the fan-out pool; addresses whose balance or upsert fails are skipped.
func (s *LabelingService) LabelWhales(ctx context.Context, threshold decimal.Decimal) (int, error) {
	addresses, err := retry.Do(ctx, s.retry, s.addresses.ListAddresses)
	if err != nil {
		return 0, err
	}

	balances := worker.Map(ctx, s.pool, addresses, func(ctx context.Context, address string) (decimal.Decimal, error) {
		balance, err := s.reader.GetAccountBalance(ctx, address)
		if err != nil {
			return decimal.Zero, err
		}
		return s.params.WholeUnits(balance.AmountOf(s.params.NativeDenom)), nil
	})

	labeled, failed := 0, 0
	for i, address := range addresses {
		if balances[i].Failed() {
			failed++
			continue
		}
		if balances[i].Value.LessThan(threshold) {
			continue
		}
		if _, err := s.UpsertLabel(ctx, address, LabelWhale, models.CategoryWhale, whaleConfidence, models.SourceHeuristic); err != nil {
			s.logger.WithField("address", address).WithError(err).Warn("skipping whale label")
			continue
		}
		labeled++
	}
	s.logger.WithFields(map[string]interface{}{
		"checked":          len(addresses),
		"balance_failures": failed,
	}).Infof("auto-labeled %d whales", labeled)
	return labeled, nil
}

// LabelingReport summarises one automatic labeling run
type LabelingReport struct {
	RunID             string            `json:"runId"`
	StartedAt         time.Time         `json:"startedAt"`
	DurationMs        int64             `json:"durationMs"`
	Validators        int               `json:"validators"`
	FinalityProviders int               `json:"fps"`
	Whales            int               `json:"whales"`
	Errors            map[string]string `json:"errors,omitempty"`
}

// Total is the number of labels written or confirmed
func (r *LabelingReport) Total() int {
	return r.Validators + r.FinalityProviders + r.Whales
}

// RunAutoLabeling runs the validator, finality provider and whale jobs concurrently.
// A failing job contributes zero labels and its error text; it never stops the others.
func (s *LabelingService) RunAutoLabeling(ctx context.Context) *LabelingReport {
	report := &LabelingReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now().UTC(),
	}
	logger := s.logger.WithField("run_id", report.RunID)
	logger.Info("auto-labeling started")

	var (
		g          errgroup.Group
		validators worker.Outcome[int]
		fps        worker.Outcome[int]
		whales     worker.Outcome[int]
	)
	worker.Go(ctx, &g, &validators, 0, s.LabelValidators)
	worker.Go(ctx, &g, &fps, 0, s.LabelFinalityProviders)
	worker.Go(ctx, &g, &whales, 0, func(ctx context.Context) (int, error) {
		return s.LabelWhales(ctx, s.whaleThreshold)
	})
	_ = g.Wait()

	report.Validators = validators.Value
	report.FinalityProviders = fps.Value
	report.Whales = whales.Value
	for name, err := range map[string]error{
		"validators":        validators.Err,
		"finalityProviders": fps.Err,
		"whales":            whales.Err,
	} {
		if err == nil {
			continue
		}
		if report.Errors == nil {
			report.Errors = make(map[string]string)
		}
		report.Errors[name] = err.Error()
	}
	report.DurationMs = s.now().UTC().Sub(report.StartedAt).Milliseconds()

	logger.WithFields(map[string]interface{}{
		"validators":  report.Validators,
		"fps":         report.FinalityProviders,
		"whales":      report.Whales,
		"failed_jobs": len(report.Errors),
		"duration_ms": report.DurationMs,
	}).Info("auto-labeling complete")
	return report
}

// LabelOnAnalysis records the known-entity facts an analysis established, with source heuristic.
// It returns how many labels were upserted.
func (s *LabelingService) LabelOnAnalysis(ctx context.Context, address string, factors types.RiskFactors) (int, error) {
	type pending struct {
		label, category string
		confidence      float64
	}
	var todo []pending
	if factors.IsValidator {
		todo = append(todo, pending{LabelValidator, models.CategoryValidator, validatorConfidence})
	}
	if factors.IsFinalityProvider {
		todo = append(todo, pending{LabelFinalityProvider, models.CategorySmartMoney, fpConfidence})
	}
	if factors.BalanceLevel == types.BalanceWhale {
		todo = append(todo, pending{LabelWhale, models.CategoryWhale, whaleConfidence})
	}

	applied := 0
	for _, p := range todo {
		if _, err := s.UpsertLabel(ctx, address, p.label, p.category, p.confidence, models.SourceHeuristic); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}
