package service

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/babylon-scanner/internal/models"
	"github.com/babylon-scanner/internal/types"
)

// Balance thresholds in whole native-token units
var (
	balanceMediumThreshold = decimal.NewFromInt(1_000)
	balanceHighThreshold   = decimal.NewFromInt(100_000)
	balanceWhaleThreshold  = decimal.NewFromInt(1_000_000)
)

// Activity thresholds on the account sequence number
const (
	activityMediumThreshold = 20
	activityHighThreshold   = 100
)

// BalanceLevelOf classifies a balance given in whole native-token units
func BalanceLevelOf(whole decimal.Decimal) types.BalanceLevel {
	switch {
	case whole.GreaterThanOrEqual(balanceWhaleThreshold):
		return types.BalanceWhale
	case whole.GreaterThanOrEqual(balanceHighThreshold):
		return types.BalanceHigh
	case whole.GreaterThanOrEqual(balanceMediumThreshold):
		return types.BalanceMedium
	default:
		return types.BalanceLow
	}
}

// ActivityLevelOf classifies an account by its sequence number, the count of signed transactions
func ActivityLevelOf(sequence uint64) types.ActivityLevel {
	switch {
	case sequence >= activityHighThreshold:
		return types.ActivityHigh
	case sequence >= activityMediumThreshold:
		return types.ActivityMedium
	case sequence >= 1:
		return types.ActivityLow
	default:
		return types.ActivityNew
	}
}

// AccountTypeName returns the last segment of an account type URL, e.g. BaseAccount
func AccountTypeName(typeURL string) string {
	if typeURL == "" {
		return "Unknown"
	}
	if i := strings.LastIndex(typeURL, "."); i >= 0 {
		typeURL = typeURL[i+1:]
	}
	if typeURL == "" {
		return "Unknown"
	}
	return typeURL
}

// labelFacts summarises the labels recorded for an address
func labelFacts(labels []*models.AddressLabel) (hasLabels, exchange, foundation bool) {
	for _, l := range labels {
		switch l.Category {
		case models.CategoryExchange:
			exchange = true
		case models.CategoryFoundation:
			foundation = true
		}
	}
	return len(labels) > 0, exchange, foundation
}
