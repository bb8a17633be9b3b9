package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel is the bucketed risk score
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High Risk"
	RiskMedium RiskLevel = "Medium Risk"
	RiskLow    RiskLevel = "Low Risk"
	RiskClean  RiskLevel = "Clean"
)

// BalanceLevel buckets a balance in whole native-token units
type BalanceLevel string

const (
	BalanceLow    BalanceLevel = "low"
	BalanceMedium BalanceLevel = "medium"
	BalanceHigh   BalanceLevel = "high"
	BalanceWhale  BalanceLevel = "whale"
)

// ActivityLevel buckets an account's sequence number
type ActivityLevel string

const (
	ActivityNew    ActivityLevel = "new"
	ActivityLow    ActivityLevel = "low"
	ActivityMedium ActivityLevel = "medium"
	ActivityHigh   ActivityLevel = "high"
)

// FlagSeverity marks whether a flag lowers or raises risk
type FlagSeverity string

const (
	FlagInfo    FlagSeverity = "info"
	FlagWarning FlagSeverity = "warning"
	FlagDanger  FlagSeverity = "danger"
)

// RiskFlag explains one contribution to the score
type RiskFlag struct {
	Severity FlagSeverity `json:"type"`
	Message  string       `json:"message"`
}

// RiskMetrics are the raw account facts behind an analysis
type RiskMetrics struct {
	BalanceRaw    string          `json:"balanceRaw"`
	Balance       decimal.Decimal `json:"balance"`
	AccountType   string          `json:"accountType"`
	AccountNumber uint64          `json:"accountNumber"`
	Sequence      uint64          `json:"sequence"`
}

// RiskFactors are the derived classifications feeding the score
type RiskFactors struct {
	IsValidator        bool          `json:"isValidator"`
	IsFinalityProvider bool          `json:"isFinalityProvider"`
	HasLabels          bool          `json:"hasLabels"`
	HasExchangeLabel   bool          `json:"hasExchangeLabel"`
	HasFoundationLabel bool          `json:"hasFoundationLabel"`
	BalanceLevel       BalanceLevel  `json:"balanceLevel"`
	ActivityLevel      ActivityLevel `json:"activityLevel"`
}

// RiskAnalysis is the full result of analysing an address
type RiskAnalysis struct {
	Address   string      `json:"address"`
	Score     int         `json:"riskScore"`
	Level     RiskLevel   `json:"riskLevel"`
	Flags     []RiskFlag  `json:"flags"`
	Labels    []string    `json:"labels"`
	Factors   RiskFactors `json:"analysis"`
	Metrics   RiskMetrics `json:"metrics"`
	Degraded  bool        `json:"degraded"`
	CheckedAt time.Time   `json:"lastChecked"`
}
