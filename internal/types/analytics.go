package types

import (
	"github.com/shopspring/decimal"
)

// TxTypeShare is one bar of the transaction type histogram
type TxTypeShare struct {
	Type    string `json:"type"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// BlockVolume is the transaction count of one recent block
type BlockVolume struct {
	Height  int64 `json:"height"`
	TxCount int   `json:"txCount"`
}

// NetworkOverview is the analytics dashboard summary
type NetworkOverview struct {
	Stats                 *NetworkStats `json:"stats"`
	TxTypes               []TxTypeShare `json:"txTypes"`
	TotalTransactions     int           `json:"totalTransactions"`
	AvgBlockTime          float64       `json:"avgBlockTimeSeconds"`
	AvgBlockTimeFormatted string        `json:"avgBlockTime"`
	TPS                   float64       `json:"tpsValue"`
	TPSFormatted          string        `json:"tps"`
	RecentBlocks          []BlockVolume `json:"recentBlocks"`
	Degraded              bool          `json:"degraded"`
}

// AddressInfo is the account page summary of an address
type AddressInfo struct {
	Address       string          `json:"address"`
	Balances      []Coin          `json:"balances"`
	NativeBalance decimal.Decimal `json:"nativeBalance"`
	Account       *AccountInfo    `json:"account"`
	IsValidator   bool            `json:"isValidator"`
	Degraded      bool            `json:"degraded"`
}

// AddressTransactions is an address history page
type AddressTransactions struct {
	Address      string                   `json:"address"`
	Transactions []*ClassifiedTransaction `json:"transactions"`
	Degraded     bool                     `json:"degraded"`
}

// FinalityProviderRanking is the finality provider list ordered by voting activity
type FinalityProviderRanking struct {
	FinalityProviders []*FinalityProvider `json:"finalityProviders"`
	Total             int                 `json:"total"`
	Active            int                 `json:"active"`
}

// StakingOverview is the BTC staking page: delegations plus the current epoch
type StakingOverview struct {
	Delegations   []*BTCDelegation `json:"delegations"`
	TotalStakeSat uint64           `json:"totalStakeSat"`
	Epoch         *Epoch           `json:"epoch"`
	Degraded      bool             `json:"degraded"`
}

// KnownEntity is a named on-chain actor shown on the compliance page
type KnownEntity struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Address      string `json:"address"`
	AddressShort string `json:"addressShort"`
	Status       string `json:"riskLevel"`
	Website      string `json:"website,omitempty"`
	Active       bool   `json:"active"`
}

// KnownEntities lists known entities with label statistics
type KnownEntities struct {
	Entities         []KnownEntity    `json:"entities"`
	TotalEntities    int              `json:"totalEntities"`
	ActiveEntities   int              `json:"activeEntities"`
	TotalLabeled     int64            `json:"totalLabeled"`
	LabelsByCategory map[string]int64 `json:"labelsByCategory"`
	Degraded         bool             `json:"degraded"`
}
