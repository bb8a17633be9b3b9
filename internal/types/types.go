// Package types provides common type definitions for the Babylon explorer backend.
package types

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents transaction execution status
type TransactionStatus string

const (
	// StatusSuccess represents a successful transaction (code 0)
	StatusSuccess TransactionStatus = "success"
	// StatusFailed represents a failed transaction
	StatusFailed TransactionStatus = "failed"
)

// TransactionDirection represents whether a transaction is incoming or outgoing
type TransactionDirection string

const (
	// DirectionNone is used when no address context is available
	DirectionNone TransactionDirection = ""
	// DirectionIn represents funds arriving at the queried address
	DirectionIn TransactionDirection = "in"
	// DirectionOut represents funds leaving the queried address
	DirectionOut TransactionDirection = "out"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Coin is an amount in base units, kept as a string for full precision
type Coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// Block is a parsed block header
type Block struct {
	Height   int64     `json:"height"`
	Hash     string    `json:"hash"`
	Time     time.Time `json:"time"`
	ChainID  string    `json:"chainId"`
	Proposer string    `json:"proposer"`
	TxCount  int       `json:"txCount"`
}

// Message is one opaque message of a transaction: its type tag plus the raw body
type Message struct {
	TypeURL string          `json:"type"`
	Raw     json.RawMessage `json:"-"`
}

// Transaction is a transaction as returned by the node API
type Transaction struct {
	Hash      string    `json:"hash"`
	Height    int64     `json:"height"`
	Code      uint32    `json:"code"`
	GasWanted int64     `json:"gasWanted"`
	GasUsed   int64     `json:"gasUsed"`
	Timestamp time.Time `json:"timestamp"`
	Memo      string    `json:"memo,omitempty"`
	Messages  []Message `json:"messages"`
}

// Status reports success or failure from the result code
func (t *Transaction) Status() TransactionStatus {
	if t.Code == 0 {
		return StatusSuccess
	}
	return StatusFailed
}

// FirstMessage returns the dominant message, if any
func (t *Transaction) FirstMessage() (Message, bool) {
	if len(t.Messages) == 0 {
		return Message{}, false
	}
	return t.Messages[0], true
}

// MessageKind is the closed set of message kinds the explorer recognises
type MessageKind string

const (
	KindTransfer    MessageKind = "transfer"
	KindDelegate    MessageKind = "delegate"
	KindUndelegate  MessageKind = "undelegate"
	KindBTCStake    MessageKind = "btc_stake"
	KindFinalitySig MessageKind = "finality_sig"
	KindVote        MessageKind = "vote"
	KindOther       MessageKind = "other"
)

// ClassifiedTransaction is a transaction annotated with the classification of its first message
type ClassifiedTransaction struct {
	Hash      string               `json:"hash"`
	Height    int64                `json:"height"`
	Label     string               `json:"type"`
	Kind      MessageKind          `json:"kind"`
	TypeURL   string               `json:"typeUrl,omitempty"`
	Direction TransactionDirection `json:"direction,omitempty"`
	From      string               `json:"from"`
	FromShort string               `json:"fromShort"`
	To        string               `json:"to"`
	ToShort   string               `json:"toShort"`
	Amount    string               `json:"amount"`
	Denom     string               `json:"denom"`
	Status    TransactionStatus    `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	GasUsed   int64                `json:"gasUsed"`
	GasWanted int64                `json:"gasWanted"`
	Messages  int                  `json:"messageCount"`
}

// AccountBalance holds all balances of an address
type AccountBalance struct {
	Address  string `json:"address"`
	Balances []Coin `json:"balances"`
}

// AmountOf returns the base-unit amount held in denom, zero if absent or unparsable
func (b *AccountBalance) AmountOf(denom string) decimal.Decimal {
	if b == nil {
		return decimal.Zero
	}
	for _, c := range b.Balances {
		if c.Denom == denom {
			d, err := decimal.NewFromString(c.Amount)
			if err != nil {
				return decimal.Zero
			}
			return d
		}
	}
	return decimal.Zero
}

// AccountInfo is the auth module's view of an account
type AccountInfo struct {
	Address       string `json:"address"`
	Type          string `json:"type"`
	AccountNumber uint64 `json:"accountNumber"`
	Sequence      uint64 `json:"sequence"`
}

// Validator is a staking validator
type Validator struct {
	OperatorAddress string `json:"operatorAddress"`
	Moniker         string `json:"moniker"`
	Website         string `json:"website,omitempty"`
	Jailed          bool   `json:"jailed"`
	Status          string `json:"status"`
	Tokens          string `json:"tokens"`
	CommissionRate  string `json:"commissionRate"`
}

// StakingPool holds the bonded and unbonded supply
type StakingPool struct {
	BondedTokens    string `json:"bondedTokens"`
	NotBondedTokens string `json:"notBondedTokens"`
}

// NodeInfo describes the node serving the API
type NodeInfo struct {
	Network    string `json:"network"`
	Moniker    string `json:"moniker"`
	Version    string `json:"version"`
	AppName    string `json:"appName"`
	AppVersion string `json:"appVersion"`
}

// FinalityProvider is a Babylon finality provider
type FinalityProvider struct {
	BTCPublicKey         string `json:"btcPk"`
	Address              string `json:"address"`
	Moniker              string `json:"moniker"`
	Website              string `json:"website,omitempty"`
	Commission           string `json:"commission"`
	TotalBondedSat       uint64 `json:"totalBondedSat"`
	SlashedBabylonHeight string `json:"slashedBabylonHeight"`
	Jailed               bool   `json:"jailed"`
	SoftDeleted          bool   `json:"softDeleted"`
	HighestVotedHeight   uint64 `json:"highestVotedHeight"`
	Active               bool   `json:"active"`
}

// IsActive derives the active flag: not jailed, never slashed and not soft-deleted
func (fp *FinalityProvider) IsActive() bool {
	return !fp.Jailed && fp.SlashedBabylonHeight == "0" && !fp.SoftDeleted
}

// BTCDelegation is a BTC stake backing one or more finality providers
type BTCDelegation struct {
	StakingTxHash     string   `json:"stakingTxHash"`
	StakerAddress     string   `json:"stakerAddr"`
	FinalityProviders []string `json:"fpBtcPkList"`
	StakingValueSat   uint64   `json:"stakingValue"`
	StakingTime       uint64   `json:"stakingTime"`
	UnbondingTime     uint64   `json:"unbondingTime"`
	State             string   `json:"state"`
}

// Epoch is the current epoching module state
type Epoch struct {
	Number           uint64 `json:"epochNumber"`
	Interval         uint64 `json:"interval"`
	FirstBlockHeight uint64 `json:"firstBlockHeight"`
	Boundary         uint64 `json:"boundary"`
}

// BlockWindow is a best-effort window of recent blocks, newest first.
// Partial is set when fewer blocks than requested could be resolved.
type BlockWindow struct {
	Blocks    []*Block `json:"blocks"`
	Requested int      `json:"requested"`
	Partial   bool     `json:"partial"`
}

// TransactionWindow is a best-effort list of recent transactions, newest block first
type TransactionWindow struct {
	Transactions []*Transaction `json:"transactions"`
	Requested    int            `json:"requested"`
	Partial      bool           `json:"partial"`
}

// NetworkStats summarises the chain head
type NetworkStats struct {
	LatestBlock     *Block `json:"latestBlock"`
	ChainID         string `json:"chainId"`
	NodeVersion     string `json:"nodeVersion"`
	TotalValidators int    `json:"totalValidators"`
	BondedTokens    string `json:"bondedTokens"`
	Degraded        bool   `json:"degraded"`
}
