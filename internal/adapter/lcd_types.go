package adapter

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/babylon-scanner/internal/types"
)

// numberString decodes a JSON string or number and keeps its decimal text.
// The gateway renders 64-bit integers as strings and 32-bit ones as numbers.
type numberString string

func (n *numberString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numberString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = numberString(num.String())
	return nil
}

func (n numberString) Uint64() uint64 {
	v, _ := strconv.ParseUint(string(n), 10, 64)
	return v
}

func (n numberString) Int64() int64 {
	v, _ := strconv.ParseInt(string(n), 10, 64)
	return v
}

type paginationJSON struct {
	NextKey string       `json:"next_key"`
	Total   numberString `json:"total"`
}

type coinJSON struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type descriptionJSON struct {
	Moniker  string `json:"moniker"`
	Identity string `json:"identity"`
	Website  string `json:"website"`
	Details  string `json:"details"`
}

// Blocks

type blockResponse struct {
	BlockID struct {
		Hash string `json:"hash"`
	} `json:"block_id"`
	Block struct {
		Header struct {
			ChainID         string       `json:"chain_id"`
			Height          numberString `json:"height"`
			Time            time.Time    `json:"time"`
			ProposerAddress string       `json:"proposer_address"`
		} `json:"header"`
		Data struct {
			Txs []string `json:"txs"`
		} `json:"data"`
	} `json:"block"`
}

func (r *blockResponse) toBlock(defaultChainID string) *types.Block {
	h := r.Block.Header
	chainID := h.ChainID
	if chainID == "" {
		chainID = defaultChainID
	}
	return &types.Block{
		Height:   h.Height.Int64(),
		Hash:     base64ToHex(r.BlockID.Hash),
		Time:     h.Time,
		ChainID:  chainID,
		Proposer: base64ToHex(h.ProposerAddress),
		TxCount:  len(r.Block.Data.Txs),
	}
}

// base64ToHex renders gateway base64 hashes the way explorers print them.
// Values that are not base64 are returned unchanged.
func base64ToHex(s string) string {
	if s == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	return strings.ToUpper(hex.EncodeToString(raw))
}

// Transactions

type txEnvelope struct {
	Body struct {
		Messages []json.RawMessage `json:"messages"`
		Memo     string            `json:"memo"`
	} `json:"body"`
}

type txResponseJSON struct {
	TxHash    string       `json:"txhash"`
	Height    numberString `json:"height"`
	Code      uint32       `json:"code"`
	GasWanted numberString `json:"gas_wanted"`
	GasUsed   numberString `json:"gas_used"`
	Timestamp string       `json:"timestamp"`
	Tx        *txEnvelope  `json:"tx"`
}

type txsResponse struct {
	Txs         []*txEnvelope    `json:"txs"`
	TxResponses []txResponseJSON `json:"tx_responses"`
	Total       numberString     `json:"total"`
	Pagination  *paginationJSON  `json:"pagination"`
}

type txByHashResponse struct {
	Tx         *txEnvelope    `json:"tx"`
	TxResponse txResponseJSON `json:"tx_response"`
}

// transactions pairs each tx_response with its decoded body. The body embedded in the
// response wins; the parallel txs array is used when the response omits it.
func (r *txsResponse) transactions() []*types.Transaction {
	out := make([]*types.Transaction, 0, len(r.TxResponses))
	for i := range r.TxResponses {
		var fallback *txEnvelope
		if i < len(r.Txs) {
			fallback = r.Txs[i]
		}
		out = append(out, r.TxResponses[i].toTransaction(fallback))
	}
	return out
}

func (r *txResponseJSON) toTransaction(fallback *txEnvelope) *types.Transaction {
	env := r.Tx
	if env == nil || len(env.Body.Messages) == 0 {
		if fallback != nil {
			env = fallback
		}
	}

	tx := &types.Transaction{
		Hash:      strings.ToUpper(r.TxHash),
		Height:    r.Height.Int64(),
		Code:      r.Code,
		GasWanted: r.GasWanted.Int64(),
		GasUsed:   r.GasUsed.Int64(),
		Messages:  []types.Message{},
	}
	if ts, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
		tx.Timestamp = ts
	}
	if env != nil {
		tx.Memo = env.Body.Memo
		for _, raw := range env.Body.Messages {
			tx.Messages = append(tx.Messages, types.Message{TypeURL: messageType(raw), Raw: raw})
		}
	}
	return tx
}

func messageType(raw json.RawMessage) string {
	var head struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.Type
}

// Accounts

type balancesResponse struct {
	Balances   []coinJSON      `json:"balances"`
	Pagination *paginationJSON `json:"pagination"`
}

type accountJSON struct {
	Type               string       `json:"@type"`
	Address            string       `json:"address"`
	AccountNumber      numberString `json:"account_number"`
	Sequence           numberString `json:"sequence"`
	BaseAccount        *accountJSON `json:"base_account"`
	BaseVestingAccount *struct {
		BaseAccount *accountJSON `json:"base_account"`
	} `json:"base_vesting_account"`
}

type accountResponse struct {
	Account accountJSON `json:"account"`
}

// toAccountInfo reads number and sequence through module and vesting wrappers
func (a *accountJSON) toAccountInfo(address string) *types.AccountInfo {
	base := a
	switch {
	case a.BaseAccount != nil:
		base = a.BaseAccount
	case a.BaseVestingAccount != nil && a.BaseVestingAccount.BaseAccount != nil:
		base = a.BaseVestingAccount.BaseAccount
	}
	return &types.AccountInfo{
		Address:       address,
		Type:          a.Type,
		AccountNumber: base.AccountNumber.Uint64(),
		Sequence:      base.Sequence.Uint64(),
	}
}

// Staking

type validatorJSON struct {
	OperatorAddress string          `json:"operator_address"`
	Jailed          bool            `json:"jailed"`
	Status          string          `json:"status"`
	Tokens          string          `json:"tokens"`
	Description     descriptionJSON `json:"description"`
	Commission      struct {
		CommissionRates struct {
			Rate string `json:"rate"`
		} `json:"commission_rates"`
	} `json:"commission"`
}

type validatorsResponse struct {
	Validators []validatorJSON `json:"validators"`
	Pagination *paginationJSON `json:"pagination"`
}

func (v *validatorJSON) toValidator() *types.Validator {
	return &types.Validator{
		OperatorAddress: v.OperatorAddress,
		Moniker:         v.Description.Moniker,
		Website:         v.Description.Website,
		Jailed:          v.Jailed,
		Status:          v.Status,
		Tokens:          v.Tokens,
		CommissionRate:  v.Commission.CommissionRates.Rate,
	}
}

type poolResponse struct {
	Pool struct {
		BondedTokens    string `json:"bonded_tokens"`
		NotBondedTokens string `json:"not_bonded_tokens"`
	} `json:"pool"`
}

type nodeInfoResponse struct {
	DefaultNodeInfo struct {
		Network string `json:"network"`
		Version string `json:"version"`
		Moniker string `json:"moniker"`
	} `json:"default_node_info"`
	ApplicationVersion struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"application_version"`
}

// Babylon

type finalityProviderJSON struct {
	BtcPk                string          `json:"btc_pk"`
	Addr                 string          `json:"addr"`
	Description          descriptionJSON `json:"description"`
	Commission           string          `json:"commission"`
	TotalBondedSat       numberString    `json:"total_bonded_sat"`
	SlashedBabylonHeight numberString    `json:"slashed_babylon_height"`
	Jailed               bool            `json:"jailed"`
	HighestVotedHeight   numberString    `json:"highest_voted_height"`
	SoftDeleted          bool            `json:"soft_deleted"`
}

type finalityProvidersResponse struct {
	FinalityProviders []finalityProviderJSON `json:"finality_providers"`
	Pagination        *paginationJSON        `json:"pagination"`
}

// toFinalityProvider ignores any active flag the node reports; it is always derived
func (f *finalityProviderJSON) toFinalityProvider() *types.FinalityProvider {
	fp := &types.FinalityProvider{
		BTCPublicKey:         f.BtcPk,
		Address:              f.Addr,
		Moniker:              f.Description.Moniker,
		Website:              f.Description.Website,
		Commission:           f.Commission,
		TotalBondedSat:       f.TotalBondedSat.Uint64(),
		SlashedBabylonHeight: string(f.SlashedBabylonHeight),
		Jailed:               f.Jailed,
		SoftDeleted:          f.SoftDeleted,
		HighestVotedHeight:   f.HighestVotedHeight.Uint64(),
	}
	fp.Active = fp.IsActive()
	return fp
}

type btcDelegationJSON struct {
	StakingTxHash string       `json:"staking_tx_hash"`
	StakingTxHex  string       `json:"staking_tx_hex"`
	StakerAddr    string       `json:"staker_addr"`
	FpBtcPkList   []string     `json:"fp_btc_pk_list"`
	StakingValue  numberString `json:"staking_value"`
	TotalSat      numberString `json:"total_sat"`
	StakingTime   numberString `json:"staking_time"`
	UnbondingTime numberString `json:"unbonding_time"`
	State         string       `json:"state"`
	StatusDesc    string       `json:"status_desc"`
}

type btcDelegationsResponse struct {
	BtcDelegations []btcDelegationJSON `json:"btc_delegations"`
	Pagination     *paginationJSON     `json:"pagination"`
}

// key identifies a delegation by its staking transaction
func (d *btcDelegationJSON) key() string {
	if d.StakingTxHash != "" {
		return d.StakingTxHash
	}
	return d.StakingTxHex
}

func (d *btcDelegationJSON) toBTCDelegation() *types.BTCDelegation {
	value := d.StakingValue
	if value == "" {
		value = d.TotalSat
	}
	state := d.State
	if state == "" {
		state = d.StatusDesc
	}
	return &types.BTCDelegation{
		StakingTxHash:     d.key(),
		StakerAddress:     d.StakerAddr,
		FinalityProviders: d.FpBtcPkList,
		StakingValueSat:   value.Uint64(),
		StakingTime:       d.StakingTime.Uint64(),
		UnbondingTime:     d.UnbondingTime.Uint64(),
		State:             strings.ToUpper(state),
	}
}

// currentEpochResponse accepts both the epoching query shape and the epoch detail shape
type currentEpochResponse struct {
	CurrentEpoch  numberString `json:"current_epoch"`
	EpochBoundary numberString `json:"epoch_boundary"`
	Epoch         *struct {
		EpochNumber          numberString `json:"epoch_number"`
		CurrentEpochInterval numberString `json:"current_epoch_interval"`
		FirstBlockHeight     numberString `json:"first_block_height"`
	} `json:"epoch"`
	EpochNumber          numberString `json:"epoch_number"`
	CurrentEpochInterval numberString `json:"current_epoch_interval"`
	FirstBlockHeight     numberString `json:"first_block_height"`
}

func (r *currentEpochResponse) toEpoch() *types.Epoch {
	e := &types.Epoch{
		Number:           r.EpochNumber.Uint64(),
		Interval:         r.CurrentEpochInterval.Uint64(),
		FirstBlockHeight: r.FirstBlockHeight.Uint64(),
		Boundary:         r.EpochBoundary.Uint64(),
	}
	if r.Epoch != nil {
		e.Number = r.Epoch.EpochNumber.Uint64()
		e.Interval = r.Epoch.CurrentEpochInterval.Uint64()
		e.FirstBlockHeight = r.Epoch.FirstBlockHeight.Uint64()
	}
	if e.Number == 0 {
		e.Number = r.CurrentEpoch.Uint64()
	}
	return e
}
