package service

import (
	"encoding/json"
	"strings"

	"github.com/babylon-scanner/internal/types"
)

// messageRule maps a type-tag substring to a message kind and its display label
type messageRule struct {
	match string
	kind  types.MessageKind
	label string
}

// messageRules is evaluated in order; the first rule whose substring occurs in the type tag wins
var messageRules = []messageRule{
	{match: "MsgSend", kind: types.KindTransfer, label: "Transfer"},
	{match: "MsgDelegate", kind: types.KindDelegate, label: "Delegate"},
	{match: "MsgUndelegate", kind: types.KindUndelegate, label: "Undelegate"},
	{match: "MsgCreateBTCDelegation", kind: types.KindBTCStake, label: "BTC Stake"},
	{match: "MsgAddFinalitySig", kind: types.KindFinalitySig, label: "Finality Sig"},
	{match: "MsgVote", kind: types.KindVote, label: "Vote"},
}

const unknownLabel = "Unknown"

// MessageClassification is the classified view of a single message
type MessageClassification struct {
	Kind      types.MessageKind
	Label     string
	Direction types.TransactionDirection
	From      string
	To        string
	Amount    string
	Denom     string
}

// messageBody holds the message fields any recognised kind reads.
// Amount is a coin list for transfers and a single coin for (un)delegations.
type messageBody struct {
	FromAddress      string          `json:"from_address"`
	ToAddress        string          `json:"to_address"`
	DelegatorAddress string          `json:"delegator_address"`
	ValidatorAddress string          `json:"validator_address"`
	StakerAddr       string          `json:"staker_addr"`
	Signer           string          `json:"signer"`
	Voter            string          `json:"voter"`
	Amount           json.RawMessage `json:"amount"`
}

// TxClassifier turns raw messages into labelled, directional views
type TxClassifier struct {
	nativeDenom string
}

// NewTxClassifier creates a classifier. nativeDenom is used when a message omits its denom.
func NewTxClassifier(nativeDenom string) *TxClassifier {
	return &TxClassifier{nativeDenom: nativeDenom}
}

// KindOf returns the message kind and label for a type tag
func KindOf(typeURL string) (types.MessageKind, string) {
	for _, rule := range messageRules {
		if strings.Contains(typeURL, rule.match) {
			return rule.kind, rule.label
		}
	}
	return types.KindOther, fallbackLabel(typeURL)
}

// fallbackLabel uses the last dotted segment of the type tag without its Msg marker
func fallbackLabel(typeURL string) string {
	segment := typeURL
	if i := strings.LastIndex(typeURL, "."); i >= 0 {
		segment = typeURL[i+1:]
	}
	if label := strings.Replace(segment, "Msg", "", 1); label != "" {
		return label
	}
	return unknownLabel
}

// ClassifyMessage classifies msg relative to address. An empty address leaves Direction unset.
func (c *TxClassifier) ClassifyMessage(msg types.Message, address string) MessageClassification {
	kind, label := KindOf(msg.TypeURL)
	out := MessageClassification{Kind: kind, Label: label, Denom: c.nativeDenom}

	var body messageBody
	if len(msg.Raw) > 0 {
		_ = json.Unmarshal(msg.Raw, &body) // unreadable bodies classify with empty fields
	}

	switch kind {
	case types.KindTransfer:
		out.From, out.To = body.FromAddress, body.ToAddress
		var coins []types.Coin
		if json.Unmarshal(body.Amount, &coins) == nil && len(coins) > 0 {
			out.Amount = coins[0].Amount
			if coins[0].Denom != "" {
				out.Denom = coins[0].Denom
			}
		}
	case types.KindDelegate, types.KindUndelegate:
		out.From, out.To = body.DelegatorAddress, body.ValidatorAddress
		var coin types.Coin
		if json.Unmarshal(body.Amount, &coin) == nil {
			out.Amount = coin.Amount
			if coin.Denom != "" {
				out.Denom = coin.Denom
			}
		}
	case types.KindBTCStake:
		out.From = body.StakerAddr
	case types.KindFinalitySig:
		out.From = body.Signer
	case types.KindVote:
		out.From = body.Voter
	}

	if address != "" {
		out.Direction = direction(kind, out.To, address)
	}
	return out
}

func direction(kind types.MessageKind, to, address string) types.TransactionDirection {
	switch kind {
	case types.KindTransfer:
		if strings.EqualFold(to, address) {
			return types.DirectionIn
		}
		return types.DirectionOut
	case types.KindUndelegate:
		return types.DirectionIn
	default:
		return types.DirectionOut
	}
}

// ClassifyTransaction classifies tx by its first message. A transaction without messages
// is labelled Unknown.
func (c *TxClassifier) ClassifyTransaction(tx *types.Transaction, address string) *types.ClassifiedTransaction {
	ct := &types.ClassifiedTransaction{
		Hash:      tx.Hash,
		Height:    tx.Height,
		Label:     unknownLabel,
		Kind:      types.KindOther,
		Denom:     c.nativeDenom,
		Status:    tx.Status(),
		Timestamp: tx.Timestamp,
		GasUsed:   tx.GasUsed,
		GasWanted: tx.GasWanted,
		Messages:  len(tx.Messages),
	}
	if address != "" {
		ct.Direction = types.DirectionOut
	}

	msg, ok := tx.FirstMessage()
	if !ok {
		return ct
	}

	mc := c.ClassifyMessage(msg, address)
	ct.Label = mc.Label
	ct.Kind = mc.Kind
	ct.TypeURL = msg.TypeURL
	ct.Direction = mc.Direction
	ct.From, ct.FromShort = mc.From, ShortenAddress(mc.From, defaultShortenChars)
	ct.To, ct.ToShort = mc.To, ShortenAddress(mc.To, defaultShortenChars)
	ct.Amount = mc.Amount
	ct.Denom = mc.Denom
	return ct
}

// ClassifyAll classifies each transaction relative to address
func (c *TxClassifier) ClassifyAll(txs []*types.Transaction, address string) []*types.ClassifiedTransaction {
	out := make([]*types.ClassifiedTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, c.ClassifyTransaction(tx, address))
	}
	return out
}

const defaultShortenChars = 8

// ShortenAddress keeps chars characters at each end, e.g. bbn1qxyz...k0abcdef.
// Values short enough to read in full are returned unchanged.
func ShortenAddress(s string, chars int) string {
	if s == "" || len(s) <= chars*2+3 {
		return s
	}
	return s[:chars] + "..." + s[len(s)-chars:]
}
