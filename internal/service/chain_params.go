package service

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/shopspring/decimal"

	"github.com/babylon-scanner/internal/config"
	apperrors "github.com/babylon-scanner/internal/errors"
)

// Account and contract addresses carry a 20 or 32 byte payload
const (
	minAddressBytes = 20
	maxAddressBytes = 32
)

// ChainParams are the chain constants the services compute with
type ChainParams struct {
	ChainID         string
	NativeDenom     string
	Decimals        int32
	AccountPrefix   string
	ValidatorPrefix string
}

// ChainParamsFromConfig builds ChainParams from the loaded configuration
func ChainParamsFromConfig(cfg *config.Config) ChainParams {
	return ChainParams{
		ChainID:         cfg.Node.ChainID,
		NativeDenom:     cfg.Chain.NativeDenom,
		Decimals:        cfg.Chain.Decimals,
		AccountPrefix:   cfg.Chain.AccountPrefix,
		ValidatorPrefix: cfg.Chain.ValidatorPrefix,
	}
}

// WholeUnits converts a base-unit amount to whole native tokens
func (p ChainParams) WholeUnits(base decimal.Decimal) decimal.Decimal {
	return base.Shift(-p.Decimals)
}

// IsValidatorAddress reports whether address is a validator operator address
func (p ChainParams) IsValidatorAddress(address string) bool {
	return strings.HasPrefix(address, p.ValidatorPrefix)
}

// ValidateAddress checks that address is a lowercase bech32 account or operator address
// of this chain with a valid checksum.
func (p ChainParams) ValidateAddress(address string) error {
	if address == "" {
		return apperrors.NewInvalidParameterError("address", "is required")
	}
	if address != strings.ToLower(address) {
		return apperrors.NewInvalidParameterError("address", "must be lowercase")
	}

	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return apperrors.NewInvalidAddressError(address)
	}
	if hrp != p.AccountPrefix && hrp != p.ValidatorPrefix {
		return apperrors.NewInvalidAddressError(address)
	}

	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil || len(payload) < minAddressBytes || len(payload) > maxAddressBytes {
		return apperrors.NewInvalidParameterError("address", "has an invalid length")
	}
	return nil
}
