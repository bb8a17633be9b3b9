package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WatchedAddress is an address an operator follows on the dashboard
type WatchedAddress struct {
	ID            int64     `json:"id" db:"id"`
	Address       string    `json:"address" db:"address"`
	Nickname      *string   `json:"nickname,omitempty" db:"nickname"`
	AlertsEnabled bool      `json:"alertsEnabled" db:"alerts_enabled"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

// WatchedAddressBalance pairs a watched address with its current native balance
type WatchedAddressBalance struct {
	WatchedAddress
	Balance  decimal.Decimal `json:"balance"`
	Degraded bool            `json:"degraded,omitempty"`
}
