package models

import (
	"time"
)

// Address is a known chain address. One row per address; labels reference it.
type Address struct {
	Address   string    `json:"address" db:"address"`
	FirstSeen time.Time `json:"firstSeen" db:"first_seen"`
	LastSeen  time.Time `json:"lastSeen" db:"last_seen"`
	TxCount   int64     `json:"txCount" db:"tx_count"`
}
