package models

import (
	"time"
)

// LabelSource records how a label was produced
type LabelSource string

const (
	// SourceManual is a label entered by an operator
	SourceManual LabelSource = "manual"
	// SourceAuto is a label derived from authoritative chain data (validator set, finality providers)
	SourceAuto LabelSource = "auto"
	// SourceHeuristic is a label derived from a threshold or scoring rule
	SourceHeuristic LabelSource = "heuristic"
	// SourceML is a label produced by an offline model
	SourceML LabelSource = "ml"
	// SourceCurated is a label imported from a curated list
	SourceCurated LabelSource = "curated"
)

// Valid reports whether s is one of the known sources
func (s LabelSource) Valid() bool {
	switch s {
	case SourceManual, SourceAuto, SourceHeuristic, SourceML, SourceCurated:
		return true
	}
	return false
}

// Well-known label categories
const (
	CategoryValidator  = "validator"
	CategorySmartMoney = "smart-money"
	CategoryWhale      = "whale"
	CategoryExchange   = "exchange"
	CategoryFoundation = "foundation"
	CategoryCustom     = "custom"
)

// AddressLabel is a label attached to an address.
// (address, label, category) is unique by convention, enforced by the labeling service.
type AddressLabel struct {
	ID         int64       `json:"id" db:"id"`
	Address    string      `json:"address" db:"address"`
	Label      string      `json:"label" db:"label"`
	Category   string      `json:"category" db:"category"`
	Confidence float64     `json:"confidence" db:"confidence"`
	Source     LabelSource `json:"source" db:"source"`
	CreatedAt  time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt  *time.Time  `json:"updatedAt,omitempty" db:"updated_at"`
}

// SameLabel reports whether l carries the same label text and category
func (l *AddressLabel) SameLabel(label, category string) bool {
	return l.Label == label && l.Category == category
}

// LabelFilter narrows label listings
type LabelFilter struct {
	Category string
	Limit    int
}
