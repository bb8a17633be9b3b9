package service

import (
	"context"

	"github.com/babylon-scanner/internal/models"
)

// LabelStore persists address labels. Implementations wrap failures with errors.StoreFailure.
type LabelStore interface {
	GetLabelsByAddress(ctx context.Context, address string) ([]*models.AddressLabel, error)
	CreateLabel(ctx context.Context, label *models.AddressLabel) (*models.AddressLabel, error)
	// UpdateLabelConfidence sets confidence and updated_at, returning the updated row
	UpdateLabelConfidence(ctx context.Context, id int64, confidence float64) (*models.AddressLabel, error)
	ListLabels(ctx context.Context, filter models.LabelFilter) ([]*models.AddressLabel, error)
	ListCategories(ctx context.Context) ([]string, error)
	CountByCategory(ctx context.Context) (map[string]int64, error)
	// DeleteLabel reports whether a row was removed
	DeleteLabel(ctx context.Context, id int64) (bool, error)
}

// AddressStore persists known addresses
type AddressStore interface {
	// GetAddress returns nil, nil when the address is unknown
	GetAddress(ctx context.Context, address string) (*models.Address, error)
	CreateAddress(ctx context.Context, addr *models.Address) error
	ListAddresses(ctx context.Context) ([]string, error)
}

// WatchlistStore persists the operator watchlist
type WatchlistStore interface {
	// AddWatched returns an errors.ErrConflict error when the address is already watched
	AddWatched(ctx context.Context, w *models.WatchedAddress) (*models.WatchedAddress, error)
	ListWatched(ctx context.Context) ([]*models.WatchedAddress, error)
	RemoveWatched(ctx context.Context, id int64) (bool, error)
}

// SnapshotCache holds short-lived JSON snapshots shared between instances
type SnapshotCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}
