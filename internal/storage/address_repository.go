package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/models"
)

// AddressRepository handles address data persistence
type AddressRepository struct {
	db *PostgresDB
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *PostgresDB) *AddressRepository {
	return &AddressRepository{db: db}
}

// CreateAddress inserts an address. An address that already exists is left untouched.
func (r *AddressRepository) CreateAddress(ctx context.Context, addr *models.Address) error {
	query := `
		INSERT INTO addresses (address, first_seen, last_seen, tx_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO NOTHING
	`

	_, err := r.db.Pool().Exec(ctx, query,
		addr.Address,
		addr.FirstSeen,
		addr.LastSeen,
		addr.TxCount,
	)
	if err != nil {
		return apperrors.StoreFailure("create address", err)
	}
	return nil
}

// GetAddress retrieves an address, nil when unknown
func (r *AddressRepository) GetAddress(ctx context.Context, address string) (*models.Address, error) {
	query := `
		SELECT address, first_seen, last_seen, tx_count
		FROM addresses
		WHERE address = $1
	`

	var addr models.Address
	err := r.db.Pool().QueryRow(ctx, query, address).Scan(
		&addr.Address,
		&addr.FirstSeen,
		&addr.LastSeen,
		&addr.TxCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found, return nil without error
		}
		return nil, apperrors.StoreFailure("get address", err)
	}
	return &addr, nil
}

// ListAddresses returns every known address, most recently seen first
func (r *AddressRepository) ListAddresses(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT address FROM addresses ORDER BY last_seen DESC, address`)
	if err != nil {
		return nil, apperrors.StoreFailure("list addresses", err)
	}

	addresses, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperrors.StoreFailure("list addresses", err)
	}
	return addresses, nil
}
