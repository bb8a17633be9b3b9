package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/models"
)

const uniqueViolation = "23505"

// WatchlistRepository handles watched address persistence
type WatchlistRepository struct {
	db *PostgresDB
}

// NewWatchlistRepository creates a new watchlist repository
func NewWatchlistRepository(db *PostgresDB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

func scanWatched(row pgx.CollectableRow) (*models.WatchedAddress, error) {
	var w models.WatchedAddress
	if err := row.Scan(&w.ID, &w.Address, &w.Nickname, &w.AlertsEnabled, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// AddWatched inserts a watched address. Watching the same address twice is a conflict.
func (r *WatchlistRepository) AddWatched(ctx context.Context, w *models.WatchedAddress) (*models.WatchedAddress, error) {
	query := `
		INSERT INTO watched_addresses (address, nickname, alerts_enabled)
		VALUES ($1, $2, $3)
		RETURNING id, address, nickname, alerts_enabled, created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, w.Address, w.Nickname, w.AlertsEnabled)
	if err != nil {
		return nil, apperrors.StoreFailure("add watched address", err)
	}

	created, err := pgx.CollectExactlyOneRow(rows, scanWatched)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperrors.NewConflictError("address is already watched")
		}
		return nil, apperrors.StoreFailure("add watched address", err)
	}
	return created, nil
}

// ListWatched returns the watchlist, newest first
func (r *WatchlistRepository) ListWatched(ctx context.Context) ([]*models.WatchedAddress, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT id, address, nickname, alerts_enabled, created_at
		FROM watched_addresses
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, apperrors.StoreFailure("list watched addresses", err)
	}

	watched, err := pgx.CollectRows(rows, scanWatched)
	if err != nil {
		return nil, apperrors.StoreFailure("list watched addresses", err)
	}
	return watched, nil
}

// RemoveWatched deletes entry id and reports whether it existed
func (r *WatchlistRepository) RemoveWatched(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM watched_addresses WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.StoreFailure("remove watched address", err)
	}
	return tag.RowsAffected() > 0, nil
}
