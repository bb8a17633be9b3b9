package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/babylon-scanner/internal/errors"
	"github.com/babylon-scanner/internal/models"
)

const labelColumns = `id, address, label, category, confidence, source, created_at, updated_at`

// LabelRepository handles address label persistence
type LabelRepository struct {
	db *PostgresDB
}

// NewLabelRepository creates a new label repository
func NewLabelRepository(db *PostgresDB) *LabelRepository {
	return &LabelRepository{db: db}
}

func scanLabel(row pgx.CollectableRow) (*models.AddressLabel, error) {
	var l models.AddressLabel
	err := row.Scan(
		&l.ID,
		&l.Address,
		&l.Label,
		&l.Category,
		&l.Confidence,
		&l.Source,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLabelsByAddress returns every label on address, oldest first
func (r *LabelRepository) GetLabelsByAddress(ctx context.Context, address string) ([]*models.AddressLabel, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT `+labelColumns+` FROM address_labels WHERE address = $1 ORDER BY created_at, id`,
		address,
	)
	if err != nil {
		return nil, apperrors.StoreFailure("get labels", err)
	}

	labels, err := pgx.CollectRows(rows, scanLabel)
	if err != nil {
		return nil, apperrors.StoreFailure("get labels", err)
	}
	return labels, nil
}

// CreateLabel inserts a label. A concurrent insert of the same (address, label, category)
// from another instance resolves to the existing row with the higher confidence kept.
func (r *LabelRepository) CreateLabel(ctx context.Context, label *models.AddressLabel) (*models.AddressLabel, error) {
	query := `
		INSERT INTO address_labels (address, label, category, confidence, source, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address, label, category) DO UPDATE
		SET confidence = GREATEST(address_labels.confidence, EXCLUDED.confidence)
		RETURNING ` + labelColumns

	rows, err := r.db.Pool().Query(ctx, query,
		label.Address,
		label.Label,
		label.Category,
		label.Confidence,
		label.Source,
		label.CreatedAt,
	)
	if err != nil {
		return nil, apperrors.StoreFailure("create label", err)
	}

	created, err := pgx.CollectExactlyOneRow(rows, scanLabel)
	if err != nil {
		return nil, apperrors.StoreFailure("create label", err)
	}
	return created, nil
}

// UpdateLabelConfidence sets the confidence of label id and stamps updated_at
func (r *LabelRepository) UpdateLabelConfidence(ctx context.Context, id int64, confidence float64) (*models.AddressLabel, error) {
	query := `
		UPDATE address_labels
		SET confidence = $2, updated_at = $3
		WHERE id = $1
		RETURNING ` + labelColumns

	rows, err := r.db.Pool().Query(ctx, query, id, confidence, time.Now().UTC())
	if err != nil {
		return nil, apperrors.StoreFailure("update label", err)
	}

	updated, err := pgx.CollectExactlyOneRow(rows, scanLabel)
	if err != nil {
		return nil, apperrors.StoreFailure("update label", err)
	}
	return updated, nil
}

// ListLabels returns the newest labels, optionally restricted to one category
func (r *LabelRepository) ListLabels(ctx context.Context, filter models.LabelFilter) ([]*models.AddressLabel, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.Category != "" {
		rows, err = r.db.Pool().Query(ctx,
			`SELECT `+labelColumns+` FROM address_labels WHERE category = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
			filter.Category, filter.Limit,
		)
	} else {
		rows, err = r.db.Pool().Query(ctx,
			`SELECT `+labelColumns+` FROM address_labels ORDER BY created_at DESC, id DESC LIMIT $1`,
			filter.Limit,
		)
	}
	if err != nil {
		return nil, apperrors.StoreFailure("list labels", err)
	}

	labels, err := pgx.CollectRows(rows, scanLabel)
	if err != nil {
		return nil, apperrors.StoreFailure("list labels", err)
	}
	return labels, nil
}

// ListCategories returns the distinct categories in use, sorted
func (r *LabelRepository) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT DISTINCT category FROM address_labels ORDER BY category`)
	if err != nil {
		return nil, apperrors.StoreFailure("list categories", err)
	}

	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperrors.StoreFailure("list categories", err)
	}
	return categories, nil
}

// CountByCategory returns the number of labels per category
func (r *LabelRepository) CountByCategory(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT category, COUNT(*) FROM address_labels GROUP BY category`)
	if err != nil {
		return nil, apperrors.StoreFailure("count labels", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			category string
			n        int64
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, apperrors.StoreFailure("count labels", err)
		}
		counts[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreFailure("count labels", err)
	}
	return counts, nil
}

// DeleteLabel removes label id and reports whether it existed
func (r *LabelRepository) DeleteLabel(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM address_labels WHERE id = $1`, id)
	if err != nil {
		return false, apperrors.StoreFailure("delete label", err)
	}
	return tag.RowsAffected() > 0, nil
}
