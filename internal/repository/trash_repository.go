package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

// TrashRepository хранит пользовательские настройки корзины. Сами
// переходы узлов в корзину и обратно делает NodeRepository.
type TrashRepository struct {
	db *sqlx.DB
}

func NewTrashRepository(db *sqlx.DB) *TrashRepository {
	return &TrashRepository{db: db}
}

func (r *TrashRepository) GetSettings(ctx context.Context, ownerID string) (*domain.TrashSettings, error) {
	var settings domain.TrashSettings
	err := r.db.GetContext(ctx, &settings,
		`SELECT * FROM trash_settings WHERE owner_id = $1`, ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trash settings: %w: %w", domain.ErrUnavailable, err)
	}

	return &settings, nil
}

func (r *TrashRepository) UpdateSettings(ctx context.Context, settings *domain.TrashSettings) error {
	query := `
        INSERT INTO trash_settings (owner_id, retention_period)
        VALUES ($1, $2)
        ON CONFLICT (owner_id) DO UPDATE
        SET retention_period = EXCLUDED.retention_period,
            updated_at = CURRENT_TIMESTAMP
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		settings.OwnerID,
		settings.RetentionPeriod,
	).Scan(&settings.ID, &settings.CreatedAt, &settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update trash settings: %w: %w", domain.ErrUnavailable, err)
	}

	return nil
}
