package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type ActivityRepository struct {
	db *sqlx.DB
}

func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Insert(ctx context.Context, event *domain.ActivityEvent) error {
	query := `
        INSERT INTO activity_log (operation, node_id, owner_id, detail, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		event.Operation,
		event.NodeID,
		event.OwnerID,
		event.Detail,
		event.CreatedAt,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert activity event: %w: %w", domain.ErrUnavailable, err)
	}

	return nil
}

func (r *ActivityRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	var events []domain.ActivityEvent
	err := r.db.SelectContext(ctx, &events,
		`SELECT id, operation, node_id, owner_id, detail, created_at
         FROM activity_log
         WHERE owner_id = $1
         ORDER BY created_at DESC, id DESC
         LIMIT $2`,
		ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w: %w", domain.ErrUnavailable, err)
	}

	return events, nil
}
