package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"nimbusdrive/internal/domain"
)

type ShareRepository struct {
	db *sqlx.DB
}

func NewShareRepository(db *sqlx.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

func (r *ShareRepository) Create(ctx context.Context, share *domain.Share) error {
	query := `
        INSERT INTO shares (id, node_id, owner_id, grantee_id, access_type)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING granted_at`

	err := r.db.QueryRowContext(ctx, query,
		share.ID,
		share.NodeID,
		share.OwnerID,
		share.GranteeID,
		share.AccessType,
	).Scan(&share.GrantedAt)
	if err != nil {
		// Уникальный индекс (node_id, grantee_id) — вторая выдача тому же
		// пользователю превращается в типизированный исход.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domain.ErrAlreadyShared
		}
		return fmt.Errorf("failed to create share: %w: %w", domain.ErrUnavailable, err)
	}

	return nil
}

func (r *ShareRepository) GetByNodeAndGrantee(ctx context.Context, nodeID uuid.UUID, granteeID string) (*domain.Share, error) {
	var share domain.Share
	err := r.db.GetContext(ctx, &share,
		`SELECT id, node_id, owner_id, grantee_id, access_type, granted_at
         FROM shares WHERE node_id = $1 AND grantee_id = $2`,
		nodeID, granteeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get share: %w: %w", domain.ErrUnavailable, err)
	}

	return &share, nil
}

func (r *ShareRepository) ListByNode(ctx context.Context, nodeID uuid.UUID) ([]domain.Share, error) {
	var shares []domain.Share
	err := r.db.SelectContext(ctx, &shares,
		`SELECT id, node_id, owner_id, grantee_id, access_type, granted_at
         FROM shares WHERE node_id = $1 ORDER BY granted_at`,
		nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w: %w", domain.ErrUnavailable, err)
	}

	return shares, nil
}

// ListByGrantee читает гранты пользователя через вторичный индекс по
// grantee_id — это и есть выборка "shared with me".
func (r *ShareRepository) ListByGrantee(ctx context.Context, granteeID string) ([]domain.Share, error) {
	var shares []domain.Share
	err := r.db.SelectContext(ctx, &shares,
		`SELECT id, node_id, owner_id, grantee_id, access_type, granted_at
         FROM shares WHERE grantee_id = $1 ORDER BY granted_at DESC`,
		granteeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares by grantee: %w: %w", domain.ErrUnavailable, err)
	}

	return shares, nil
}

func (r *ShareRepository) Delete(ctx context.Context, nodeID uuid.UUID, granteeID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM shares WHERE node_id = $1 AND grantee_id = $2`,
		nodeID, granteeID)
	if err != nil {
		return fmt.Errorf("failed to delete share: %w: %w", domain.ErrUnavailable, err)
	}

	return checkAffected(result)
}
