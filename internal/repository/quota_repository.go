package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type StorageQuotaRepository struct {
	db *sqlx.DB
}

func NewStorageQuotaRepository(db *sqlx.DB) *StorageQuotaRepository {
	return &StorageQuotaRepository{db: db}
}

// Get возвращает запись квоты владельца; при первом обращении создаёт её
// лениво с переданным лимитом.
func (r *StorageQuotaRepository) Get(ctx context.Context, ownerID string, defaultLimit int64) (*domain.StorageQuota, error) {
	var quota domain.StorageQuota

	err := r.db.GetContext(ctx, &quota,
		`SELECT * FROM storage_quotas WHERE owner_id = $1`, ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			quota = domain.StorageQuota{
				OwnerID:         ownerID,
				TotalBytesLimit: defaultLimit,
				TypeBreakdown:   domain.TypeBreakdown{},
			}
			if err := r.create(ctx, &quota); err != nil {
				return nil, err
			}
			return &quota, nil
		}
		return nil, fmt.Errorf("failed to get quota: %w: %w", domain.ErrUnavailable, err)
	}

	return &quota, nil
}

func (r *StorageQuotaRepository) create(ctx context.Context, quota *domain.StorageQuota) error {
	query := `
        INSERT INTO storage_quotas (owner_id, total_bytes_limit, used_bytes, type_breakdown)
        VALUES ($1, $2, 0, '{}'::jsonb)
        ON CONFLICT (owner_id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP
        RETURNING id, used_bytes, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		quota.OwnerID,
		quota.TotalBytesLimit,
	).Scan(&quota.ID, &quota.UsedBytes, &quota.CreatedAt, &quota.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create quota: %w: %w", domain.ErrUnavailable, err)
	}

	return nil
}

// Reserve атомарно прибавляет deltaBytes, только если лимит не будет
// превышен. Условие проверяется в том же UPDATE, поэтому конкурентные
// резервации одного владельца не могут совместно выйти за лимит.
func (r *StorageQuotaRepository) Reserve(ctx context.Context, ownerID string, deltaBytes int64) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE storage_quotas
        SET used_bytes = used_bytes + $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2
          AND used_bytes + $1 <= total_bytes_limit`,
		deltaBytes, ownerID)
	if err != nil {
		return fmt.Errorf("failed to reserve quota: %w: %w", domain.ErrUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w: %w", domain.ErrUnavailable, err)
	}
	if rows == 0 {
		return domain.ErrQuotaExceeded
	}

	return nil
}

// Release списывает байты с прижимом к нулю.
func (r *StorageQuotaRepository) Release(ctx context.Context, ownerID string, deltaBytes int64) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE storage_quotas
        SET used_bytes = GREATEST(0, used_bytes - $1),
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`,
		deltaBytes, ownerID)
	if err != nil {
		return fmt.Errorf("failed to release quota: %w: %w", domain.ErrUnavailable, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w: %w", domain.ErrUnavailable, err)
	}
	if rows == 0 {
		log.Printf("[QuotaRepository] release for unknown owner %s ignored", ownerID)
	}

	return nil
}

func (r *StorageQuotaRepository) UpdateLimit(ctx context.Context, ownerID string, newLimit int64) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE storage_quotas
        SET total_bytes_limit = $1,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $2`,
		newLimit, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update quota limit: %w: %w", domain.ErrUnavailable, err)
	}

	return checkAffected(result)
}

// SaveUsage перезаписывает агрегаты записи квоты результатом полного
// пересчёта. Последняя запись выигрывает: пересчёт чистый, поэтому
// конкурентные reconcile безопасны.
func (r *StorageQuotaRepository) SaveUsage(ctx context.Context, ownerID string, stats *domain.UsageStats) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE storage_quotas
        SET used_bytes = $1,
            file_count = $2,
            folder_count = $3,
            type_breakdown = $4,
            last_reconciled_at = CURRENT_TIMESTAMP,
            updated_at = CURRENT_TIMESTAMP
        WHERE owner_id = $5`,
		stats.UsedBytes,
		stats.FileCount,
		stats.FolderCount,
		stats.TypeBreakdown,
		ownerID)
	if err != nil {
		return fmt.Errorf("failed to save usage: %w: %w", domain.ErrUnavailable, err)
	}

	return checkAffected(result)
}
