package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"nimbusdrive/internal/domain"
)

type NodeRepository struct {
	db *sqlx.DB
}

func NewNodeRepository(db *sqlx.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

const nodeColumns = `
	id, owner_id, name, is_folder, parent_id, mime_type, size_bytes,
	content_ref, in_trash, deleted_at, purge_at, created_at, updated_at`

func (r *NodeRepository) Create(ctx context.Context, node *domain.Node) error {
	query := `
        INSERT INTO nodes (id, owner_id, name, is_folder, parent_id, mime_type, size_bytes, content_ref)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		node.ID,
		node.OwnerID,
		node.Name,
		node.IsFolder,
		node.ParentID,
		node.MIMEType,
		node.SizeBytes,
		node.ContentRef,
	).Scan(&node.CreatedAt, &node.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create node: %w: %w", domain.ErrUnavailable, err)
	}

	return nil
}

func (r *NodeRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Node, error) {
	var node domain.Node
	err := r.db.GetContext(ctx, &node,
		`SELECT `+nodeColumns+` FROM nodes WHERE id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w: %w", domain.ErrUnavailable, err)
	}

	return &node, nil
}

func (r *NodeRepository) Rename(ctx context.Context, id uuid.UUID, name string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET name = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		name, id)
	if err != nil {
		return fmt.Errorf("failed to rename node: %w: %w", domain.ErrUnavailable, err)
	}

	return checkAffected(result)
}

func (r *NodeRepository) SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET parent_id = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		parentID, id)
	if err != nil {
		return fmt.Errorf("failed to move node: %w: %w", domain.ErrUnavailable, err)
	}

	return checkAffected(result)
}

// SiblingExists проверяет занятость имени среди не-удалённых детей
// родителя, раздельно для файлов и папок.
func (r *NodeRepository) SiblingExists(ctx context.Context, ownerID string, parentID *uuid.UUID, name string, isFolder bool) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
        SELECT EXISTS(
            SELECT 1 FROM nodes
            WHERE owner_id = $1
              AND parent_id IS NOT DISTINCT FROM $2
              AND name = $3
              AND is_folder = $4
              AND in_trash = FALSE
        )`, ownerID, parentID, name, isFolder)
	if err != nil {
		return false, fmt.Errorf("failed to check sibling: %w: %w", domain.ErrUnavailable, err)
	}

	return exists, nil
}

func (r *NodeRepository) ListChildren(ctx context.Context, ownerID string, parentID *uuid.UUID, filter domain.ChildFilter) ([]domain.Node, error) {
	query := `SELECT ` + nodeColumns + `
        FROM nodes
        WHERE owner_id = $1
          AND parent_id IS NOT DISTINCT FROM $2
          AND in_trash = FALSE`
	args := []interface{}{ownerID, parentID}

	if filter.MIMEType != "" {
		args = append(args, filter.MIMEType)
		query += fmt.Sprintf(" AND mime_type = $%d", len(args))
	}
	if filter.NameContains != "" {
		args = append(args, "%"+filter.NameContains+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}

	query += childOrderClause(filter)

	var nodes []domain.Node
	if err := r.db.SelectContext(ctx, &nodes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list children: %w: %w", domain.ErrUnavailable, err)
	}

	return nodes, nil
}

// childOrderClause строит ORDER BY из белого списка полей; без явной
// сортировки папки идут раньше файлов.
func childOrderClause(filter domain.ChildFilter) string {
	column := ""
	switch filter.SortBy {
	case domain.SortByName:
		column = "name"
	case domain.SortByCreatedAt:
		column = "created_at"
	case domain.SortByUpdatedAt:
		column = "updated_at"
	}

	if column == "" {
		return " ORDER BY is_folder DESC, name ASC"
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", column, direction)
}

func (r *NodeRepository) SetTrashState(ctx context.Context, id uuid.UUID, inTrash bool, deletedAt, purgeAt *time.Time) error {
	result, err := r.db.ExecContext(ctx, `
        UPDATE nodes
        SET in_trash = $1, deleted_at = $2, purge_at = $3, updated_at = CURRENT_TIMESTAMP
        WHERE id = $4`,
		inTrash, deletedAt, purgeAt, id)
	if err != nil {
		return fmt.Errorf("failed to set trash state: %w: %w", domain.ErrUnavailable, err)
	}

	return checkAffected(result)
}

func (r *NodeRepository) ListTrashed(ctx context.Context, ownerID string) ([]domain.Node, error) {
	var nodes []domain.Node
	err := r.db.SelectContext(ctx, &nodes,
		`SELECT `+nodeColumns+` FROM nodes WHERE owner_id = $1 AND in_trash = TRUE ORDER BY deleted_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trashed nodes: %w: %w", domain.ErrUnavailable, err)
	}

	return nodes, nil
}

// ListExpired возвращает записи корзины, у которых вышел срок хранения.
func (r *NodeRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Node, error) {
	var nodes []domain.Node
	err := r.db.SelectContext(ctx, &nodes,
		`SELECT `+nodeColumns+` FROM nodes WHERE in_trash = TRUE AND purge_at <= $1`,
		now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired nodes: %w: %w", domain.ErrUnavailable, err)
	}

	return nodes, nil
}

func (r *NodeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete node: %w: %w", domain.ErrUnavailable, err)
	}

	return checkAffected(result)
}

// DeleteTrashed удаляет всю корзину владельца одним запросом и возвращает
// удалённые узлы, чтобы вызывающий мог зачистить блобы.
func (r *NodeRepository) DeleteTrashed(ctx context.Context, ownerID string) ([]domain.Node, error) {
	var nodes []domain.Node
	err := r.db.SelectContext(ctx, &nodes,
		`DELETE FROM nodes WHERE owner_id = $1 AND in_trash = TRUE RETURNING `+nodeColumns,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to empty trash: %w: %w", domain.ErrUnavailable, err)
	}

	return nodes, nil
}

// CalculateUsage выполняет полный пересчёт занятого места и счётчиков по
// не-удалённым узлам владельца.
func (r *NodeRepository) CalculateUsage(ctx context.Context, ownerID string) (*domain.UsageStats, error) {
	stats := &domain.UsageStats{TypeBreakdown: domain.TypeBreakdown{}}

	err := r.db.QueryRowContext(ctx, `
        SELECT
            COALESCE(SUM(size_bytes) FILTER (WHERE NOT is_folder), 0),
            COUNT(*) FILTER (WHERE NOT is_folder),
            COUNT(*) FILTER (WHERE is_folder)
        FROM nodes
        WHERE owner_id = $1 AND in_trash = FALSE`,
		ownerID,
	).Scan(&stats.UsedBytes, &stats.FileCount, &stats.FolderCount)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate usage: %w: %w", domain.ErrUnavailable, err)
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT mime_type, COUNT(*)
        FROM nodes
        WHERE owner_id = $1 AND in_trash = FALSE AND NOT is_folder
        GROUP BY mime_type`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate type breakdown: %w: %w", domain.ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var mimeType string
		var count int64
		if err := rows.Scan(&mimeType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan type breakdown: %w: %w", domain.ErrUnavailable, err)
		}
		stats.TypeBreakdown[mimeType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read type breakdown: %w: %w", domain.ErrUnavailable, err)
	}

	return stats, nil
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w: %w", domain.ErrUnavailable, err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
