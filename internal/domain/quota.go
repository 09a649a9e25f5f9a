package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StorageQuota — агрегатная запись пользователя: лимит, занятые байты и
// счётчики по типам. Счётчики производны от таблицы узлов и всегда
// восстановимы полным пересчётом (reconcile); источником истины для
// размера отдельного узла запись не является.
type StorageQuota struct {
	ID              int64          `json:"id" db:"id"`
	OwnerID         string         `json:"owner_id" db:"owner_id"`
	TotalBytesLimit int64          `json:"total_bytes_limit" db:"total_bytes_limit"`
	UsedBytes       int64          `json:"used_bytes" db:"used_bytes"`
	FileCount       int64          `json:"file_count" db:"file_count"`
	FolderCount     int64          `json:"folder_count" db:"folder_count"`
	TypeBreakdown   TypeBreakdown  `json:"type_breakdown" db:"type_breakdown"`
	LastReconciled  *time.Time     `json:"last_reconciled_at,omitempty" db:"last_reconciled_at"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// TypeBreakdown — количество не-удалённых файлов по mime-типу.
// Хранится в jsonb-колонке, поэтому реализует driver.Valuer и sql.Scanner.
type TypeBreakdown map[string]int64

func (b TypeBreakdown) Value() (driver.Value, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(b)
}

func (b *TypeBreakdown) Scan(src interface{}) error {
	if src == nil {
		*b = TypeBreakdown{}
		return nil
	}
	data, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan type breakdown from %T", src)
	}
	return json.Unmarshal(data, b)
}

// UsageStats — результат полного пересчёта по не-удалённым узлам владельца.
type UsageStats struct {
	UsedBytes     int64         `json:"used_bytes"`
	FileCount     int64         `json:"file_count"`
	FolderCount   int64         `json:"folder_count"`
	TypeBreakdown TypeBreakdown `json:"type_breakdown"`
}

// QuotaInfo — снимок квоты для отдачи клиенту.
type QuotaInfo struct {
	TotalSpace     int64   `json:"total_space"`
	UsedSpace      int64   `json:"used_space"`
	AvailableSpace int64   `json:"available_space"`
	UsagePercent   float64 `json:"usage_percent"`
}

// UsageSnapshot — QuotaInfo плюс счётчики, для обзорного эндпоинта.
type UsageSnapshot struct {
	UsedBytes      int64         `json:"used_bytes"`
	FileCount      int64         `json:"file_count"`
	FolderCount    int64         `json:"folder_count"`
	TypeBreakdown  TypeBreakdown `json:"type_breakdown"`
	LastReconciled *time.Time    `json:"last_reconciled_at,omitempty"`
}
