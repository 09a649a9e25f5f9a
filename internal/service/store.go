package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

// Интерфейсы хранилищ объявлены на стороне потребителя; им удовлетворяют
// и sqlx-репозитории (internal/repository), и in-memory реализация
// (internal/repository/memory).

// NodeStore — персистентная таблица узлов дерева.
type NodeStore interface {
	Create(ctx context.Context, node *domain.Node) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Node, error)
	Rename(ctx context.Context, id uuid.UUID, name string) error
	SetParent(ctx context.Context, id uuid.UUID, parentID *uuid.UUID) error
	SiblingExists(ctx context.Context, ownerID string, parentID *uuid.UUID, name string, isFolder bool) (bool, error)
	ListChildren(ctx context.Context, ownerID string, parentID *uuid.UUID, filter domain.ChildFilter) ([]domain.Node, error)
	SetTrashState(ctx context.Context, id uuid.UUID, inTrash bool, deletedAt, purgeAt *time.Time) error
	ListTrashed(ctx context.Context, ownerID string) ([]domain.Node, error)
	ListExpired(ctx context.Context, now time.Time) ([]domain.Node, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTrashed(ctx context.Context, ownerID string) ([]domain.Node, error)
	CalculateUsage(ctx context.Context, ownerID string) (*domain.UsageStats, error)
}

// ShareStore — хранилище выданных разрешений.
type ShareStore interface {
	Create(ctx context.Context, share *domain.Share) error
	GetByNodeAndGrantee(ctx context.Context, nodeID uuid.UUID, granteeID string) (*domain.Share, error)
	ListByNode(ctx context.Context, nodeID uuid.UUID) ([]domain.Share, error)
	ListByGrantee(ctx context.Context, granteeID string) ([]domain.Share, error)
	Delete(ctx context.Context, nodeID uuid.UUID, granteeID string) error
}

// QuotaStore — хранилище агрегатных записей квот.
type QuotaStore interface {
	Get(ctx context.Context, ownerID string, defaultLimit int64) (*domain.StorageQuota, error)
	Reserve(ctx context.Context, ownerID string, deltaBytes int64) error
	Release(ctx context.Context, ownerID string, deltaBytes int64) error
	UpdateLimit(ctx context.Context, ownerID string, newLimit int64) error
	SaveUsage(ctx context.Context, ownerID string, stats *domain.UsageStats) error
}

// TrashSettingsStore — пользовательские настройки корзины.
type TrashSettingsStore interface {
	GetSettings(ctx context.Context, ownerID string) (*domain.TrashSettings, error)
	UpdateSettings(ctx context.Context, settings *domain.TrashSettings) error
}

// ActivityStore — журнал активности.
type ActivityStore interface {
	Insert(ctx context.Context, event *domain.ActivityEvent) error
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.ActivityEvent, error)
}

// BlobStorage — внешний коллаборатор байтового хранилища. Ядро никогда
// не интерпретирует содержимое; оно оперирует только непрозрачными
// ссылками contentRef.
type BlobStorage interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
}
