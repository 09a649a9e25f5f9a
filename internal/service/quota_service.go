package service

import (
	"context"
	"fmt"

	"nimbusdrive/internal/domain"
)

// StorageQuotaService — учёт и атомарное резервирование занятого места.
// Проверка check-and-reserve выполняется условным UPDATE в хранилище,
// поэтому конкурентные резервации одного владельца не могут совместно
// превысить лимит. Сервис только применяет лимит; отчётность по
// использованию — задача UsageService.
type StorageQuotaService struct {
	quotaRepo    QuotaStore
	nodes        NodeStore
	defaultLimit int64
}

func NewStorageQuotaService(quotaRepo QuotaStore, nodes NodeStore, defaultLimit int64) *StorageQuotaService {
	return &StorageQuotaService{
		quotaRepo:    quotaRepo,
		nodes:        nodes,
		defaultLimit: defaultLimit,
	}
}

func (s *StorageQuotaService) GetQuotaInfo(ctx context.Context, ownerID string) (*domain.QuotaInfo, error) {
	quota, err := s.quotaRepo.Get(ctx, ownerID, s.defaultLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}

	usagePercent := 0.0
	if quota.TotalBytesLimit > 0 {
		usagePercent = float64(quota.UsedBytes) / float64(quota.TotalBytesLimit) * 100
	}

	return &domain.QuotaInfo{
		TotalSpace:     quota.TotalBytesLimit,
		UsedSpace:      quota.UsedBytes,
		AvailableSpace: quota.TotalBytesLimit - quota.UsedBytes,
		UsagePercent:   usagePercent,
	}, nil
}

// CheckAndReserve резервирует deltaBytes под новую запись. Возвращает
// domain.ErrQuotaExceeded без каких-либо изменений, если лимит был бы
// превышен. Нулевая и отрицательная дельта резервирования не требует.
func (s *StorageQuotaService) CheckAndReserve(ctx context.Context, ownerID string, deltaBytes int64) error {
	if deltaBytes <= 0 {
		return nil
	}

	// Ленивое создание записи квоты при первом обращении.
	if _, err := s.quotaRepo.Get(ctx, ownerID, s.defaultLimit); err != nil {
		return fmt.Errorf("failed to ensure quota record: %w", err)
	}

	return s.quotaRepo.Reserve(ctx, ownerID, deltaBytes)
}

// Release возвращает байты в квоту; использование прижимается к нулю и
// никогда не уходит в минус.
func (s *StorageQuotaService) Release(ctx context.Context, ownerID string, deltaBytes int64) error {
	if deltaBytes <= 0 {
		return nil
	}
	return s.quotaRepo.Release(ctx, ownerID, deltaBytes)
}

// Reconcile пересчитывает used_bytes и счётчики полным сканом не-удалённых
// узлов владельца. Пересчёт чистый и идемпотентный; его безопасно гонять
// конкурентно с самим собой.
func (s *StorageQuotaService) Reconcile(ctx context.Context, ownerID string) error {
	if _, err := s.quotaRepo.Get(ctx, ownerID, s.defaultLimit); err != nil {
		return fmt.Errorf("failed to ensure quota record: %w", err)
	}

	stats, err := s.nodes.CalculateUsage(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to recalculate usage: %w", err)
	}

	if err := s.quotaRepo.SaveUsage(ctx, ownerID, stats); err != nil {
		return fmt.Errorf("failed to save usage: %w", err)
	}

	return nil
}

func (s *StorageQuotaService) UpdateLimit(ctx context.Context, ownerID string, newLimit int64) error {
	if newLimit < 0 {
		return fmt.Errorf("%w: quota limit cannot be negative", domain.ErrConflict)
	}

	if _, err := s.quotaRepo.Get(ctx, ownerID, s.defaultLimit); err != nil {
		return fmt.Errorf("failed to ensure quota record: %w", err)
	}

	return s.quotaRepo.UpdateLimit(ctx, ownerID, newLimit)
}
