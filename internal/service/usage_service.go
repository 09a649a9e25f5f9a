package service

import (
	"context"
	"fmt"
	"log"

	"nimbusdrive/internal/domain"
)

// UsageService — отчётность по использованию: снимки и плановый пересчёт.
// Лимиты он не применяет (это делает StorageQuotaService), поэтому сбой
// пересчёта никогда не блокирует запись, а применение лимита не требует
// полного скана на горячем пути.
type UsageService struct {
	quotaRepo    QuotaStore
	quotaService *StorageQuotaService
	defaultLimit int64
}

func NewUsageService(quotaRepo QuotaStore, quotaService *StorageQuotaService, defaultLimit int64) *UsageService {
	return &UsageService{
		quotaRepo:    quotaRepo,
		quotaService: quotaService,
		defaultLimit: defaultLimit,
	}
}

// CurrentUsage возвращает снимок использования из агрегатной записи.
func (s *UsageService) CurrentUsage(ctx context.Context, ownerID string) (*domain.UsageSnapshot, error) {
	quota, err := s.quotaRepo.Get(ctx, ownerID, s.defaultLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	return &domain.UsageSnapshot{
		UsedBytes:      quota.UsedBytes,
		FileCount:      quota.FileCount,
		FolderCount:    quota.FolderCount,
		TypeBreakdown:  quota.TypeBreakdown,
		LastReconciled: quota.LastReconciled,
	}, nil
}

// Refresh запускает полный пересчёт. Вызывается после операций, меняющих
// суммарный размер или количество узлов, и безопасен по таймеру.
func (s *UsageService) Refresh(ctx context.Context, ownerID string) error {
	return s.quotaService.Reconcile(ctx, ownerID)
}

// RefreshBestEffort — то же, но сбой только логируется. Используется после
// мутаций, исход которых уже зафиксирован: отчётность не должна влиять на
// результат операции.
func (s *UsageService) RefreshBestEffort(ctx context.Context, ownerID string) {
	if err := s.Refresh(ctx, ownerID); err != nil {
		log.Printf("[UsageService] warning: failed to refresh usage for %s: %v", ownerID, err)
	}
}
