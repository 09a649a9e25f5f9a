package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

type ShareStore struct {
	mu     sync.RWMutex
	shares map[uuid.UUID]*domain.Share
}

func NewShareStore() *ShareStore {
	return &ShareStore{shares: make(map[uuid.UUID]*domain.Share)}
}

func (s *ShareStore) Create(_ context.Context, share *domain.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shares {
		if existing.NodeID == share.NodeID && existing.GranteeID == share.GranteeID {
			return domain.ErrAlreadyShared
		}
	}

	share.GrantedAt = time.Now().UTC()
	clone := *share
	s.shares[share.ID] = &clone
	return nil
}

func (s *ShareStore) GetByNodeAndGrantee(_ context.Context, nodeID uuid.UUID, granteeID string) (*domain.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, share := range s.shares {
		if share.NodeID == nodeID && share.GranteeID == granteeID {
			clone := *share
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *ShareStore) ListByNode(_ context.Context, nodeID uuid.UUID) ([]domain.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Share
	for _, share := range s.shares {
		if share.NodeID == nodeID {
			result = append(result, *share)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GrantedAt.Before(result[j].GrantedAt) })
	return result, nil
}

func (s *ShareStore) ListByGrantee(_ context.Context, granteeID string) ([]domain.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Share
	for _, share := range s.shares {
		if share.GranteeID == granteeID {
			result = append(result, *share)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[j].GrantedAt.Before(result[i].GrantedAt) })
	return result, nil
}

func (s *ShareStore) Delete(_ context.Context, nodeID uuid.UUID, granteeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, share := range s.shares {
		if share.NodeID == nodeID && share.GranteeID == granteeID {
			delete(s.shares, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

type QuotaStore struct {
	mu     sync.Mutex
	quotas map[string]*domain.StorageQuota
	nextID int64
}

func NewQuotaStore() *QuotaStore {
	return &QuotaStore{quotas: make(map[string]*domain.StorageQuota)}
}

func (s *QuotaStore) Get(_ context.Context, ownerID string, defaultLimit int64) (*domain.StorageQuota, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[ownerID]
	if !ok {
		s.nextID++
		now := time.Now().UTC()
		quota = &domain.StorageQuota{
			ID:              s.nextID,
			OwnerID:         ownerID,
			TotalBytesLimit: defaultLimit,
			TypeBreakdown:   domain.TypeBreakdown{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		s.quotas[ownerID] = quota
	}

	clone := *quota
	return &clone, nil
}

// Reserve повторяет семантику условного UPDATE: проверка лимита и
// прибавка атомарны под мьютексом стора.
func (s *QuotaStore) Reserve(_ context.Context, ownerID string, deltaBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[ownerID]
	if !ok {
		return domain.ErrQuotaExceeded
	}
	if quota.UsedBytes+deltaBytes > quota.TotalBytesLimit {
		return domain.ErrQuotaExceeded
	}

	quota.UsedBytes += deltaBytes
	quota.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *QuotaStore) Release(_ context.Context, ownerID string, deltaBytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[ownerID]
	if !ok {
		return nil
	}

	quota.UsedBytes -= deltaBytes
	if quota.UsedBytes < 0 {
		quota.UsedBytes = 0
	}
	quota.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *QuotaStore) UpdateLimit(_ context.Context, ownerID string, newLimit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[ownerID]
	if !ok {
		return domain.ErrNotFound
	}

	quota.TotalBytesLimit = newLimit
	quota.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *QuotaStore) SaveUsage(_ context.Context, ownerID string, stats *domain.UsageStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quota, ok := s.quotas[ownerID]
	if !ok {
		return domain.ErrNotFound
	}

	now := time.Now().UTC()
	quota.UsedBytes = stats.UsedBytes
	quota.FileCount = stats.FileCount
	quota.FolderCount = stats.FolderCount
	quota.TypeBreakdown = stats.TypeBreakdown
	quota.LastReconciled = &now
	quota.UpdatedAt = now
	return nil
}

type TrashSettingsStore struct {
	mu       sync.Mutex
	settings map[string]*domain.TrashSettings
	nextID   int64
}

func NewTrashSettingsStore() *TrashSettingsStore {
	return &TrashSettingsStore{settings: make(map[string]*domain.TrashSettings)}
}

func (s *TrashSettingsStore) GetSettings(_ context.Context, ownerID string) (*domain.TrashSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, ok := s.settings[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *settings
	return &clone, nil
}

func (s *TrashSettingsStore) UpdateSettings(_ context.Context, settings *domain.TrashSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.settings[settings.OwnerID]
	if ok {
		existing.RetentionPeriod = settings.RetentionPeriod
		existing.UpdatedAt = now
		*settings = *existing
		return nil
	}

	s.nextID++
	settings.ID = s.nextID
	settings.CreatedAt = now
	settings.UpdatedAt = now
	clone := *settings
	s.settings[settings.OwnerID] = &clone
	return nil
}

type ActivityStore struct {
	mu     sync.Mutex
	events []domain.ActivityEvent
	nextID int64
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{}
}

func (s *ActivityStore) Insert(_ context.Context, event *domain.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event.ID = s.nextID
	s.events = append(s.events, *event)
	return nil
}

func (s *ActivityStore) ListByOwner(_ context.Context, ownerID string, limit int) ([]domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result []domain.ActivityEvent
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		if s.events[i].OwnerID == ownerID {
			result = append(result, s.events[i])
		}
	}
	return result, nil
}

// BlobStore — байтовое хранилище в памяти, замена S3 для тестов и
// локальной разработки.
type BlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

func (s *BlobStore) Store(_ context.Context, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := fmt.Sprintf("mem/%s", uuid.New())
	buf := make([]byte, len(data))
	copy(buf, data)
	s.blobs[ref] = buf
	return ref, nil
}

func (s *BlobStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *BlobStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, ref)
	return nil
}

func (s *BlobStore) Exists(_ context.Context, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.blobs[ref]
	return ok, nil
}

// Len сообщает число хранимых блобов (используется тестами).
func (s *BlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
