// Package memory хранит всё состояние в памяти процесса. Реализует те же
// интерфейсы, что и sqlx-репозитории; используется тестами и как бэкенд
// для локальной разработки без Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

type NodeStore struct {
	mu    sync.RWMutex
	nodes map[uuid.UUID]*domain.Node
}

func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[uuid.UUID]*domain.Node)}
}

func (s *NodeStore) Create(_ context.Context, node *domain.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	node.CreatedAt = now
	node.UpdatedAt = now

	clone := *node
	s.nodes[node.ID] = &clone
	return nil
}

func (s *NodeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *node
	return &clone, nil
}

func (s *NodeStore) Rename(_ context.Context, id uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return domain.ErrNotFound
	}
	node.Name = name
	node.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *NodeStore) SetParent(_ context.Context, id uuid.UUID, parentID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return domain.ErrNotFound
	}
	node.ParentID = parentID
	node.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *NodeStore) SiblingExists(_ context.Context, ownerID string, parentID *uuid.UUID, name string, isFolder bool) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, node := range s.nodes {
		if node.OwnerID == ownerID &&
			sameParent(node.ParentID, parentID) &&
			node.Name == name &&
			node.IsFolder == isFolder &&
			!node.InTrash {
			return true, nil
		}
	}
	return false, nil
}

func (s *NodeStore) ListChildren(_ context.Context, ownerID string, parentID *uuid.UUID, filter domain.ChildFilter) ([]domain.Node, error) {
	s.mu.RLock()
	var children []domain.Node
	for _, node := range s.nodes {
		if node.OwnerID != ownerID || node.InTrash || !sameParent(node.ParentID, parentID) {
			continue
		}
		if filter.MIMEType != "" && node.MIMEType != filter.MIMEType {
			continue
		}
		if filter.NameContains != "" &&
			!strings.Contains(strings.ToLower(node.Name), strings.ToLower(filter.NameContains)) {
			continue
		}
		children = append(children, *node)
	}
	s.mu.RUnlock()

	sortChildren(children, filter)
	return children, nil
}

func sortChildren(children []domain.Node, filter domain.ChildFilter) {
	less := func(a, b *domain.Node) bool {
		// Без явной сортировки папки идут раньше файлов.
		if a.IsFolder != b.IsFolder {
			return a.IsFolder
		}
		return a.Name < b.Name
	}

	switch filter.SortBy {
	case domain.SortByName:
		less = func(a, b *domain.Node) bool { return a.Name < b.Name }
	case domain.SortByCreatedAt:
		less = func(a, b *domain.Node) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case domain.SortByUpdatedAt:
		less = func(a, b *domain.Node) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}

	sort.SliceStable(children, func(i, j int) bool {
		if filter.SortBy != "" && filter.SortDesc {
			return less(&children[j], &children[i])
		}
		return less(&children[i], &children[j])
	})
}

func (s *NodeStore) SetTrashState(_ context.Context, id uuid.UUID, inTrash bool, deletedAt, purgeAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return domain.ErrNotFound
	}
	node.InTrash = inTrash
	node.DeletedAt = deletedAt
	node.PurgeAt = purgeAt
	node.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *NodeStore) ListTrashed(_ context.Context, ownerID string) ([]domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var trashed []domain.Node
	for _, node := range s.nodes {
		if node.OwnerID == ownerID && node.InTrash {
			trashed = append(trashed, *node)
		}
	}
	sort.Slice(trashed, func(i, j int) bool {
		if trashed[i].DeletedAt == nil || trashed[j].DeletedAt == nil {
			return trashed[j].DeletedAt == nil
		}
		return trashed[j].DeletedAt.Before(*trashed[i].DeletedAt)
	})
	return trashed, nil
}

func (s *NodeStore) ListExpired(_ context.Context, now time.Time) ([]domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []domain.Node
	for _, node := range s.nodes {
		if node.InTrash && node.PurgeAt != nil && !node.PurgeAt.After(now) {
			expired = append(expired, *node)
		}
	}
	return expired, nil
}

func (s *NodeStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.nodes, id)
	s.promoteOrphans(map[uuid.UUID]struct{}{id: {}})
	return nil
}

func (s *NodeStore) DeleteTrashed(_ context.Context, ownerID string) ([]domain.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := make(map[uuid.UUID]struct{})
	var deleted []domain.Node
	for id, node := range s.nodes {
		if node.OwnerID == ownerID && node.InTrash {
			deleted = append(deleted, *node)
			delete(s.nodes, id)
			removed[id] = struct{}{}
		}
	}
	s.promoteOrphans(removed)
	return deleted, nil
}

// promoteOrphans повторяет ON DELETE SET NULL схемы: дети удалённых
// узлов поднимаются в корень. Вызывается под захваченным s.mu.
func (s *NodeStore) promoteOrphans(removed map[uuid.UUID]struct{}) {
	if len(removed) == 0 {
		return
	}
	for _, node := range s.nodes {
		if node.ParentID == nil {
			continue
		}
		if _, ok := removed[*node.ParentID]; ok {
			node.ParentID = nil
		}
	}
}

func (s *NodeStore) CalculateUsage(_ context.Context, ownerID string) (*domain.UsageStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.UsageStats{TypeBreakdown: domain.TypeBreakdown{}}
	for _, node := range s.nodes {
		if node.OwnerID != ownerID || node.InTrash {
			continue
		}
		if node.IsFolder {
			stats.FolderCount++
			continue
		}
		stats.FileCount++
		stats.UsedBytes += node.SizeBytes
		stats.TypeBreakdown[node.MIMEType]++
	}
	return stats, nil
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
