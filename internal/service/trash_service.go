package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

// TrashService ведёт жизненный цикл Active -> Trashed -> Purged (и
// Trashed -> Active при восстановлении). Флаг корзины не каскадируется на
// потомков: ребёнок удалённой папки остаётся активным и лишь исчезает из
// браузинга вместе с родителем, а при восстановлении возвращается как был.
type TrashService struct {
	nodes            NodeStore
	settings         TrashSettingsStore
	blob             BlobStorage
	usage            *UsageService
	locks            *UserLocks
	activity         *ActivitySink
	defaultRetention time.Duration
}

func NewTrashService(
	nodes NodeStore,
	settings TrashSettingsStore,
	blob BlobStorage,
	usage *UsageService,
	locks *UserLocks,
	activity *ActivitySink,
	defaultRetention time.Duration,
) *TrashService {
	return &TrashService{
		nodes:            nodes,
		settings:         settings,
		blob:             blob,
		usage:            usage,
		locks:            locks,
		activity:         activity,
		defaultRetention: defaultRetention,
	}
}

// MoveToTrash помечает узел удалённым и назначает срок автоочистки.
func (s *TrashService) MoveToTrash(ctx context.Context, ownerID string, nodeID uuid.UUID) error {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	if node.InTrash {
		return fmt.Errorf("%w: node is already in trash", domain.ErrConflict)
	}

	now := time.Now().UTC()
	purgeAt := now.Add(s.retentionFor(ctx, ownerID))
	if err := s.nodes.SetTrashState(ctx, nodeID, true, &now, &purgeAt); err != nil {
		return err
	}

	s.activity.Record(domain.OpTrash, nodeID, ownerID, node.Name)
	s.usage.RefreshBestEffort(ctx, ownerID)
	return nil
}

// Restore возвращает узел из корзины, очищая обе временные метки. Имя,
// родитель и размер остаются прежними; если родителя тем временем не
// стало, узел поднимается в корень.
func (s *TrashService) Restore(ctx context.Context, ownerID string, nodeID uuid.UUID) error {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	if !node.InTrash {
		return fmt.Errorf("%w: node is not in trash", domain.ErrConflict)
	}

	if err := s.nodes.SetTrashState(ctx, nodeID, false, nil, nil); err != nil {
		return err
	}

	if node.ParentID != nil {
		parent, err := s.nodes.GetByID(ctx, *node.ParentID)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && (parent.InTrash || parent.OwnerID != ownerID || !parent.IsFolder)) {
			if err := s.nodes.SetParent(ctx, nodeID, nil); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}

	s.activity.Record(domain.OpRestore, nodeID, ownerID, node.Name)
	s.usage.RefreshBestEffort(ctx, ownerID)
	return nil
}

// ListTrash возвращает содержимое корзины владельца.
func (s *TrashService) ListTrash(ctx context.Context, ownerID string) ([]domain.TrashItem, error) {
	nodes, err := s.nodes.ListTrashed(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	items := make([]domain.TrashItem, 0, len(nodes))
	for _, node := range nodes {
		item := domain.TrashItem{Node: node}
		if node.DeletedAt != nil {
			item.DeletedAt = *node.DeletedAt
		}
		if node.PurgeAt != nil {
			item.PurgeAt = *node.PurgeAt
			if remaining := node.PurgeAt.Sub(now); remaining > 0 {
				item.ExpiresIn = remaining.Round(time.Minute).String()
			} else {
				item.ExpiresIn = "expired"
			}
		}
		items = append(items, item)
	}

	return items, nil
}

// DeletePermanently необратимо удаляет запись корзины. Блоб зачищается
// только после подтверждённого удаления строки: осиротевший блоб лучше
// неудаляемой записи.
func (s *TrashService) DeletePermanently(ctx context.Context, ownerID string, nodeID uuid.UUID) error {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	if !node.InTrash {
		return fmt.Errorf("%w: node is not in trash", domain.ErrConflict)
	}

	if err := s.nodes.Delete(ctx, nodeID); err != nil {
		return err
	}

	s.dropContent(ctx, node)
	s.activity.Record(domain.OpPurge, nodeID, ownerID, node.Name)
	s.usage.RefreshBestEffort(ctx, ownerID)
	return nil
}

// EmptyTrash удаляет всю корзину владельца сразу, не дожидаясь purge_at.
// Квота возвращается одним пересчётом, а не N списаниями.
func (s *TrashService) EmptyTrash(ctx context.Context, ownerID string) error {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	deleted, err := s.nodes.DeleteTrashed(ctx, ownerID)
	if err != nil {
		return err
	}

	for i := range deleted {
		s.dropContent(ctx, &deleted[i])
	}

	s.activity.Record(domain.OpEmptyTrash, uuid.Nil, ownerID, fmt.Sprintf("%d items", len(deleted)))
	s.usage.RefreshBestEffort(ctx, ownerID)
	return nil
}

// PurgeExpired — фоновый проход по записям с истёкшим сроком хранения.
// Состояние каждого узла перечитывается под локом владельца, чтобы не
// затереть конкурентный restore.
func (s *TrashService) PurgeExpired(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := s.nodes.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	byOwner := make(map[string][]domain.Node)
	for _, node := range expired {
		byOwner[node.OwnerID] = append(byOwner[node.OwnerID], node)
	}

	purged := 0
	for ownerID, nodes := range byOwner {
		purged += s.purgeOwnerExpired(ctx, ownerID, nodes, now)
	}

	return purged, nil
}

func (s *TrashService) purgeOwnerExpired(ctx context.Context, ownerID string, candidates []domain.Node, now time.Time) int {
	unlock := s.locks.Lock(ownerID)

	var removed []domain.Node
	for _, candidate := range candidates {
		node, err := s.nodes.GetByID(ctx, candidate.ID)
		if err != nil {
			continue // уже удалён — purge идемпотентен
		}
		// Перепроверка под локом: узел могли восстановить после выборки.
		if !node.InTrash || node.PurgeAt == nil || node.PurgeAt.After(now) {
			continue
		}

		if err := s.nodes.Delete(ctx, node.ID); err != nil {
			log.Printf("[TrashService] warning: failed to purge node %s: %v", node.ID, err)
			continue
		}
		removed = append(removed, *node)
	}
	unlock()

	// Внешние блобы зачищаются после снятия лока: неудача — это warning
	// и повтор вне очереди, а не откат удаления строки.
	for i := range removed {
		s.dropContent(ctx, &removed[i])
		s.activity.Record(domain.OpPurge, removed[i].ID, ownerID, removed[i].Name)
	}

	if len(removed) > 0 {
		s.usage.RefreshBestEffort(ctx, ownerID)
	}

	return len(removed)
}

func (s *TrashService) dropContent(ctx context.Context, node *domain.Node) {
	if node.IsFolder || node.ContentRef == nil {
		return
	}
	if err := s.blob.Delete(ctx, *node.ContentRef); err != nil {
		log.Printf("[TrashService] warning: failed to delete blob %s for node %s: %v",
			*node.ContentRef, node.ID, err)
	}
}

// GetSettings возвращает настройки корзины; без явной записи — дефолт.
func (s *TrashService) GetSettings(ctx context.Context, ownerID string) (*domain.TrashSettings, error) {
	settings, err := s.settings.GetSettings(ctx, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.TrashSettings{
			OwnerID:         ownerID,
			RetentionPeriod: s.defaultRetention.String(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateRetentionPeriod меняет период хранения корзины владельца.
func (s *TrashService) UpdateRetentionPeriod(ctx context.Context, ownerID, period string) error {
	parsed, err := time.ParseDuration(period)
	if err != nil {
		return fmt.Errorf("%w: invalid retention period format: %v", domain.ErrConflict, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("%w: retention period must be positive", domain.ErrConflict)
	}

	return s.settings.UpdateSettings(ctx, &domain.TrashSettings{
		OwnerID:         ownerID,
		RetentionPeriod: period,
	})
}

func (s *TrashService) retentionFor(ctx context.Context, ownerID string) time.Duration {
	settings, err := s.settings.GetSettings(ctx, ownerID)
	if err != nil {
		return s.defaultRetention
	}
	parsed, err := time.ParseDuration(settings.RetentionPeriod)
	if err != nil || parsed <= 0 {
		return s.defaultRetention
	}
	return parsed
}
