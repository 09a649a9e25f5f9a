package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

// Глубже этого парентные цепочки считаются повреждёнными.
const maxAncestryDepth = 1024

const maxCopyNameAttempts = 100

// TreeService поддерживает целостность дерева под конкурентными
// мутациями: валидация родителя, занятость имени, защита от циклов.
// Структурные операции сериализуются в пределах владельца через UserLocks;
// проверки и запись выполняются под одним захватом, так что операция
// атомарна с точки зрения вызывающего.
type TreeService struct {
	nodes    NodeStore
	quota    *StorageQuotaService
	usage    *UsageService
	blob     BlobStorage
	locks    *UserLocks
	activity *ActivitySink
}

func NewTreeService(
	nodes NodeStore,
	quota *StorageQuotaService,
	usage *UsageService,
	blob BlobStorage,
	locks *UserLocks,
	activity *ActivitySink,
) *TreeService {
	return &TreeService{
		nodes:    nodes,
		quota:    quota,
		usage:    usage,
		blob:     blob,
		locks:    locks,
		activity: activity,
	}
}

// CreateFolder создаёт папку под указанным родителем (nil — корень).
func (s *TreeService) CreateFolder(ctx context.Context, ownerID, name string, parentID *uuid.UUID) (*domain.Node, error) {
	name, ok := domain.ValidName(name)
	if !ok {
		return nil, fmt.Errorf("%w: folder name is empty", domain.ErrConflict)
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	if _, err := s.resolveParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, ownerID, parentID, name, true); err != nil {
		return nil, err
	}

	node := &domain.Node{
		ID:       uuid.New(),
		OwnerID:  ownerID,
		Name:     name,
		IsFolder: true,
		ParentID: parentID,
		MIMEType: domain.FolderMIMEType,
	}
	if err := s.nodes.Create(ctx, node); err != nil {
		return nil, err
	}

	s.activity.Record(domain.OpCreateFolder, node.ID, ownerID, name)
	return node, nil
}

// UploadFile кладёт содержимое во внешнее байтовое хранилище и
// регистрирует файл в дереве. Байты уходят в хранилище до захвата
// пользовательского лока: под локом не выполняется внешний I/O.
func (s *TreeService) UploadFile(ctx context.Context, ownerID, name string, parentID *uuid.UUID, mimeType string, data []byte) (*domain.Node, error) {
	name, ok := domain.ValidName(name)
	if !ok {
		return nil, fmt.Errorf("%w: file name is empty", domain.ErrConflict)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	contentRef, err := s.blob.Store(ctx, data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store content: %w", err)
	}

	node, err := s.RegisterFile(ctx, domain.NewFileRequest{
		OwnerID:    ownerID,
		Name:       name,
		ParentID:   parentID,
		MIMEType:   mimeType,
		SizeBytes:  int64(len(data)),
		ContentRef: contentRef,
	})
	if err != nil {
		// Регистрация не прошла — блоб осиротел, подчищаем best-effort.
		if delErr := s.blob.Delete(ctx, contentRef); delErr != nil {
			log.Printf("[TreeService] warning: failed to delete orphaned blob %s: %v", contentRef, delErr)
		}
		return nil, err
	}

	s.usage.RefreshBestEffort(ctx, ownerID)
	return node, nil
}

// RegisterFile добавляет в дерево файл с уже сохранённым содержимым.
// Резервирование квоты и вставка идут под локом владельца; при сбое
// вставки резерв возвращается.
func (s *TreeService) RegisterFile(ctx context.Context, req domain.NewFileRequest) (*domain.Node, error) {
	name, ok := domain.ValidName(req.Name)
	if !ok {
		return nil, fmt.Errorf("%w: file name is empty", domain.ErrConflict)
	}
	if req.SizeBytes < 0 {
		return nil, fmt.Errorf("%w: negative file size", domain.ErrConflict)
	}

	unlock := s.locks.Lock(req.OwnerID)
	defer unlock()

	if _, err := s.resolveParent(ctx, req.OwnerID, req.ParentID); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, req.OwnerID, req.ParentID, name, false); err != nil {
		return nil, err
	}

	if err := s.quota.CheckAndReserve(ctx, req.OwnerID, req.SizeBytes); err != nil {
		return nil, err
	}

	contentRef := req.ContentRef
	node := &domain.Node{
		ID:         uuid.New(),
		OwnerID:    req.OwnerID,
		Name:       name,
		ParentID:   req.ParentID,
		MIMEType:   req.MIMEType,
		SizeBytes:  req.SizeBytes,
		ContentRef: &contentRef,
	}
	if err := s.nodes.Create(ctx, node); err != nil {
		if relErr := s.quota.Release(ctx, req.OwnerID, req.SizeBytes); relErr != nil {
			log.Printf("[TreeService] warning: failed to release reservation for %s: %v", req.OwnerID, relErr)
		}
		return nil, err
	}

	s.activity.Record(domain.OpUploadFile, node.ID, req.OwnerID, name)
	return node, nil
}

// Rename меняет отображаемое имя узла.
func (s *TreeService) Rename(ctx context.Context, ownerID string, nodeID uuid.UUID, newName string) (*domain.Node, error) {
	newName, ok := domain.ValidName(newName)
	if !ok {
		return nil, fmt.Errorf("%w: name is empty", domain.ErrConflict)
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	node, err := s.loadOwned(ctx, ownerID, nodeID)
	if err != nil {
		return nil, err
	}

	if newName != node.Name {
		if err := s.checkNameFree(ctx, ownerID, node.ParentID, newName, node.IsFolder); err != nil {
			return nil, err
		}
		if err := s.nodes.Rename(ctx, nodeID, newName); err != nil {
			return nil, err
		}
	}

	s.activity.Record(domain.OpRename, nodeID, ownerID, fmt.Sprintf("%s -> %s", node.Name, newName))

	node.Name = newName
	return node, nil
}

// Move переподвешивает узел под новый родитель (nil — корень). Проверка
// занятости имени и проверка цикла выполняются до единственной записи,
// так что частичное применение невозможно.
func (s *TreeService) Move(ctx context.Context, ownerID string, nodeID uuid.UUID, targetParentID *uuid.UUID) (*domain.Node, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	node, err := s.loadOwned(ctx, ownerID, nodeID)
	if err != nil {
		return nil, err
	}

	if targetParentID != nil && *targetParentID == nodeID {
		return nil, fmt.Errorf("%w: cannot move node onto itself", domain.ErrInvalidMove)
	}

	// Перенос в текущего родителя — no-op, а не конфликт узла с самим собой.
	if sameParentID(node.ParentID, targetParentID) {
		return node, nil
	}

	if _, err := s.resolveParent(ctx, ownerID, targetParentID); err != nil {
		return nil, err
	}

	// Перенос папки в собственного потомка замкнул бы цикл: идём от
	// целевого родителя вверх до корня и убеждаемся, что узла на этом
	// пути нет.
	if targetParentID != nil {
		onPath, err := s.isOnAncestorPath(ctx, *targetParentID, nodeID)
		if err != nil {
			return nil, err
		}
		if onPath {
			return nil, fmt.Errorf("%w: target folder is a descendant of the node", domain.ErrCyclicMove)
		}
	}

	if err := s.checkNameFree(ctx, ownerID, targetParentID, node.Name, node.IsFolder); err != nil {
		return nil, err
	}

	if err := s.nodes.SetParent(ctx, nodeID, targetParentID); err != nil {
		return nil, err
	}

	s.activity.Record(domain.OpMove, nodeID, ownerID, node.Name)

	node.ParentID = targetParentID
	return node, nil
}

// Copy делает неглубокую копию: файл получает новый узел с той же ссылкой
// на содержимое (байты не дублируются), папка копируется без потомков.
func (s *TreeService) Copy(ctx context.Context, ownerID string, nodeID uuid.UUID, targetParentID *uuid.UUID) (*domain.Node, error) {
	unlock := s.locks.Lock(ownerID)
	defer unlock()

	node, err := s.loadOwned(ctx, ownerID, nodeID)
	if err != nil {
		return nil, err
	}

	if _, err := s.resolveParent(ctx, ownerID, targetParentID); err != nil {
		return nil, err
	}

	name, err := s.deriveCopyName(ctx, ownerID, targetParentID, node.Name, node.IsFolder)
	if err != nil {
		return nil, err
	}

	if !node.IsFolder {
		if err := s.quota.CheckAndReserve(ctx, ownerID, node.SizeBytes); err != nil {
			return nil, err
		}
	}

	copied := &domain.Node{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       name,
		IsFolder:   node.IsFolder,
		ParentID:   targetParentID,
		MIMEType:   node.MIMEType,
		SizeBytes:  node.SizeBytes,
		ContentRef: node.ContentRef,
	}
	if copied.IsFolder {
		copied.SizeBytes = 0
		copied.ContentRef = nil
	}

	if err := s.nodes.Create(ctx, copied); err != nil {
		if !node.IsFolder {
			if relErr := s.quota.Release(ctx, ownerID, node.SizeBytes); relErr != nil {
				log.Printf("[TreeService] warning: failed to release reservation for %s: %v", ownerID, relErr)
			}
		}
		return nil, err
	}

	s.activity.Record(domain.OpCopy, copied.ID, ownerID, name)
	s.usage.RefreshBestEffort(ctx, ownerID)
	return copied, nil
}

// ListChildren возвращает не-удалённых детей папки (nil — корень) с
// фильтрами по типу и подстроке имени. Читает без лока: листингу
// допустимо видеть хвост чужой мутации.
func (s *TreeService) ListChildren(ctx context.Context, ownerID string, parentID *uuid.UUID, filter domain.ChildFilter) ([]domain.Node, error) {
	if _, err := s.resolveParent(ctx, ownerID, parentID); err != nil {
		return nil, err
	}

	return s.nodes.ListChildren(ctx, ownerID, parentID, filter)
}

func (s *TreeService) GetNode(ctx context.Context, nodeID uuid.UUID) (*domain.Node, error) {
	return s.nodes.GetByID(ctx, nodeID)
}

// OpenContent открывает содержимое файла во внешнем хранилище. Проверку
// доступа делает вызывающий слой через ShareService.
func (s *TreeService) OpenContent(ctx context.Context, node *domain.Node) (io.ReadCloser, error) {
	if node.IsFolder || node.ContentRef == nil {
		return nil, fmt.Errorf("%w: node has no content", domain.ErrConflict)
	}
	return s.blob.Open(ctx, *node.ContentRef)
}

// loadOwned возвращает узел, если он существует, принадлежит вызывающему
// и не лежит в корзине; иначе NotFound — для операций над деревом такие
// узлы невидимы.
func (s *TreeService) loadOwned(ctx context.Context, ownerID string, nodeID uuid.UUID) (*domain.Node, error) {
	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != ownerID || node.InTrash {
		return nil, domain.ErrNotFound
	}
	return node, nil
}

// resolveParent проверяет, что родитель — существующая, не-удалённая
// папка того же владельца. nil означает корень и валиден всегда.
func (s *TreeService) resolveParent(ctx context.Context, ownerID string, parentID *uuid.UUID) (*domain.Node, error) {
	if parentID == nil {
		return nil, nil
	}

	parent, err := s.nodes.GetByID(ctx, *parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: parent does not exist", domain.ErrInvalidParent)
		}
		return nil, err
	}
	if parent.OwnerID != ownerID || !parent.IsFolder || parent.InTrash {
		return nil, fmt.Errorf("%w: parent is not an owned active folder", domain.ErrInvalidParent)
	}

	return parent, nil
}

func (s *TreeService) checkNameFree(ctx context.Context, ownerID string, parentID *uuid.UUID, name string, isFolder bool) error {
	exists, err := s.nodes.SiblingExists(ctx, ownerID, parentID, name, isFolder)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q already exists here", domain.ErrDuplicateName, name)
	}
	return nil
}

// deriveCopyName подбирает свободное производное имя: "x (copy)",
// дальше "x (copy 2)" и так далее. Каждый кандидат, включая последний,
// проверяется на занятость.
func (s *TreeService) deriveCopyName(ctx context.Context, ownerID string, parentID *uuid.UUID, base string, isFolder bool) (string, error) {
	name := base + " (copy)"
	for attempt := 2; ; attempt++ {
		exists, err := s.nodes.SiblingExists(ctx, ownerID, parentID, name, isFolder)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
		if attempt > maxCopyNameAttempts {
			return "", fmt.Errorf("%w: cannot derive a free copy name for %q", domain.ErrConflict, base)
		}
		name = fmt.Sprintf("%s (copy %d)", base, attempt)
	}
}

func sameParentID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// isOnAncestorPath идёт по парентным ссылкам от startID вверх и отвечает,
// встречается ли candidateID на пути к корню.
func (s *TreeService) isOnAncestorPath(ctx context.Context, startID, candidateID uuid.UUID) (bool, error) {
	currentID := startID
	for depth := 0; depth < maxAncestryDepth; depth++ {
		if currentID == candidateID {
			return true, nil
		}

		node, err := s.nodes.GetByID(ctx, currentID)
		if err != nil {
			return false, err
		}
		if node.ParentID == nil {
			return false, nil
		}
		currentID = *node.ParentID
	}

	return false, fmt.Errorf("%w: ancestry chain exceeds %d levels", domain.ErrConflict, maxAncestryDepth)
}
