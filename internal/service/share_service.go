package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"nimbusdrive/internal/domain"
)

// ShareService выдаёт и снимает разрешения и считает эффективный доступ.
// Делиться можно только собственными узлами; пока узел в корзине, выдачи
// сохраняются, но доступ по ним приостановлен.
type ShareService struct {
	shares   ShareStore
	nodes    NodeStore
	activity *ActivitySink
}

func NewShareService(shares ShareStore, nodes NodeStore, activity *ActivitySink) *ShareService {
	return &ShareService{
		shares:   shares,
		nodes:    nodes,
		activity: activity,
	}
}

// Grant выдаёт грантополучателю доступ к узлу. Повторная выдача тому же
// пользователю — ошибка: смена уровня делается через revoke + grant.
func (s *ShareService) Grant(ctx context.Context, ownerID string, nodeID uuid.UUID, granteeID string, access domain.AccessType) (*domain.Share, error) {
	if !domain.ValidAccessType(access) {
		return nil, fmt.Errorf("%w: unknown access type %q", domain.ErrConflict, access)
	}
	if granteeID == "" {
		return nil, fmt.Errorf("%w: grantee is required", domain.ErrConflict)
	}
	if granteeID == ownerID {
		return nil, domain.ErrSelfShareForbidden
	}

	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != ownerID {
		return nil, domain.ErrAccessDenied
	}

	share := &domain.Share{
		ID:         uuid.New(),
		NodeID:     nodeID,
		OwnerID:    ownerID,
		GranteeID:  granteeID,
		AccessType: access,
	}
	if err := s.shares.Create(ctx, share); err != nil {
		return nil, err
	}

	s.activity.Record(domain.OpShareGrant, nodeID, ownerID, fmt.Sprintf("%s:%s", granteeID, access))
	return share, nil
}

// Revoke снимает выдачу. NotFound, если её не было.
func (s *ShareService) Revoke(ctx context.Context, ownerID string, nodeID uuid.UUID, granteeID string) error {
	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if node.OwnerID != ownerID {
		return domain.ErrAccessDenied
	}

	if err := s.shares.Delete(ctx, nodeID, granteeID); err != nil {
		return err
	}

	s.activity.Record(domain.OpShareRevoke, nodeID, ownerID, granteeID)
	return nil
}

// EffectivePermission считает уровень доступа пользователя к узлу.
// Владелец всегда выигрывает; для остальных узел в корзине даёт None
// независимо от выдач.
func (s *ShareService) EffectivePermission(ctx context.Context, nodeID uuid.UUID, userID string) (domain.PermissionLevel, error) {
	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return domain.PermissionNone, err
	}

	return s.effectiveFor(ctx, node, userID)
}

func (s *ShareService) effectiveFor(ctx context.Context, node *domain.Node, userID string) (domain.PermissionLevel, error) {
	if node.OwnerID == userID {
		return domain.PermissionOwner, nil
	}
	if node.InTrash {
		return domain.PermissionNone, nil
	}

	share, err := s.shares.GetByNodeAndGrantee(ctx, node.ID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PermissionNone, nil
	}
	if err != nil {
		return domain.PermissionNone, err
	}

	switch share.AccessType {
	case domain.AccessTypeEdit:
		return domain.PermissionEdit, nil
	case domain.AccessTypeView:
		return domain.PermissionView, nil
	default:
		return domain.PermissionNone, nil
	}
}

// AccessibleTo собирает выборку "shared with me": узлы, к которым у
// пользователя есть ненулевой доступ. Узлы в корзине пропускаются.
func (s *ShareService) AccessibleTo(ctx context.Context, userID string) ([]domain.SharedNode, error) {
	shares, err := s.shares.ListByGrantee(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.SharedNode, 0, len(shares))
	for _, share := range shares {
		node, err := s.nodes.GetByID(ctx, share.NodeID)
		if errors.Is(err, domain.ErrNotFound) {
			continue // узел уже вычищен, выдача осталась висеть
		}
		if err != nil {
			return nil, err
		}
		if node.InTrash {
			continue
		}

		result = append(result, domain.SharedNode{
			Node:       *node,
			AccessType: share.AccessType,
			GrantedAt:  share.GrantedAt,
		})
	}

	return result, nil
}

// ListGrants возвращает выдачи узла его владельцу.
func (s *ShareService) ListGrants(ctx context.Context, ownerID string, nodeID uuid.UUID) ([]domain.Share, error) {
	node, err := s.nodes.GetByID(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if node.OwnerID != ownerID {
		return nil, domain.ErrAccessDenied
	}

	return s.shares.ListByNode(ctx, nodeID)
}
