package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccessType string

const (
	AccessTypeView AccessType = "view"
	AccessTypeEdit AccessType = "edit"
)

// PermissionLevel — эффективный уровень доступа пользователя к узлу.
type PermissionLevel string

const (
	PermissionOwner PermissionLevel = "owner"
	PermissionEdit  PermissionLevel = "edit"
	PermissionView  PermissionLevel = "view"
	PermissionNone  PermissionLevel = "none"
)

// Share — выданное владельцем разрешение на узел. Грантополучатель
// уникален в пределах узла; смена уровня доступа делается через
// revoke + повторный grant.
type Share struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	NodeID     uuid.UUID  `json:"node_id" db:"node_id"`
	OwnerID    string     `json:"owner_id" db:"owner_id"`
	GranteeID  string     `json:"grantee_id" db:"grantee_id"`
	AccessType AccessType `json:"access_type" db:"access_type"`
	GrantedAt  time.Time  `json:"granted_at" db:"granted_at"`
}

// SharedNode — узел вместе с уровнем доступа, под которым он виден
// грантополучателю (выборка "shared with me").
type SharedNode struct {
	Node       Node       `json:"node"`
	AccessType AccessType `json:"access_type"`
	GrantedAt  time.Time  `json:"granted_at"`
}

// ValidAccessType проверяет уровень доступа, пришедший из запроса.
func ValidAccessType(t AccessType) bool {
	return t == AccessTypeView || t == AccessTypeEdit
}
