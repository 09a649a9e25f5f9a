package domain

import (
	"time"

	"github.com/google/uuid"
)

type OperationKind string

const (
	OpCreateFolder OperationKind = "create_folder"
	OpUploadFile   OperationKind = "upload_file"
	OpRename       OperationKind = "rename"
	OpMove         OperationKind = "move"
	OpCopy         OperationKind = "copy"
	OpTrash        OperationKind = "trash"
	OpRestore      OperationKind = "restore"
	OpPurge        OperationKind = "purge"
	OpEmptyTrash   OperationKind = "empty_trash"
	OpShareGrant   OperationKind = "share_grant"
	OpShareRevoke  OperationKind = "share_revoke"
)

// ActivityEvent — запись ленты активности. Публикуется после успешного
// коммита мутации; доставка best-effort и никогда не влияет на исход
// самой операции.
type ActivityEvent struct {
	ID        int64         `json:"id" db:"id"`
	Operation OperationKind `json:"operation" db:"operation"`
	NodeID    uuid.UUID     `json:"node_id" db:"node_id"`
	OwnerID   string        `json:"owner_id" db:"owner_id"`
	Detail    string        `json:"detail" db:"detail"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
