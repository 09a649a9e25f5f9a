package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FolderMIMEType is the sentinel content type stored for folder nodes.
const FolderMIMEType = "folder"

// Node представляет файл или папку в дереве пользователя.
// Папки всегда имеют SizeBytes = 0 и ContentRef = nil; их "вес" считается
// по потомкам в момент запроса, а не хранится на самой папке.
type Node struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	OwnerID    string     `json:"owner_id" db:"owner_id"`
	Name       string     `json:"name" db:"name"`
	IsFolder   bool       `json:"is_folder" db:"is_folder"`
	ParentID   *uuid.UUID `json:"parent_id,omitempty" db:"parent_id"`
	MIMEType   string     `json:"mime_type" db:"mime_type"`
	SizeBytes  int64      `json:"size_bytes" db:"size_bytes"`
	ContentRef *string    `json:"content_ref,omitempty" db:"content_ref"`
	InTrash    bool       `json:"in_trash" db:"in_trash"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	PurgeAt    *time.Time `json:"purge_at,omitempty" db:"purge_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// ValidName возвращает имя без краевых пробелов и признак его пригодности.
func ValidName(name string) (string, bool) {
	trimmed := strings.TrimSpace(name)
	return trimmed, trimmed != ""
}

// ChildSortField задаёт поле сортировки для листинга содержимого папки.
type ChildSortField string

const (
	SortByName      ChildSortField = "name"
	SortByCreatedAt ChildSortField = "created_at"
	SortByUpdatedAt ChildSortField = "updated_at"
)

// ChildFilter описывает фильтры и сортировку листинга. Пустые значения
// означают "без фильтра"; без явной сортировки папки идут раньше файлов.
type ChildFilter struct {
	MIMEType     string
	NameContains string
	SortBy       ChildSortField
	SortDesc     bool
}

// NewFileRequest содержит параметры регистрации файла в дереве.
type NewFileRequest struct {
	OwnerID    string
	Name       string
	ParentID   *uuid.UUID
	MIMEType   string
	SizeBytes  int64
	ContentRef string
}
