package domain

import "time"

// TrashSettings — пользовательские настройки корзины. Период хранения
// задаётся строкой в формате time.ParseDuration; пустая запись означает
// дефолтный период из конфигурации.
type TrashSettings struct {
	ID              int64     `json:"id" db:"id"`
	OwnerID         string    `json:"owner_id" db:"owner_id"`
	RetentionPeriod string    `json:"retention_period" db:"retention_period"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TrashItem — элемент корзины для выдачи клиенту.
type TrashItem struct {
	Node      Node      `json:"node"`
	DeletedAt time.Time `json:"deleted_at"`
	PurgeAt   time.Time `json:"purge_at"`
	ExpiresIn string    `json:"expires_in"`
}
