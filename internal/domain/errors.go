package domain

import "errors"

// Типизированные исходы операций ядра. Слой хендлеров сопоставляет их
// HTTP-статусам через errors.Is; сервисы оборачивают их контекстом
// через fmt.Errorf("...: %w", err).
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidParent      = errors.New("invalid parent")
	ErrDuplicateName      = errors.New("duplicate name")
	ErrCyclicMove         = errors.New("cyclic move")
	ErrInvalidMove        = errors.New("invalid move")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrAlreadyShared      = errors.New("already shared")
	ErrSelfShareForbidden = errors.New("self share forbidden")
	ErrAccessDenied       = errors.New("access denied")
	ErrConflict           = errors.New("conflict")

	// ErrUnavailable помечает временные сбои инфраструктуры (недоступная
	// база, хранилище). Такие ошибки безопасно повторять; структурные
	// нарушения выше — нет.
	ErrUnavailable = errors.New("storage unavailable")
)
