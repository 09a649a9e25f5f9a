package service

import "sync"

// UserLocks сериализует структурные мутации дерева в пределах одного
// пользователя: проверки цикла и занятости имени — это read-then-write
// последовательности, которым нельзя перемежаться с другой мутацией того
// же дерева. Пользователи между собой не контендуют.
type UserLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock захватывает мьютекс владельца и возвращает функцию освобождения.
func (l *UserLocks) Lock(ownerID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[ownerID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
