package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// kvStoreInMemory — хранилище клиентского состояния в памяти процесса.
// Используется как session-scoped хранилище и в тестах.
type kvStoreInMemory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewKVStore возвращает пустое in-memory хранилище.
func NewKVStore() domain.KVStore {
	return &kvStoreInMemory{
		items: make(map[string]string),
	}
}

// Get возвращает значение или ErrKeyNotFound.
func (s *kvStoreInMemory) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

// Set сохраняет значение, перезаписывая предыдущее.
func (s *kvStoreInMemory) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = value
	return nil
}

// Delete удаляет ключ. Отсутствие ключа не ошибка.
func (s *kvStoreInMemory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

var _ domain.KVStore = (*kvStoreInMemory)(nil)
