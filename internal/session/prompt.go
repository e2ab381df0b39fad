package session

import (
	"context"
	"errors"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// JoinPrompt решает, показывать ли гостю приглашение зарегистрироваться.
// Флаг хранится в session-scoped хранилище, поэтому приглашение показывается раз за сессию.
type JoinPrompt struct {
	scoped domain.KVStore
	store  *Store
}

// NewJoinPrompt создаёт JoinPrompt.
func NewJoinPrompt(scoped domain.KVStore, store *Store) *JoinPrompt {
	return &JoinPrompt{scoped: scoped, store: store}
}

// Due возвращает true, если пользователь не вошёл и приглашение ещё не показывалось; флаг сразу выставляется.
func (p *JoinPrompt) Due(ctx context.Context) bool {
	if p.store.Authenticated() {
		return false
	}
	if _, err := p.scoped.Get(ctx, domain.KeyJoinPromptShown); !errors.Is(err, domain.ErrKeyNotFound) {
		return false
	}
	_ = p.scoped.Set(ctx, domain.KeyJoinPromptShown, "true")
	return true
}
