// Package keystore persists the single credential record of the application.
package keystore

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/restaurant-reviews/internal/domain"
)

// Store keeps one account. Load returns nil and no error when nothing has
// been saved yet.
type Store interface {
	Save(ctx context.Context, account domain.Account) error
	Load(ctx context.Context) (*domain.Account, error)
	Delete(ctx context.Context) error
}

// MemoryStore is a Store that lives in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	account *domain.Account
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, account domain.Account) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAccount, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = &account
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return nil, nil
	}
	account := *s.account
	return &account, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = nil
	return nil
}

// LoadAuthorized loads the stored account and reports whether it is still
// usable. A missing account is not an error.
func LoadAuthorized(ctx context.Context, store Store) (*domain.Account, bool, error) {
	account, err := store.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	if account == nil {
		return nil, false, nil
	}
	return account, account.IsAuthorized(), nil
}
