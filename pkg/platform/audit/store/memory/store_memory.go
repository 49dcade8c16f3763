package memory

import (
	"context"
	"sync"

	id "vaultcore/pkg/domain"
	audit "vaultcore/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.ScopedVaultID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.ScopedVaultID][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.ScopedVaultID][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ScopedVaultID] = append(s.events[event.ScopedVaultID], event)
	return nil
}

func (s *InMemoryStore) ListByScopedVault(_ context.Context, scopedVaultID id.ScopedVaultID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[scopedVaultID]...), nil
}

// ListAll returns all audit events across all scoped vaults.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	return all, nil
}
