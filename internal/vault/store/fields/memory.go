package fields

import (
	"context"
	"sync"

	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
	"vaultcore/pkg/platform/sentinel"
)

// InMemory is the map-backed value store used by unit tests and local wiring.
type InMemory struct {
	mu     sync.RWMutex
	values map[id.LifetimeID]models.Value
}

// NewInMemory builds an empty in-memory value store.
func NewInMemory() *InMemory {
	return &InMemory{values: make(map[id.LifetimeID]models.Value)}
}

func (s *InMemory) CreateBatch(_ context.Context, values []*models.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		if _, ok := s.values[v.LifetimeID]; ok {
			return sentinel.ErrConflict
		}
	}
	for _, v := range values {
		s.values[v.LifetimeID] = *v
	}
	return nil
}

func (s *InMemory) GetByLifetimes(_ context.Context, lifetimeIDs []id.LifetimeID) (map[id.LifetimeID]*models.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.LifetimeID]*models.Value, len(lifetimeIDs))
	for _, lid := range lifetimeIDs {
		if v, ok := s.values[lid]; ok {
			out[lid] = &v
		}
	}
	return out, nil
}
