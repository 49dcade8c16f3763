package vaults

import (
	"context"
	"sync"

	id "vaultcore/pkg/domain"
	"vaultcore/internal/vault/models"
	"vaultcore/pkg/platform/sentinel"
)

// InMemory is the map-backed Store used by unit tests and local wiring.
// All methods are safe for concurrent use.
type InMemory struct {
	mu     sync.RWMutex
	vaults map[id.VaultID]models.Vault
	scoped map[id.ScopedVaultID]models.ScopedVault
}

// NewInMemory builds an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		vaults: make(map[id.VaultID]models.Vault),
		scoped: make(map[id.ScopedVaultID]models.ScopedVault),
	}
}

func (s *InMemory) CreateVault(_ context.Context, v *models.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vaults[v.ID]; ok {
		return sentinel.ErrConflict
	}
	s.vaults[v.ID] = *v
	return nil
}

func (s *InMemory) GetVault(_ context.Context, vaultID id.VaultID) (*models.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vaults[vaultID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &v, nil
}

// LockVault verifies existence only: the in-memory store is internally
// synchronized, so the row-lock semantics of the SQL store reduce to a
// NotFound check here.
func (s *InMemory) LockVault(_ context.Context, vaultID id.VaultID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.vaults[vaultID]; !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *InMemory) CreateScopedVault(_ context.Context, sv *models.ScopedVault) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vaults[sv.VaultID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, existing := range s.scoped {
		if existing.ExternalID == sv.ExternalID {
			return sentinel.ErrConflict
		}
		if existing.VaultID == sv.VaultID && existing.TenantID == sv.TenantID &&
			existing.SandboxInstance == sv.SandboxInstance {
			return sentinel.ErrConflict
		}
	}
	s.scoped[sv.ID] = *sv
	return nil
}

func (s *InMemory) GetScopedVault(_ context.Context, scopedVaultID id.ScopedVaultID) (*models.ScopedVault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv, ok := s.scoped[scopedVaultID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &sv, nil
}

func (s *InMemory) FindScopedVault(_ context.Context, vaultID id.VaultID, tenantID id.TenantID) (*models.ScopedVault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sv := range s.scoped {
		if sv.VaultID == vaultID && sv.TenantID == tenantID && sv.IsActive {
			out := sv
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ResolveExternalID(_ context.Context, externalID string) (*models.ScopedVault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sv := range s.scoped {
		if sv.ExternalID == externalID {
			out := sv
			return &out, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListScopedVaultsByVaults(_ context.Context, vaultIDs []id.VaultID) ([]models.ScopedVault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[id.VaultID]struct{}, len(vaultIDs))
	for _, v := range vaultIDs {
		want[v] = struct{}{}
	}
	var out []models.ScopedVault
	for _, sv := range s.scoped {
		if _, ok := want[sv.VaultID]; ok && sv.IsActive {
			out = append(out, sv)
		}
	}
	return out, nil
}

func (s *InMemory) DeactivateScopedVault(_ context.Context, scopedVaultID id.ScopedVaultID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.scoped[scopedVaultID]
	if !ok {
		return sentinel.ErrNotFound
	}
	sv.IsActive = false
	s.scoped[scopedVaultID] = sv
	return nil
}
