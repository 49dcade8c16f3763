// Package vaults persists Vault and ScopedVault rows and owns the exclusive
// row lock every mutation path must take first.
package vaults

import (
	"context"

	id "vaultcore/pkg/domain"
	"vaultcore/internal/vault/models"
)

// Store is the vault/scoped-vault persistence contract.
type Store interface {
	CreateVault(ctx context.Context, v *models.Vault) error
	GetVault(ctx context.Context, vaultID id.VaultID) (*models.Vault, error)

	// LockVault acquires the exclusive row lock on the vault. Must be called
	// inside the transaction that will mutate, before any read used to
	// decide the mutation.
	LockVault(ctx context.Context, vaultID id.VaultID) error

	CreateScopedVault(ctx context.Context, sv *models.ScopedVault) error
	GetScopedVault(ctx context.Context, scopedVaultID id.ScopedVaultID) (*models.ScopedVault, error)

	// FindScopedVault returns the active binding between a vault and a
	// tenant, if one exists.
	FindScopedVault(ctx context.Context, vaultID id.VaultID, tenantID id.TenantID) (*models.ScopedVault, error)

	// ResolveExternalID maps the externally exposed opaque token to its
	// scoped vault.
	ResolveExternalID(ctx context.Context, externalID string) (*models.ScopedVault, error)

	// ListScopedVaultsByVaults returns every scoped vault bound to any of
	// the given vaults. Used by dedup to partition matches by tenant.
	ListScopedVaultsByVaults(ctx context.Context, vaultIDs []id.VaultID) ([]models.ScopedVault, error)

	// DeactivateScopedVault soft-deactivates a binding. Test cleanup only;
	// bindings are never deleted.
	DeactivateScopedVault(ctx context.Context, scopedVaultID id.ScopedVaultID) error
}
