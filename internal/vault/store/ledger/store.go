// Package ledger is the lifetime ledger: it allocates seqnos and tracks each
// field's speculative/portable/deactivated state. Every reader goes through
// its single visibility rule; every writer transitions lifetimes only
// forward.
package ledger

import (
	"context"

	id "vaultcore/pkg/domain"
	"vaultcore/internal/vault/models"
)

// Filter selects lifetimes for one vault under the engine's visibility rule.
// Optional predicates are ANDed onto the base vault match.
type Filter struct {
	// VaultID is required.
	VaultID id.VaultID

	// Kinds narrows to specific field kinds when non-empty.
	Kinds []models.DataIdentifier

	// ReaderScopedVault is the scope whose speculative data is visible.
	// Zero means only portable data is returned.
	ReaderScopedVault id.ScopedVaultID

	// AsOf reads a historical version. Zero means latest.
	AsOf id.Seqno
}

// Visible applies the visibility rule to one lifetime. Both store
// implementations and the in-memory view share this predicate.
func (f Filter) Visible(l models.DataLifetime) bool {
	if l.VaultID != f.VaultID {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if l.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.AsOf > 0 {
		return l.VisibleTo(f.ReaderScopedVault, f.AsOf)
	}
	if l.DeactivatedSeqno != nil {
		return false
	}
	if l.PortablizedSeqno != nil {
		return true
	}
	return l.ScopedVaultID == f.ReaderScopedVault
}

// Store is the lifetime ledger contract.
type Store interface {
	// NextSeqno allocates a new monotonic version number. Must be called
	// inside the transaction that will use it.
	NextSeqno(ctx context.Context) (id.Seqno, error)

	// CreateBatch inserts new lifetimes, typically built by a BatchBuilder.
	CreateBatch(ctx context.Context, lifetimes []*models.DataLifetime) error

	Get(ctx context.Context, lifetimeID id.LifetimeID) (*models.DataLifetime, error)
	GetBatch(ctx context.Context, lifetimeIDs []id.LifetimeID) ([]models.DataLifetime, error)

	// ListVisible returns the lifetimes visible under the filter.
	ListVisible(ctx context.Context, f Filter) ([]models.DataLifetime, error)

	// Deactivate marks each lifetime deactivated at seqno. Fails with an
	// invariant violation if any target is already deactivated; nothing is
	// applied in that case.
	Deactivate(ctx context.Context, lifetimeIDs []id.LifetimeID, seqno id.Seqno) error

	// CommitForTenant marks each lifetime portable at seqno. Fails with an
	// invariant violation if any target is not speculative or is not owned
	// by scopedVaultID; nothing is applied in that case.
	CommitForTenant(ctx context.Context, lifetimeIDs []id.LifetimeID, scopedVaultID id.ScopedVaultID, seqno id.Seqno) error
}
