package view

import (
	"context"
	"fmt"

	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/store/fields"
	"vaultcore/internal/vault/store/ledger"
	"vaultcore/internal/vault/store/vaults"
	id "vaultcore/pkg/domain"
)

// Builder assembles views from the ledger and the value store.
type Builder struct {
	vaults vaults.Store
	ledger ledger.Store
	fields fields.Store
}

// NewBuilder wires a view builder over the given stores.
func NewBuilder(vaultStore vaults.Store, ledgerStore ledger.Store, fieldStore fields.Store) *Builder {
	return &Builder{vaults: vaultStore, ledger: ledgerStore, fields: fieldStore}
}

// Build constructs a read-only view for the scope. asOf zero reads the
// latest version. Takes no locks; safe for concurrent use. A missing vault
// or scoped vault is NotFound; an empty projection is valid.
func (b *Builder) Build(ctx context.Context, scopedVaultID id.ScopedVaultID, asOf id.Seqno) (*View, error) {
	return b.build(ctx, scopedVaultID, asOf, false)
}

// BuildLocked takes an exclusive row lock on the vault before reading, so
// the projection cannot shift under the mutation it will drive. Must run
// inside the transaction that performs the mutation.
func (b *Builder) BuildLocked(ctx context.Context, scopedVaultID id.ScopedVaultID) (*View, error) {
	return b.build(ctx, scopedVaultID, 0, true)
}

func (b *Builder) build(ctx context.Context, scopedVaultID id.ScopedVaultID, asOf id.Seqno, locked bool) (*View, error) {
	sv, err := b.vaults.GetScopedVault(ctx, scopedVaultID)
	if err != nil {
		return nil, fmt.Errorf("get scoped vault: %w", err)
	}
	if locked {
		if err := b.vaults.LockVault(ctx, sv.VaultID); err != nil {
			return nil, fmt.Errorf("lock vault: %w", err)
		}
	}
	vault, err := b.vaults.GetVault(ctx, sv.VaultID)
	if err != nil {
		return nil, fmt.Errorf("get vault: %w", err)
	}

	lifetimes, err := b.ledger.ListVisible(ctx, ledger.Filter{
		VaultID:           sv.VaultID,
		ReaderScopedVault: sv.ID,
		AsOf:              asOf,
	})
	if err != nil {
		return nil, fmt.Errorf("list lifetimes: %w", err)
	}

	v := &View{
		vault:       *vault,
		scopedVault: *sv,
		asOf:        asOf,
		speculative: make(map[models.DataIdentifier]Entry),
		portable:    make(map[models.DataIdentifier]Entry),
		locked:      locked,
	}

	lifetimeIDs := make([]id.LifetimeID, len(lifetimes))
	for i, l := range lifetimes {
		lifetimeIDs[i] = l.ID
	}
	values, err := b.fields.GetByLifetimes(ctx, lifetimeIDs)
	if err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}

	for _, l := range lifetimes {
		e := Entry{Lifetime: l, Value: values[l.ID]}
		if l.PortablizedSeqno != nil {
			// Keep the newest when history holds more than one portable row
			// for a kind at the asOf version.
			if cur, ok := v.portable[l.Kind]; !ok || l.CreatedSeqno > cur.Lifetime.CreatedSeqno {
				v.portable[l.Kind] = e
			}
			continue
		}
		if cur, ok := v.speculative[l.Kind]; !ok || l.CreatedSeqno > cur.Lifetime.CreatedSeqno {
			v.speculative[l.Kind] = e
		}
	}
	return v, nil
}
