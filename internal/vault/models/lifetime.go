package models

import (
	"time"

	id "vaultcore/pkg/domain"
)

// DataSource records how a field entered the vault.
type DataSource string

const (
	SourceTenant       DataSource = "tenant"        // entered by the owning tenant's flow
	SourcePrefill      DataSource = "prefill"       // copied from another tenant's portable data
	SourceLikelyHosted DataSource = "likely_hosted" // collected on a hosted flow the tenant embeds
	SourceDerived      DataSource = "derived"       // computed from another field (e.g. ssn4 from ssn9)
)

// LifetimeStatus is the lifecycle state of a DataLifetime.
type LifetimeStatus string

const (
	StatusSpeculative LifetimeStatus = "speculative"
	StatusPortable    LifetimeStatus = "portable"
	StatusDeactivated LifetimeStatus = "deactivated"
)

// DataLifetime is the versioned existence record for exactly one
// (vault, field-kind) instance.
//
// Transitions only ever move forward: Speculative -> Portable, or either
// state -> Deactivated. A commit/deactivate pair affecting related fields
// shares one seqno so no reader observes a half-applied replacement.
type DataLifetime struct {
	ID            id.LifetimeID
	VaultID       id.VaultID
	ScopedVaultID id.ScopedVaultID
	Kind          DataIdentifier
	Source        DataSource

	// OriginID links a prefilled lifetime back to the lifetime it was copied
	// from, preserving provenance across tenants.
	OriginID *id.LifetimeID

	CreatedSeqno     id.Seqno
	PortablizedSeqno *id.Seqno
	DeactivatedSeqno *id.Seqno

	CreatedAt time.Time
}

// Status derives the lifecycle state from the seqno columns.
func (l DataLifetime) Status() LifetimeStatus {
	switch {
	case l.DeactivatedSeqno != nil:
		return StatusDeactivated
	case l.PortablizedSeqno != nil:
		return StatusPortable
	default:
		return StatusSpeculative
	}
}

// VisibleTo implements the single visibility rule every reader uses: the
// lifetime exists at or before asOf, was not deactivated at or before asOf,
// and is either portable or owned by the reading tenant's scoped vault.
func (l DataLifetime) VisibleTo(readerScopedVault id.ScopedVaultID, asOf id.Seqno) bool {
	if l.CreatedSeqno > asOf {
		return false
	}
	if l.DeactivatedSeqno != nil && *l.DeactivatedSeqno <= asOf {
		return false
	}
	if l.PortablizedSeqno != nil {
		return true
	}
	return l.ScopedVaultID == readerScopedVault
}

// SeqnoPtr is a convenience for building optional seqno columns.
func SeqnoPtr(s id.Seqno) *id.Seqno { return &s }
