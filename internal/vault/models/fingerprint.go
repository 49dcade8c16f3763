package models

import (
	"bytes"
	"time"

	id "vaultcore/pkg/domain"
)

// FingerprintScope controls which salt a fingerprint was computed under and
// therefore who can match against it.
type FingerprintScope string

const (
	// ScopePlaintext: unsalted hash of non-private data; matchable by anyone.
	ScopePlaintext FingerprintScope = "plaintext"

	// ScopeTenant: salted per tenant; matches only within that tenant.
	ScopeTenant FingerprintScope = "tenant"

	// ScopeGlobal: salted with the platform-wide salt; powers cross-tenant
	// dedup without exposing plaintext.
	ScopeGlobal FingerprintScope = "global"
)

func (s FingerprintScope) Valid() bool {
	switch s {
	case ScopePlaintext, ScopeTenant, ScopeGlobal:
		return true
	}
	return false
}

// FingerprintKind names what was hashed: one field, or a named composite of
// several (e.g. "composite.name_dob").
type FingerprintKind string

// SingleKind tags a fingerprint over one field.
func SingleKind(di DataIdentifier) FingerprintKind { return FingerprintKind(di) }

// CompositeNameDob is the composite over first name, last name and dob used
// for fuzzy-free person matching.
const CompositeNameDob FingerprintKind = "composite.name_dob"

// Fingerprint is a salted deterministic hash of one field's value (or a
// composite), linked to the lifetime(s) it was computed from and deactivated
// in lockstep with them.
type Fingerprint struct {
	ID            id.FingerprintID
	LifetimeID    id.LifetimeID
	VaultID       id.VaultID
	ScopedVaultID id.ScopedVaultID

	// TenantID is set only for tenant-scoped fingerprints.
	TenantID *id.TenantID

	Kind  FingerprintKind
	Scope FingerprintScope
	Hash  []byte

	CreatedSeqno     id.Seqno
	DeactivatedSeqno *id.Seqno

	CreatedAt time.Time
}

// Matches reports hash equality for the same kind and scope.
func (f Fingerprint) Matches(other Fingerprint) bool {
	return f.Kind == other.Kind && f.Scope == other.Scope && bytes.Equal(f.Hash, other.Hash)
}

// Live reports whether the fingerprint is still current.
func (f Fingerprint) Live() bool { return f.DeactivatedSeqno == nil }
