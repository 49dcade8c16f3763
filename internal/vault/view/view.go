// Package view builds an in-memory projection of one vault's currently
// visible fields for a given tenant scope, optionally at a historical
// version. Views are cheap, per-call snapshots; nothing in them is shared
// across requests.
package view

import (
	"sort"

	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
)

// Entry pairs one visible lifetime with its stored payload.
type Entry struct {
	Lifetime models.DataLifetime
	Value    *models.Value
}

// View is a projection of the fields visible to one scoped vault. A field
// kind can appear in both the speculative and portable maps at once; callers
// choose which state to read rather than the view hiding one.
type View struct {
	vault       models.Vault
	scopedVault models.ScopedVault
	asOf        id.Seqno

	speculative map[models.DataIdentifier]Entry
	portable    map[models.DataIdentifier]Entry

	locked   bool
	consumed bool
}

func (v *View) Vault() models.Vault             { return v.vault }
func (v *View) ScopedVault() models.ScopedVault { return v.scopedVault }

// AsOf is the version this view was built at; zero means latest.
func (v *View) AsOf() id.Seqno { return v.asOf }

// Locked reports whether this view was built under an exclusive vault lock.
// Only a locked view may drive mutations.
func (v *View) Locked() bool { return v.locked }

// Populated returns the sorted set of field kinds visible in either state.
func (v *View) Populated() []models.DataIdentifier {
	seen := make(map[models.DataIdentifier]bool, len(v.speculative)+len(v.portable))
	for kind := range v.speculative {
		seen[kind] = true
	}
	for kind := range v.portable {
		seen[kind] = true
	}
	out := make([]models.DataIdentifier, 0, len(seen))
	for kind := range seen {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether the field kind is populated in either state.
func (v *View) Has(kind models.DataIdentifier) bool {
	_, spec := v.speculative[kind]
	_, port := v.portable[kind]
	return spec || port
}

// Get returns the entry for a kind, preferring the reader's own speculative
// state over the portable one when both exist.
func (v *View) Get(kind models.DataIdentifier) (Entry, bool) {
	if e, ok := v.speculative[kind]; ok {
		return e, true
	}
	e, ok := v.portable[kind]
	return e, ok
}

// GetSpeculative returns the reader's own speculative entry for a kind.
func (v *View) GetSpeculative(kind models.DataIdentifier) (Entry, bool) {
	e, ok := v.speculative[kind]
	return e, ok
}

// GetPortable returns the portable entry for a kind.
func (v *View) GetPortable(kind models.DataIdentifier) (Entry, bool) {
	e, ok := v.portable[kind]
	return e, ok
}

// GetLifetime returns the lifetime for a kind under the same preference as
// Get.
func (v *View) GetLifetime(kind models.DataIdentifier) (models.DataLifetime, bool) {
	e, ok := v.Get(kind)
	return e.Lifetime, ok
}

// SpeculativeKinds returns the sorted kinds with a speculative entry.
func (v *View) SpeculativeKinds() []models.DataIdentifier { return sortedKinds(v.speculative) }

// PortableKinds returns the sorted kinds with a portable entry.
func (v *View) PortableKinds() []models.DataIdentifier { return sortedKinds(v.portable) }

// Consume marks the view stale. A view used to select data outside a lock
// must not be reused after the mutation it fed.
func (v *View) Consume() { v.consumed = true }

// Usable returns an invariant violation when the view was already consumed.
func (v *View) Usable() error {
	if v.consumed {
		return dErrors.New(dErrors.CodeInvariantViolation, "view already consumed")
	}
	return nil
}

// RequireLocked guards mutation paths.
func (v *View) RequireLocked() error {
	if !v.locked {
		return dErrors.New(dErrors.CodeInvariantViolation, "mutation requires a write-locked view")
	}
	return v.Usable()
}

func sortedKinds(m map[models.DataIdentifier]Entry) []models.DataIdentifier {
	out := make([]models.DataIdentifier, 0, len(m))
	for kind := range m {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
