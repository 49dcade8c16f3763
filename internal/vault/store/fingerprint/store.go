package fingerprint

import (
	"context"

	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
)

// Filter narrows a fingerprint listing.
type Filter struct {
	VaultID       id.VaultID
	ScopedVaultID id.ScopedVaultID
	Kinds         []models.FingerprintKind
	Scope         models.FingerprintScope

	// LiveOnly excludes deactivated fingerprints.
	LiveOnly bool
}

// Match is one fingerprint in another vault whose hash equals one of the
// subject's.
type Match struct {
	models.Fingerprint

	// SubjectKind is the kind on the subject side that produced the match.
	SubjectKind models.FingerprintKind
}

// Store persists salted fingerprints. Fingerprints deactivate in lockstep
// with the lifetimes they were computed from.
type Store interface {
	CreateBatch(ctx context.Context, fps []*models.Fingerprint) error
	List(ctx context.Context, f Filter) ([]models.Fingerprint, error)
	DeactivateByLifetimes(ctx context.Context, lifetimeIDs []id.LifetimeID, seqno id.Seqno) error

	// FindMatches returns live fingerprints outside excludeVault whose
	// (kind, scope, hash) equals one of the subject's. Only the latest live
	// fingerprint per (vault, kind) on the candidate side is considered.
	FindMatches(ctx context.Context, subject []models.Fingerprint, excludeVault id.VaultID) ([]Match, error)
}

func (f Filter) matches(fp models.Fingerprint) bool {
	if !f.VaultID.IsNil() && fp.VaultID != f.VaultID {
		return false
	}
	if !f.ScopedVaultID.IsNil() && fp.ScopedVaultID != f.ScopedVaultID {
		return false
	}
	if f.Scope != "" && fp.Scope != f.Scope {
		return false
	}
	if f.LiveOnly && !fp.Live() {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if fp.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
