package fingerprint

import (
	"bytes"
	"context"
	"sync"

	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/pkg/platform/sentinel"
)

// InMemory is the map-backed fingerprint store used by unit tests and local
// wiring.
type InMemory struct {
	mu  sync.RWMutex
	fps map[id.FingerprintID]models.Fingerprint
}

// NewInMemory builds an empty in-memory fingerprint store.
func NewInMemory() *InMemory {
	return &InMemory{fps: make(map[id.FingerprintID]models.Fingerprint)}
}

func (s *InMemory) CreateBatch(_ context.Context, fps []*models.Fingerprint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, fp := range fps {
		if _, ok := s.fps[fp.ID]; ok {
			return sentinel.ErrConflict
		}
	}
	for _, fp := range fps {
		s.fps[fp.ID] = *fp
	}
	return nil
}

func (s *InMemory) List(_ context.Context, f Filter) ([]models.Fingerprint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Fingerprint
	for _, fp := range s.fps {
		if f.matches(fp) {
			out = append(out, fp)
		}
	}
	return out, nil
}

// DeactivateByLifetimes marks every live fingerprint of the given lifetimes
// deactivated at seqno. Lifetimes with no fingerprints (plaintext-only
// fields never fingerprinted) are fine; an already-deactivated fingerprint
// is not.
func (s *InMemory) DeactivateByLifetimes(_ context.Context, lifetimeIDs []id.LifetimeID, seqno id.Seqno) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	targets := make(map[id.LifetimeID]bool, len(lifetimeIDs))
	for _, lid := range lifetimeIDs {
		targets[lid] = true
	}
	for fpID, fp := range s.fps {
		if !targets[fp.LifetimeID] {
			continue
		}
		if fp.DeactivatedSeqno != nil {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "fingerprint %s already deactivated", fpID)
		}
	}
	for fpID, fp := range s.fps {
		if targets[fp.LifetimeID] {
			fp.DeactivatedSeqno = models.SeqnoPtr(seqno)
			s.fps[fpID] = fp
		}
	}
	return nil
}

func (s *InMemory) FindMatches(_ context.Context, subject []models.Fingerprint, excludeVault id.VaultID) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Only the latest live fingerprint per (scoped vault, kind, scope) on
	// the candidate side counts: stale hashes must not produce matches.
	type key struct {
		sv    id.ScopedVaultID
		kind  models.FingerprintKind
		scope models.FingerprintScope
	}
	latest := make(map[key]models.Fingerprint)
	for _, fp := range s.fps {
		if !fp.Live() || fp.VaultID == excludeVault {
			continue
		}
		k := key{fp.ScopedVaultID, fp.Kind, fp.Scope}
		if cur, ok := latest[k]; !ok || fp.CreatedSeqno > cur.CreatedSeqno {
			latest[k] = fp
		}
	}

	var out []Match
	for _, cand := range latest {
		for _, sub := range subject {
			if cand.Kind == sub.Kind && cand.Scope == sub.Scope && bytes.Equal(cand.Hash, sub.Hash) {
				out = append(out, Match{Fingerprint: cand, SubjectKind: sub.Kind})
				break
			}
		}
	}
	return out, nil
}
