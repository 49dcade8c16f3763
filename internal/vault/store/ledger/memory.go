package ledger

import (
	"context"
	"sync"
	"sync/atomic"

	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/internal/vault/models"
	"vaultcore/pkg/platform/sentinel"
)

// InMemory is the map-backed ledger used by unit tests and local wiring.
type InMemory struct {
	mu        sync.RWMutex
	lifetimes map[id.LifetimeID]models.DataLifetime
	seqno     atomic.Int64
}

// NewInMemory builds an empty in-memory ledger.
func NewInMemory() *InMemory {
	return &InMemory{lifetimes: make(map[id.LifetimeID]models.DataLifetime)}
}

func (s *InMemory) NextSeqno(_ context.Context) (id.Seqno, error) {
	return id.Seqno(s.seqno.Add(1)), nil
}

func (s *InMemory) CreateBatch(_ context.Context, lifetimes []*models.DataLifetime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lifetimes {
		if _, ok := s.lifetimes[l.ID]; ok {
			return sentinel.ErrConflict
		}
	}
	for _, l := range lifetimes {
		s.lifetimes[l.ID] = *l
	}
	return nil
}

func (s *InMemory) Get(_ context.Context, lifetimeID id.LifetimeID) (*models.DataLifetime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lifetimes[lifetimeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &l, nil
}

func (s *InMemory) GetBatch(_ context.Context, lifetimeIDs []id.LifetimeID) ([]models.DataLifetime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DataLifetime, 0, len(lifetimeIDs))
	for _, lid := range lifetimeIDs {
		if l, ok := s.lifetimes[lid]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *InMemory) ListVisible(_ context.Context, f Filter) ([]models.DataLifetime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DataLifetime
	for _, l := range s.lifetimes {
		if f.Visible(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

// Deactivate is all-or-nothing: targets are validated before any is touched.
func (s *InMemory) Deactivate(_ context.Context, lifetimeIDs []id.LifetimeID, seqno id.Seqno) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lid := range lifetimeIDs {
		l, ok := s.lifetimes[lid]
		if !ok {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "deactivate: lifetime %s does not exist", lid)
		}
		if l.DeactivatedSeqno != nil {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "deactivate: lifetime %s already deactivated", lid)
		}
	}
	for _, lid := range lifetimeIDs {
		l := s.lifetimes[lid]
		l.DeactivatedSeqno = models.SeqnoPtr(seqno)
		s.lifetimes[lid] = l
	}
	return nil
}

// CommitForTenant is all-or-nothing: targets are validated before any is
// touched.
func (s *InMemory) CommitForTenant(_ context.Context, lifetimeIDs []id.LifetimeID, scopedVaultID id.ScopedVaultID, seqno id.Seqno) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lid := range lifetimeIDs {
		l, ok := s.lifetimes[lid]
		if !ok {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "commit: lifetime %s does not exist", lid)
		}
		if l.Status() != models.StatusSpeculative {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "commit: lifetime %s is %s, not speculative", lid, l.Status())
		}
		if l.ScopedVaultID != scopedVaultID {
			return dErrors.Newf(dErrors.CodeInvariantViolation, "commit: lifetime %s not owned by scoped vault %s", lid, scopedVaultID)
		}
	}
	for _, lid := range lifetimeIDs {
		l := s.lifetimes[lid]
		l.PortablizedSeqno = models.SeqnoPtr(seqno)
		s.lifetimes[lid] = l
	}
	return nil
}
