package fingerprint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
)

func seedFP(t *testing.T, s *InMemory, fp models.Fingerprint) models.Fingerprint {
	t.Helper()
	if fp.ID.IsNil() {
		fp.ID = id.NewFingerprintID()
	}
	if fp.LifetimeID.IsNil() {
		fp.LifetimeID = id.NewLifetimeID()
	}
	require.NoError(t, s.CreateBatch(context.Background(), []*models.Fingerprint{&fp}))
	return fp
}

func TestInMemoryList(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	vaultID := id.NewVaultID()
	svID := id.NewScopedVaultID()

	live := seedFP(t, s, models.Fingerprint{
		VaultID: vaultID, ScopedVaultID: svID,
		Kind: models.SingleKind(models.IDSsn9), Scope: models.ScopeGlobal,
		Hash: []byte{1}, CreatedSeqno: 1,
	})
	seedFP(t, s, models.Fingerprint{
		VaultID: vaultID, ScopedVaultID: svID,
		Kind: models.SingleKind(models.IDSsn9), Scope: models.ScopeGlobal,
		Hash: []byte{2}, CreatedSeqno: 2, DeactivatedSeqno: models.SeqnoPtr(3),
	})
	seedFP(t, s, models.Fingerprint{
		VaultID: id.NewVaultID(), ScopedVaultID: id.NewScopedVaultID(),
		Kind: models.SingleKind(models.IDEmail), Scope: models.ScopeGlobal,
		Hash: []byte{3}, CreatedSeqno: 1,
	})

	t.Run("live filter excludes deactivated", func(t *testing.T) {
		got, err := s.List(ctx, Filter{VaultID: vaultID, LiveOnly: true})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, live.ID, got[0].ID)
	})

	t.Run("kind filter applies", func(t *testing.T) {
		got, err := s.List(ctx, Filter{
			VaultID: vaultID,
			Kinds:   []models.FingerprintKind{models.SingleKind(models.IDEmail)},
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestInMemoryDeactivateByLifetimes(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	fp := seedFP(t, s, models.Fingerprint{
		VaultID: id.NewVaultID(), ScopedVaultID: id.NewScopedVaultID(),
		Kind: models.SingleKind(models.IDSsn9), Scope: models.ScopeGlobal,
		Hash: []byte{1}, CreatedSeqno: 1,
	})

	require.NoError(t, s.DeactivateByLifetimes(ctx, []id.LifetimeID{fp.LifetimeID}, 5))
	got, err := s.List(ctx, Filter{LiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, got)

	t.Run("lifetime without fingerprints is fine", func(t *testing.T) {
		assert.NoError(t, s.DeactivateByLifetimes(ctx, []id.LifetimeID{id.NewLifetimeID()}, 6))
	})

	t.Run("double deactivate is an invariant violation", func(t *testing.T) {
		err := s.DeactivateByLifetimes(ctx, []id.LifetimeID{fp.LifetimeID}, 7)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestInMemoryFindMatches(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	subjectVault := id.NewVaultID()
	otherVault := id.NewVaultID()
	otherSV := id.NewScopedVaultID()

	subject := []models.Fingerprint{{
		VaultID: subjectVault,
		Kind:    models.SingleKind(models.IDSsn9), Scope: models.ScopeGlobal,
		Hash: []byte("h1"),
	}}

	t.Run("empty store matches nothing", func(t *testing.T) {
		got, err := s.FindMatches(ctx, subject, subjectVault)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	match := seedFP(t, s, models.Fingerprint{
		VaultID: otherVault, ScopedVaultID: otherSV,
		Kind: models.SingleKind(models.IDSsn9), Scope: models.ScopeGlobal,
		Hash: []byte("h1"), CreatedSeqno: 1,
	})

	t.Run("matching hash in another vault is found", func(t *testing.T) {
		got, err := s.FindMatches(ctx, subject, subjectVault)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, match.ID, got[0].ID)
		assert.Equal(t, subject[0].Kind, got[0].SubjectKind)
	})

	t.Run("subject vault itself is excluded", func(t *testing.T) {
		seedFP(t, s, models.Fingerprint{
			VaultID: subjectVault, ScopedVaultID: id.NewScopedVaultID(),
			Kind: models.SingleKind(models.IDSsn9), Scope: models.ScopeGlobal,
			Hash: []byte("h1"), CreatedSeqno: 1,
		})
		got, err := s.FindMatches(ctx, subject, subjectVault)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("scope must agree even when hashes collide", func(t *testing.T) {
		seedFP(t, s, models.Fingerprint{
			VaultID: id.NewVaultID(), ScopedVaultID: id.NewScopedVaultID(),
			Kind: models.SingleKind(models.IDSsn9), Scope: models.ScopeTenant,
			Hash: []byte("h1"), CreatedSeqno: 1,
		})
		got, err := s.FindMatches(ctx, subject, subjectVault)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("only the latest hash per candidate counts", func(t *testing.T) {
		// A newer fingerprint for the same slot supersedes the matching one.
		seedFP(t, s, models.Fingerprint{
			VaultID: otherVault, ScopedVaultID: otherSV,
			Kind: models.SingleKind(models.IDSsn9), Scope: models.ScopeGlobal,
			Hash: []byte("h2"), CreatedSeqno: 9,
		})
		got, err := s.FindMatches(ctx, subject, subjectVault)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
