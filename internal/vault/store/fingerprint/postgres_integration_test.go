//go:build integration

package fingerprint_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/store/fingerprint"
	"vaultcore/internal/vault/store/ledger"
	"vaultcore/internal/vault/store/vaults"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/pkg/testutil/containers"
)

type PostgresSuite struct {
	suite.Suite

	ctx      context.Context
	postgres *containers.PostgresContainer
	vaults   *vaults.Postgres
	ledger   *ledger.Postgres
	store    *fingerprint.Postgres
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()
	s.postgres = containers.NewPostgresContainer(s.T())
	s.vaults = vaults.NewPostgres(s.postgres.DB)
	s.ledger = ledger.NewPostgres(s.postgres.DB)
	s.store = fingerprint.NewPostgres(s.postgres.DB)
}

func (s *PostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "vaults"))
}

type scope struct {
	vault  models.Vault
	scoped models.ScopedVault
}

func (s *PostgresSuite) newScope() scope {
	v := models.Vault{
		ID: id.NewVaultID(), Kind: models.VaultKindPerson,
		PublicKey: []byte("pub"), EPrivateKey: []byte("sealed"),
		IsLive: true, CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.vaults.CreateVault(s.ctx, &v))
	sv := models.ScopedVault{
		ID: id.NewScopedVaultID(), VaultID: v.ID, TenantID: id.NewTenantID(),
		ExternalID: models.NewExternalID(models.VaultKindPerson), IsActive: true,
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.vaults.CreateScopedVault(s.ctx, &sv))
	return scope{vault: v, scoped: sv}
}

// addFP creates a lifetime and attaches one live fingerprint at seqno.
func (s *PostgresSuite) addFP(sc scope, kind models.FingerprintKind, fpScope models.FingerprintScope, hash []byte, seqno id.Seqno) *models.Fingerprint {
	l := &models.DataLifetime{
		ID: id.NewLifetimeID(), VaultID: sc.vault.ID, ScopedVaultID: sc.scoped.ID,
		Kind: models.DataIdentifier(kind), Source: models.SourceTenant,
		CreatedSeqno: seqno, CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.ledger.CreateBatch(s.ctx, []*models.DataLifetime{l}))

	fp := &models.Fingerprint{
		ID: id.NewFingerprintID(), LifetimeID: l.ID,
		VaultID: sc.vault.ID, ScopedVaultID: sc.scoped.ID,
		Kind: kind, Scope: fpScope, Hash: hash,
		CreatedSeqno: seqno, CreatedAt: time.Now().UTC(),
	}
	if fpScope == models.ScopeTenant {
		tenant := sc.scoped.TenantID
		fp.TenantID = &tenant
	}
	s.Require().NoError(s.store.CreateBatch(s.ctx, []*models.Fingerprint{fp}))
	return fp
}

func ssnKind() models.FingerprintKind { return models.SingleKind(models.IDSsn9) }

func (s *PostgresSuite) TestListFilters() {
	sc := s.newScope()
	s.addFP(sc, ssnKind(), models.ScopeGlobal, []byte("h1"), 1)
	s.addFP(sc, models.SingleKind(models.IDEmail), models.ScopeTenant, []byte("h2"), 2)

	got, err := s.store.List(s.ctx, fingerprint.Filter{VaultID: sc.vault.ID})
	s.Require().NoError(err)
	s.Len(got, 2)

	got, err = s.store.List(s.ctx, fingerprint.Filter{VaultID: sc.vault.ID, Scope: models.ScopeTenant})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Require().NotNil(got[0].TenantID)
	s.Equal(sc.scoped.TenantID, *got[0].TenantID)

	got, err = s.store.List(s.ctx, fingerprint.Filter{
		VaultID: sc.vault.ID, Kinds: []models.FingerprintKind{ssnKind()},
	})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal([]byte("h1"), got[0].Hash)
}

func (s *PostgresSuite) TestDeactivateByLifetimes() {
	sc := s.newScope()
	fp := s.addFP(sc, ssnKind(), models.ScopeGlobal, []byte("h1"), 1)

	s.Require().NoError(s.store.DeactivateByLifetimes(s.ctx, []id.LifetimeID{fp.LifetimeID}, 2))

	live, err := s.store.List(s.ctx, fingerprint.Filter{VaultID: sc.vault.ID, LiveOnly: true})
	s.Require().NoError(err)
	s.Empty(live)

	all, err := s.store.List(s.ctx, fingerprint.Filter{VaultID: sc.vault.ID})
	s.Require().NoError(err)
	s.Len(all, 1)

	err = s.store.DeactivateByLifetimes(s.ctx, []id.LifetimeID{fp.LifetimeID}, 3)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *PostgresSuite) TestFindMatchesExcludesSubjectVault() {
	subject := s.newScope()
	candidate := s.newScope()
	hash := []byte("shared-hash")

	s.addFP(subject, ssnKind(), models.ScopeGlobal, hash, 1)
	s.addFP(candidate, ssnKind(), models.ScopeGlobal, hash, 2)

	matches, err := s.store.FindMatches(s.ctx,
		[]models.Fingerprint{{Kind: ssnKind(), Scope: models.ScopeGlobal, Hash: hash}},
		subject.vault.ID)
	s.Require().NoError(err)
	s.Require().Len(matches, 1)
	s.Equal(candidate.vault.ID, matches[0].VaultID)
	s.Equal(ssnKind(), matches[0].SubjectKind)
}

func (s *PostgresSuite) TestFindMatchesIsLatestToLatest() {
	subject := s.newScope()
	candidate := s.newScope()
	stale := []byte("old-hash")
	fresh := []byte("new-hash")

	// The candidate overwrote the value: the old fingerprint deactivated,
	// the replacement carries a different hash.
	old := s.addFP(candidate, ssnKind(), models.ScopeGlobal, stale, 1)
	s.Require().NoError(s.store.DeactivateByLifetimes(s.ctx, []id.LifetimeID{old.LifetimeID}, 2))
	s.addFP(candidate, ssnKind(), models.ScopeGlobal, fresh, 2)

	matches, err := s.store.FindMatches(s.ctx,
		[]models.Fingerprint{{Kind: ssnKind(), Scope: models.ScopeGlobal, Hash: stale}},
		subject.vault.ID)
	s.Require().NoError(err)
	s.Empty(matches)

	matches, err = s.store.FindMatches(s.ctx,
		[]models.Fingerprint{{Kind: ssnKind(), Scope: models.ScopeGlobal, Hash: fresh}},
		subject.vault.ID)
	s.Require().NoError(err)
	s.Len(matches, 1)
}

func (s *PostgresSuite) TestFindMatchesEmptySubject() {
	matches, err := s.store.FindMatches(s.ctx, nil, id.NewVaultID())
	s.Require().NoError(err)
	s.Empty(matches)
}
