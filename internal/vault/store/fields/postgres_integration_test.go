//go:build integration

package fields_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/store/fields"
	"vaultcore/internal/vault/store/ledger"
	"vaultcore/internal/vault/store/vaults"
	id "vaultcore/pkg/domain"
	"vaultcore/pkg/testutil/containers"
)

type PostgresSuite struct {
	suite.Suite

	ctx      context.Context
	postgres *containers.PostgresContainer
	vaults   *vaults.Postgres
	ledger   *ledger.Postgres
	store    *fields.Postgres

	vault  models.Vault
	scoped models.ScopedVault
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
	s.store = fields.NewPostgres(s.postgres.DB)
}

func (s *PostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "vaults"))

	s.vault = models.Vault{
		ID: id.NewVaultID(), Kind: models.VaultKindPerson,
		PublicKey: []byte("pub"), EPrivateKey: []byte("sealed"),
		IsLive: true, CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.vaults.CreateVault(s.ctx, &s.vault))
	s.scoped = models.ScopedVault{
		ID: id.NewScopedVaultID(), VaultID: s.vault.ID, TenantID: id.NewTenantID(),
		ExternalID: models.NewExternalID(models.VaultKindPerson), IsActive: true,
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.vaults.CreateScopedVault(s.ctx, &s.scoped))
}

func (s *PostgresSuite) newLifetime(kind models.DataIdentifier) id.LifetimeID {
	l := &models.DataLifetime{
		ID: id.NewLifetimeID(), VaultID: s.vault.ID, ScopedVaultID: s.scoped.ID,
		Kind: kind, Source: models.SourceTenant,
		CreatedSeqno: 1, CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.ledger.CreateBatch(s.ctx, []*models.DataLifetime{l}))
	return l.ID
}

func (s *PostgresSuite) TestRoundTripsAllThreeClasses() {
	sealed := s.newLifetime(models.IDSsn9)
	clear := s.newLifetime(models.IDCountry)
	doc := s.newLifetime(models.DataIdentifier("document.passport"))

	err := s.store.CreateBatch(s.ctx, []*models.Value{
		{LifetimeID: sealed, Kind: models.IDSsn9, EData: []byte{0xde, 0xad, 0xbe, 0xef}},
		{LifetimeID: clear, Kind: models.IDCountry, PData: "US"},
		{LifetimeID: doc, Kind: models.DataIdentifier("document.passport"), DocRef: "doc://passport/1"},
	})
	s.Require().NoError(err)

	got, err := s.store.GetByLifetimes(s.ctx, []id.LifetimeID{sealed, clear, doc})
	s.Require().NoError(err)
	s.Require().Len(got, 3)

	s.Equal(models.ClassSealed, got[sealed].Class())
	s.Equal([]byte{0xde, 0xad, 0xbe, 0xef}, got[sealed].EData)

	s.Equal(models.ClassPlaintext, got[clear].Class())
	s.Equal("US", got[clear].PData)

	s.Equal(models.ClassLargeSealed, got[doc].Class())
	s.Equal("doc://passport/1", got[doc].DocRef)
}

func (s *PostgresSuite) TestPayloadsAreImmutable() {
	lid := s.newLifetime(models.IDSsn9)
	s.Require().NoError(s.store.CreateBatch(s.ctx, []*models.Value{
		{LifetimeID: lid, Kind: models.IDSsn9, EData: []byte("v1")},
	}))

	// One payload per lifetime; a second insert for the same lifetime fails.
	err := s.store.CreateBatch(s.ctx, []*models.Value{
		{LifetimeID: lid, Kind: models.IDSsn9, EData: []byte("v2")},
	})
	s.Error(err)
}

func (s *PostgresSuite) TestGetByLifetimesSkipsUnknown() {
	lid := s.newLifetime(models.IDSsn9)
	s.Require().NoError(s.store.CreateBatch(s.ctx, []*models.Value{
		{LifetimeID: lid, Kind: models.IDSsn9, EData: []byte("v")},
	}))

	got, err := s.store.GetByLifetimes(s.ctx, []id.LifetimeID{lid, id.NewLifetimeID()})
	s.Require().NoError(err)
	s.Len(got, 1)
}
