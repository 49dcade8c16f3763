//go:build integration

package vaults_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/store/vaults"
	id "vaultcore/pkg/domain"
	"vaultcore/pkg/platform/sentinel"
	"vaultcore/pkg/platform/tx"
	"vaultcore/pkg/testutil/containers"
)

type PostgresSuite struct {
	suite.Suite

	ctx      context.Context
	postgres *containers.PostgresContainer
	store    *vaults.Postgres
	runner   *tx.SQLRunner
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
	s.store = vaults.NewPostgres(s.postgres.DB)
	s.runner = tx.NewRunner(s.postgres.DB)
}

func (s *PostgresSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "vaults"))
}

func (s *PostgresSuite) newVault() *models.Vault {
	return &models.Vault{
		ID:          id.NewVaultID(),
		Kind:        models.VaultKindPerson,
		PublicKey:   []byte("public-key-bytes-0123456789abcd"),
		EPrivateKey: []byte("sealed-private-key"),
		IsLive:      true,
		CreatedAt:   time.Now().UTC(),
	}
}

func (s *PostgresSuite) newScope(vault *models.Vault, tenantID id.TenantID) *models.ScopedVault {
	sv := &models.ScopedVault{
		ID:         id.NewScopedVaultID(),
		VaultID:    vault.ID,
		TenantID:   tenantID,
		ExternalID: models.NewExternalID(vault.Kind),
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	s.Require().NoError(s.store.CreateScopedVault(s.ctx, sv))
	return sv
}

func (s *PostgresSuite) TestVaultRoundTrip() {
	v := s.newVault()
	v.Sandbox = true
	v.IsLive = false
	s.Require().NoError(s.store.CreateVault(s.ctx, v))

	got, err := s.store.GetVault(s.ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.ID, got.ID)
	s.Equal(v.Kind, got.Kind)
	s.Equal(v.PublicKey, got.PublicKey)
	s.Equal(v.EPrivateKey, got.EPrivateKey)
	s.False(got.IsLive)
	s.True(got.Sandbox)
}

func (s *PostgresSuite) TestGetVaultNotFound() {
	_, err := s.store.GetVault(s.ctx, id.NewVaultID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSuite) TestScopedVaultRoundTripAndResolve() {
	v := s.newVault()
	s.Require().NoError(s.store.CreateVault(s.ctx, v))
	sv := s.newScope(v, id.NewTenantID())

	got, err := s.store.GetScopedVault(s.ctx, sv.ID)
	s.Require().NoError(err)
	s.Equal(sv.ExternalID, got.ExternalID)
	s.True(got.IsActive)

	resolved, err := s.store.ResolveExternalID(s.ctx, sv.ExternalID)
	s.Require().NoError(err)
	s.Equal(sv.ID, resolved.ID)

	_, err = s.store.ResolveExternalID(s.ctx, "pv_deadbeef")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSuite) TestDuplicateTenantBindingConflicts() {
	v := s.newVault()
	s.Require().NoError(s.store.CreateVault(s.ctx, v))
	tenant := id.NewTenantID()
	s.newScope(v, tenant)

	dup := &models.ScopedVault{
		ID:         id.NewScopedVaultID(),
		VaultID:    v.ID,
		TenantID:   tenant,
		ExternalID: models.NewExternalID(v.Kind),
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.store.CreateScopedVault(s.ctx, dup)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresSuite) TestDuplicateExternalIDConflicts() {
	v := s.newVault()
	s.Require().NoError(s.store.CreateVault(s.ctx, v))
	sv := s.newScope(v, id.NewTenantID())

	dup := &models.ScopedVault{
		ID:         id.NewScopedVaultID(),
		VaultID:    v.ID,
		TenantID:   id.NewTenantID(),
		ExternalID: sv.ExternalID,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.store.CreateScopedVault(s.ctx, dup)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresSuite) TestFindScopedVault() {
	v := s.newVault()
	s.Require().NoError(s.store.CreateVault(s.ctx, v))
	tenant := id.NewTenantID()
	sv := s.newScope(v, tenant)

	got, err := s.store.FindScopedVault(s.ctx, v.ID, tenant)
	s.Require().NoError(err)
	s.Equal(sv.ID, got.ID)

	_, err = s.store.FindScopedVault(s.ctx, v.ID, id.NewTenantID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSuite) TestDeactivateScopedVaultHidesBinding() {
	v := s.newVault()
	s.Require().NoError(s.store.CreateVault(s.ctx, v))
	tenant := id.NewTenantID()
	sv := s.newScope(v, tenant)

	s.Require().NoError(s.store.DeactivateScopedVault(s.ctx, sv.ID))

	_, err := s.store.FindScopedVault(s.ctx, v.ID, tenant)
	s.ErrorIs(err, sentinel.ErrNotFound)

	// The row survives deactivation; only the active binding lookup hides it.
	got, err := s.store.GetScopedVault(s.ctx, sv.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)
}

func (s *PostgresSuite) TestListScopedVaultsByVaults() {
	a := s.newVault()
	b := s.newVault()
	s.Require().NoError(s.store.CreateVault(s.ctx, a))
	s.Require().NoError(s.store.CreateVault(s.ctx, b))
	s.newScope(a, id.NewTenantID())
	s.newScope(a, id.NewTenantID())
	s.newScope(b, id.NewTenantID())

	got, err := s.store.ListScopedVaultsByVaults(s.ctx, []id.VaultID{a.ID, b.ID})
	s.Require().NoError(err)
	s.Len(got, 3)

	got, err = s.store.ListScopedVaultsByVaults(s.ctx, []id.VaultID{b.ID})
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *PostgresSuite) TestLockVaultInsideTransaction() {
	v := s.newVault()
	s.Require().NoError(s.store.CreateVault(s.ctx, v))

	err := s.runner.RunInTx(s.ctx, func(ctx context.Context) error {
		return s.store.LockVault(ctx, v.ID)
	})
	s.Require().NoError(err)

	err = s.runner.RunInTx(s.ctx, func(ctx context.Context) error {
		return s.store.LockVault(ctx, id.NewVaultID())
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}
