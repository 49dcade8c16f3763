//go:build integration

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaultcore/internal/platform/logger"
	platformredis "vaultcore/internal/platform/redis"
	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
	"vaultcore/pkg/testutil/containers"
)

type ResolveCacheSuite struct {
	suite.Suite

	ctx   context.Context
	redis *containers.RedisContainer
	cache *RedisResolveCache
}

func TestResolveCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ResolveCacheSuite))
}

func (s *ResolveCacheSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	client := &platformredis.Client{Client: s.redis.Client}
	s.cache = NewRedisResolveCache(client, time.Minute, logger.Nop())
}

func (s *ResolveCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *ResolveCacheSuite) scoped() *models.ScopedVault {
	return &models.ScopedVault{
		ID:              id.NewScopedVaultID(),
		VaultID:         id.NewVaultID(),
		TenantID:        id.NewTenantID(),
		ExternalID:      "pv_0123456789abcdef0123456789abcdef",
		SandboxInstance: "sbx-1",
		IsActive:        true,
		CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
}

// ============================================================
// Round trip
// ============================================================

func (s *ResolveCacheSuite) TestSetThenGetRoundTrips() {
	want := s.scoped()
	s.cache.Set(s.ctx, want.ExternalID, want)

	got, ok := s.cache.Get(s.ctx, want.ExternalID)
	s.Require().True(ok)
	s.Equal(want.ID, got.ID)
	s.Equal(want.VaultID, got.VaultID)
	s.Equal(want.TenantID, got.TenantID)
	s.Equal(want.ExternalID, got.ExternalID)
	s.Equal(want.SandboxInstance, got.SandboxInstance)
	s.True(got.IsActive)
	s.True(want.CreatedAt.Equal(got.CreatedAt))
}

func (s *ResolveCacheSuite) TestMissReturnsFalse() {
	_, ok := s.cache.Get(s.ctx, "pv_ffffffffffffffffffffffffffffffff")
	s.False(ok)
}

// ============================================================
// Corruption and expiry
// ============================================================

func (s *ResolveCacheSuite) TestCorruptEntryIsDropped() {
	want := s.scoped()
	key := cacheKey(want.ExternalID)
	s.Require().NoError(s.redis.Client.Set(s.ctx, key, "not-json", time.Minute).Err())

	_, ok := s.cache.Get(s.ctx, want.ExternalID)
	s.False(ok)

	// The bad entry must not linger and shadow a later Set.
	exists, err := s.redis.Client.Exists(s.ctx, key).Result()
	s.Require().NoError(err)
	s.Zero(exists)
}

func (s *ResolveCacheSuite) TestEntriesExpire() {
	client := &platformredis.Client{Client: s.redis.Client}
	shortLived := NewRedisResolveCache(client, 50*time.Millisecond, logger.Nop())

	want := s.scoped()
	shortLived.Set(s.ctx, want.ExternalID, want)

	_, ok := shortLived.Get(s.ctx, want.ExternalID)
	s.Require().True(ok)

	time.Sleep(150 * time.Millisecond)

	_, ok = shortLived.Get(s.ctx, want.ExternalID)
	s.False(ok)
}
