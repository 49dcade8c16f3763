package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"vaultcore/internal/platform/logger"
	"vaultcore/internal/platform/redis"
	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
)

// ResolveCache caches external-ID resolution. Misses are cheap; the cache is
// strictly an optimization and every implementation must tolerate loss.
type ResolveCache interface {
	Get(ctx context.Context, externalID string) (*models.ScopedVault, bool)
	Set(ctx context.Context, externalID string, scoped *models.ScopedVault)
}

// RedisResolveCache caches resolutions in redis under a TTL. External IDs are
// immutable once minted, so staleness only risks serving a binding that was
// soft-deactivated within the TTL window.
type RedisResolveCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisResolveCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisResolveCache {
	if log == nil {
		log = logger.Nop()
	}
	return &RedisResolveCache{client: client, ttl: ttl, log: log}
}

// cachedScopedVault is the stored JSON shape. IDs round-trip as strings.
type cachedScopedVault struct {
	ID              string    `json:"id"`
	VaultID         string    `json:"vault_id"`
	TenantID        string    `json:"tenant_id"`
	ExternalID      string    `json:"external_id"`
	SandboxInstance string    `json:"sandbox_instance,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

func cacheKey(externalID string) string { return "vaultcore:resolve:" + externalID }

func (c *RedisResolveCache) Get(ctx context.Context, externalID string) (*models.ScopedVault, bool) {
	raw, err := c.client.Get(ctx, cacheKey(externalID)).Bytes()
	if err != nil {
		return nil, false
	}
	var cached cachedScopedVault
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.log.Warn().Err(err).Msg("corrupt resolve cache entry; dropping")
		c.client.Del(ctx, cacheKey(externalID))
		return nil, false
	}

	scopedID, err1 := uuid.Parse(cached.ID)
	vaultID, err2 := uuid.Parse(cached.VaultID)
	tenantID, err3 := uuid.Parse(cached.TenantID)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, false
	}
	return &models.ScopedVault{
		ID:              id.ScopedVaultID(scopedID),
		VaultID:         id.VaultID(vaultID),
		TenantID:        id.TenantID(tenantID),
		ExternalID:      cached.ExternalID,
		SandboxInstance: cached.SandboxInstance,
		IsActive:        cached.IsActive,
		CreatedAt:       cached.CreatedAt,
	}, true
}

func (c *RedisResolveCache) Set(ctx context.Context, externalID string, scoped *models.ScopedVault) {
	raw, err := json.Marshal(cachedScopedVault{
		ID:              scoped.ID.String(),
		VaultID:         scoped.VaultID.String(),
		TenantID:        scoped.TenantID.String(),
		ExternalID:      scoped.ExternalID,
		SandboxInstance: scoped.SandboxInstance,
		IsActive:        scoped.IsActive,
		CreatedAt:       scoped.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(externalID), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("resolve cache set failed")
	}
}
