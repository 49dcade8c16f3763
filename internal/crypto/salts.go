package crypto

import (
	"crypto/hmac"
	"crypto/sha256"

	id "vaultcore/pkg/domain"
)

// Salts derives the fingerprint salts for each scope from one platform-wide
// secret. Tenant salts are derived deterministically so no per-tenant secret
// needs storing, while tenant-scoped fingerprints still never collide across
// tenants.
type Salts struct {
	global []byte
}

// NewSalts wraps the platform-wide fingerprint secret.
func NewSalts(global []byte) Salts {
	return Salts{global: global}
}

// Global is the platform-wide salt powering cross-tenant dedup.
func (s Salts) Global() []byte {
	out := make([]byte, len(s.global))
	copy(out, s.global)
	return out
}

// Tenant derives the per-tenant salt: HMAC-SHA256 of the tenant ID keyed by
// the global secret.
func (s Salts) Tenant(tenantID id.TenantID) []byte {
	mac := hmac.New(sha256.New, s.global)
	mac.Write([]byte(tenantID.String()))
	return mac.Sum(nil)
}
