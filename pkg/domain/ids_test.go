package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vaultcore/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseVaultID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseVaultID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseVaultID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseVaultID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, VaultID(validUUID), id)
	})
}

// TestTypeDistinction verifies the compiler enforces type safety.
// If this compiles, the invariant holds.
func TestTypeDistinction(t *testing.T) {
	vaultID := VaultID(uuid.New())
	tenantID := TenantID(uuid.New())

	// These would fail to compile if types were interchangeable:
	// var _ VaultID = tenantID   // compile error
	// var _ TenantID = vaultID   // compile error

	// Verify they're distinct at runtime too
	assert.NotEqual(t, uuid.UUID(vaultID), uuid.UUID(tenantID))
}

// TestParseID_SecurityInvariants validates trust-boundary parsing rules:
// external identifiers must reject attack vectors at API entry points.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		// Attack vectors
		{"SQL injection attempt", "'; DROP TABLE vaults;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Unicode zero-width space", "550e8400​-e29b-41d4-a716-446655440000", true},

		// Edge cases
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},

		// Valid
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScopedVaultID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

// TestTenantIsolation_DistinctIdentity encodes the cross-tenant invariant:
// a reader from tenant A must never be confused with a reader from tenant B.
// Enforcement lives in the visibility filters; typed IDs ensure tenant
// context is never accidentally omitted.
func TestTenantIsolation_DistinctIdentity(t *testing.T) {
	tenantA := NewTenantID()
	tenantB := NewTenantID()

	assert.NotEqual(t, tenantA, tenantB, "Different tenants must have different IDs")
	assert.NotEqual(t, uuid.UUID(tenantA), uuid.UUID(tenantB), "UUID values must differ")
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types parse identically.
// Inconsistent validation across ID types would create security holes.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	t.Run("all accept valid UUID", func(t *testing.T) {
		_, errVault := ParseVaultID(validUUID)
		_, errScoped := ParseScopedVaultID(validUUID)
		_, errTenant := ParseTenantID(validUUID)
		_, errLifetime := ParseLifetimeID(validUUID)

		require.NoError(t, errVault)
		require.NoError(t, errScoped)
		require.NoError(t, errTenant)
		require.NoError(t, errLifetime)
	})

	for _, input := range invalidInputs {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errVault := ParseVaultID(input)
			_, errScoped := ParseScopedVaultID(input)
			_, errTenant := ParseTenantID(input)
			_, errLifetime := ParseLifetimeID(input)

			require.Error(t, errVault)
			require.Error(t, errScoped)
			require.Error(t, errTenant)
			require.Error(t, errLifetime)
		})
	}
}

// TestStringAndNilHelpers covers the shared accessor surface.
func TestStringAndNilHelpers(t *testing.T) {
	u := uuid.New()

	assert.Equal(t, u.String(), VaultID(u).String())
	assert.Equal(t, u.String(), FingerprintID(u).String())

	assert.False(t, VaultID(u).IsNil())
	assert.True(t, VaultID{}.IsNil())
	assert.True(t, ScopedVaultID{}.IsNil())
	assert.True(t, LifetimeID{}.IsNil())
}
