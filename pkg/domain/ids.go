// Package domain defines the typed identifiers shared across the vault engine.
//
// Every entity gets its own UUID-backed type so a VaultID can never be passed
// where a ScopedVaultID is expected. Parsing happens once, at trust
// boundaries; internal code works with the typed values only.
package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "vaultcore/pkg/domain-errors"
)

type (
	// VaultID identifies the root encryption domain for one person or business.
	VaultID uuid.UUID

	// ScopedVaultID identifies one tenant's binding to a vault.
	ScopedVaultID uuid.UUID

	// TenantID identifies a tenant of the platform.
	TenantID uuid.UUID

	// LifetimeID identifies one versioned (vault, field) existence record.
	LifetimeID uuid.UUID

	// FingerprintID identifies one stored fingerprint row.
	FingerprintID uuid.UUID
)

func (id VaultID) String() string       { return uuid.UUID(id).String() }
func (id ScopedVaultID) String() string { return uuid.UUID(id).String() }
func (id TenantID) String() string      { return uuid.UUID(id).String() }
func (id LifetimeID) String() string    { return uuid.UUID(id).String() }
func (id FingerprintID) String() string { return uuid.UUID(id).String() }

func (id VaultID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ScopedVaultID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id LifetimeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id FingerprintID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewVaultID allocates a fresh vault identifier.
func NewVaultID() VaultID { return VaultID(uuid.New()) }

// NewScopedVaultID allocates a fresh scoped-vault identifier.
func NewScopedVaultID() ScopedVaultID { return ScopedVaultID(uuid.New()) }

// NewTenantID allocates a fresh tenant identifier.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewLifetimeID allocates a fresh lifetime identifier.
func NewLifetimeID() LifetimeID { return LifetimeID(uuid.New()) }

// NewFingerprintID allocates a fresh fingerprint identifier.
func NewFingerprintID() FingerprintID { return FingerprintID(uuid.New()) }

// ParseVaultID parses a vault ID, rejecting empty, malformed and nil UUIDs.
func ParseVaultID(s string) (VaultID, error) {
	u, err := parseUUID(s, "vault id")
	return VaultID(u), err
}

// ParseScopedVaultID parses a scoped-vault ID, rejecting empty, malformed and nil UUIDs.
func ParseScopedVaultID(s string) (ScopedVaultID, error) {
	u, err := parseUUID(s, "scoped vault id")
	return ScopedVaultID(u), err
}

// ParseTenantID parses a tenant ID, rejecting empty, malformed and nil UUIDs.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s, "tenant id")
	return TenantID(u), err
}

// ParseLifetimeID parses a lifetime ID, rejecting empty, malformed and nil UUIDs.
func ParseLifetimeID(s string) (LifetimeID, error) {
	u, err := parseUUID(s, "lifetime id")
	return LifetimeID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s is required", label))
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("invalid %s", label))
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s cannot be the nil UUID", label))
	}
	return u, nil
}
