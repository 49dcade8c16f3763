package models

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
)

// VaultKind distinguishes the root encryption domains we store.
type VaultKind string

const (
	VaultKindPerson   VaultKind = "person"
	VaultKindBusiness VaultKind = "business"
)

func (k VaultKind) String() string { return string(k) }

// Valid reports whether the kind is one we support.
func (k VaultKind) Valid() bool {
	return k == VaultKindPerson || k == VaultKindBusiness
}

// Vault is the root encryption domain for one natural person or business.
// It holds the public key values are sealed to and the envelope-sealed
// private key only the boundary service can open. Created once per unique
// identity; never re-keyed.
type Vault struct {
	ID          id.VaultID
	Kind        VaultKind
	PublicKey   []byte
	EPrivateKey []byte
	IsLive      bool
	Sandbox     bool
	CreatedAt   time.Time
}

// ScopedVault is a tenant's binding to a vault: one row per
// (vault, tenant[, sandbox instance]). It carries the externally exposed
// opaque identifier; internal IDs never leave the engine. Never deleted,
// only soft-deactivated in test cleanup paths.
type ScopedVault struct {
	ID              id.ScopedVaultID
	VaultID         id.VaultID
	TenantID        id.TenantID
	ExternalID      string
	SandboxInstance string
	IsActive        bool
	CreatedAt       time.Time
}

// NewExternalID mints the opaque token a scoped vault is known by outside the
// engine. The prefix encodes the vault kind.
func NewExternalID(kind VaultKind) string {
	u := uuid.New()
	token := hex.EncodeToString(u[:])
	if kind == VaultKindBusiness {
		return "bv_" + token
	}
	return "pv_" + token
}

// RequireSameVault guards operations that must not cross encryption domains.
func RequireSameVault(a, b ScopedVault) error {
	if a.VaultID != b.VaultID {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"scoped vaults %s and %s belong to different vaults", a.ID, b.ID)
	}
	return nil
}
