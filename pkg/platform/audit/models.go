package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "vaultcore/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention (e.g., 7 years).
	// Examples: vault creation, decrypts, commits, prefill copies.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and forensics.
	// These feed into SIEM systems and alerting pipelines.
	// Examples: scoped-vault deactivation, enclave call failures.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled or aggregated with shorter retention.
	// Examples: projection builds, dupe lookups.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions against a vault.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category      EventCategory
	Timestamp     time.Time
	VaultID       id.VaultID
	ScopedVaultID id.ScopedVaultID
	TenantID      id.TenantID
	Action        string
	// Principal is the authenticated caller identity (API key ID or service
	// account), always distinct from the data subject.
	Principal string
	// Purpose is the caller-stated reason for accessing sealed data. Required
	// for decrypt events.
	Purpose string
	// Kinds lists the field identifiers touched, when the action concerns
	// specific fields.
	Kinds     []string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	// Vault lifecycle
	EventVaultCreated           AuditEvent = "vault_created"
	EventScopedVaultCreated     AuditEvent = "scoped_vault_created"
	EventScopedVaultDeactivated AuditEvent = "scoped_vault_deactivated"

	// Data lifecycle
	EventDataWritten     AuditEvent = "data_written"
	EventDataAccessed    AuditEvent = "data_accessed"
	EventDataCommitted   AuditEvent = "data_committed"
	EventDataPrefilled   AuditEvent = "data_prefilled"
	EventDataDeactivated AuditEvent = "data_deactivated"

	// Monitoring
	EventDupesChecked    AuditEvent = "dupes_checked"
	EventProjectionBuilt AuditEvent = "projection_built"
	EventEnclaveFailure  AuditEvent = "enclave_failure"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: debugging, operational visibility, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	// Compliance events - require tamper-proof storage
	EventVaultCreated:    CategoryCompliance,
	EventDataWritten:     CategoryCompliance,
	EventDataAccessed:    CategoryCompliance,
	EventDataCommitted:   CategoryCompliance,
	EventDataPrefilled:   CategoryCompliance,
	EventDataDeactivated: CategoryCompliance,

	// Security events - feed into SIEM and alerting
	EventScopedVaultDeactivated: CategorySecurity,
	EventEnclaveFailure:         CategorySecurity,

	// Operations events - routine activity, can be sampled
	EventScopedVaultCreated: CategoryOperations,
	EventDupesChecked:       CategoryOperations,
	EventProjectionBuilt:    CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. The Postgres implementation writes to the
// transactional outbox; the in-memory implementation backs tests.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByScopedVault(ctx context.Context, scopedVaultID id.ScopedVaultID) ([]Event, error)
}

// OutboxEntry is one unpublished row of the transactional outbox. The outbox
// worker drains entries in insertion order and publishes them to Kafka.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}
