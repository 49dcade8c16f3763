package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "vaultcore/pkg/domain"
	audit "vaultcore/pkg/platform/audit"
	txcontext "vaultcore/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table in the same transaction as the data
// change they describe, and published to Kafka by the outbox worker. Kafka is
// the source of truth for audit events.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID            string   `json:"ID"`
	Category      string   `json:"Category"`
	Timestamp     string   `json:"Timestamp"`
	VaultID       string   `json:"VaultID,omitempty"`
	ScopedVaultID string   `json:"ScopedVaultID,omitempty"`
	TenantID      string   `json:"TenantID,omitempty"`
	Action        string   `json:"Action"`
	Principal     string   `json:"Principal,omitempty"`
	Purpose       string   `json:"Purpose,omitempty"`
	Kinds         []string `json:"Kinds,omitempty"`
	Reason        string   `json:"Reason,omitempty"`
	RequestID     string   `json:"RequestID,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// The category always derives from the action; eventCategories is the
	// source of truth even when callers pre-fill Category.
	category := audit.AuditEvent(event.Action).Category()

	payload := outboxPayload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		Principal: event.Principal,
		Purpose:   event.Purpose,
		Kinds:     event.Kinds,
		Reason:    event.Reason,
		RequestID: event.RequestID,
	}
	if !event.VaultID.IsNil() {
		payload.VaultID = event.VaultID.String()
	}
	if !event.ScopedVaultID.IsNil() {
		payload.ScopedVaultID = event.ScopedVaultID.String()
	}
	if !event.TenantID.IsNil() {
		payload.TenantID = event.TenantID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Scoped-vault events aggregate under the scoped vault so per-subject
	// ordering survives partitioned publishing.
	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.ScopedVaultID.IsNil() {
		aggregateType = "scoped_vault"
		aggregateID = event.ScopedVaultID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByScopedVault returns events recorded for one scoped vault, oldest
// first. It reads the outbox directly, so it also sees rows not yet drained
// to Kafka.
func (s *Store) ListByScopedVault(ctx context.Context, scopedVaultID id.ScopedVaultID) ([]audit.Event, error) {
	query := `
		SELECT payload
		FROM outbox
		WHERE aggregate_type = 'scoped_vault' AND aggregate_id = $1
		ORDER BY created_at
	`

	rows, err := s.db.QueryContext(ctx, query, scopedVaultID.String())
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outbox payload: %w", err)
		}
		event, err := decodePayload(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return events, nil
}

// ListUnpublished returns up to limit undrained outbox entries in insertion
// order.
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var entry audit.OutboxEntry
		err := rows.Scan(
			&entry.ID,
			&entry.AggregateType,
			&entry.AggregateID,
			&entry.EventType,
			&entry.Payload,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps the given outbox entries as drained. Entries are never
// deleted; published_at doubles as the retention watermark.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE outbox SET published_at = $1 WHERE id = ANY($2)`
	_, err := s.execer(ctx).ExecContext(ctx, query, time.Now(), ids)
	if err != nil {
		return fmt.Errorf("mark outbox entries published: %w", err)
	}
	return nil
}

func decodePayload(raw []byte) (audit.Event, error) {
	var payload outboxPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return audit.Event{}, fmt.Errorf("unmarshal outbox payload: %w", err)
	}

	event := audit.Event{
		Category:  audit.EventCategory(payload.Category),
		Action:    payload.Action,
		Principal: payload.Principal,
		Purpose:   payload.Purpose,
		Kinds:     payload.Kinds,
		Reason:    payload.Reason,
		RequestID: payload.RequestID,
	}
	if payload.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp)
		if err != nil {
			return audit.Event{}, fmt.Errorf("parse outbox timestamp: %w", err)
		}
		event.Timestamp = ts
	}
	if payload.VaultID != "" {
		vaultID, err := id.ParseVaultID(payload.VaultID)
		if err != nil {
			return audit.Event{}, err
		}
		event.VaultID = vaultID
	}
	if payload.ScopedVaultID != "" {
		scopedID, err := id.ParseScopedVaultID(payload.ScopedVaultID)
		if err != nil {
			return audit.Event{}, err
		}
		event.ScopedVaultID = scopedID
	}
	if payload.TenantID != "" {
		tenantID, err := id.ParseTenantID(payload.TenantID)
		if err != nil {
			return audit.Event{}, err
		}
		event.TenantID = tenantID
	}
	return event, nil
}
