package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vaultcore/internal/boundary"
	"vaultcore/internal/vault/gateway"
	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/view"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/pkg/platform/audit"
)

// auditKindsPerEvent caps how many field kinds one access event carries; a
// wider decrypt splits into multiple events for the same subject.
const auditKindsPerEvent = boundary.MaxBatchSize

// Decrypt resolves the requested fields for one scope and accounts for every
// field that crossed the boundary. Purpose is mandatory: an access event
// without a stated reason is useless to compliance. The call fails if the
// access cannot be recorded.
func (s *Service) Decrypt(ctx context.Context, scopedVaultID id.ScopedVaultID, reqs []gateway.Request, purpose, principal string) (*gateway.Result, error) {
	ctx, span := tracer.Start(ctx, "service.Decrypt",
		trace.WithAttributes(attribute.Int("requests", len(reqs))))
	defer span.End()

	if purpose == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "decrypt purpose is required")
	}
	if len(reqs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields requested")
	}

	v, err := s.views.Build(ctx, scopedVaultID, 0)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := s.gateway.Decrypt(ctx, v, reqs)
	if s.metrics != nil {
		s.metrics.BoundaryDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if emitErr := s.emit(ctx, audit.Event{
			Action:        string(audit.EventEnclaveFailure),
			VaultID:       v.Vault().ID,
			ScopedVaultID: scopedVaultID,
			TenantID:      v.ScopedVault().TenantID,
			Principal:     principal,
			Reason:        err.Error(),
		}); emitErr != nil {
			s.log.Error().Err(emitErr).Msg("enclave failure audit emit failed")
		}
		return nil, err
	}

	if err := s.auditAccess(ctx, v, result.RequiredDecrypt, purpose, principal); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.FieldsDecrypted.Add(float64(len(result.RequiredDecrypt)))
	}
	return result, nil
}

// auditAccess emits one data_accessed event per chunk of decrypted kinds.
// Fields served from plaintext never appear: only true decryption is access.
func (s *Service) auditAccess(ctx context.Context, v *view.View, decrypted []models.DataIdentifier, purpose, principal string) error {
	for start := 0; start < len(decrypted); start += auditKindsPerEvent {
		chunk := decrypted[start:min(start+auditKindsPerEvent, len(decrypted))]
		err := s.emit(ctx, audit.Event{
			Action:        string(audit.EventDataAccessed),
			VaultID:       v.Vault().ID,
			ScopedVaultID: v.ScopedVault().ID,
			TenantID:      v.ScopedVault().TenantID,
			Principal:     principal,
			Purpose:       purpose,
			Kinds:         kindNames(chunk),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
