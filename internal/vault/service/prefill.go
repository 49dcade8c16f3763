package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/prefill"
	"vaultcore/internal/vault/view"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/pkg/platform/audit"
	"vaultcore/pkg/platform/sentinel"
)

// Prefill copies eligible portable data from the source scope into the
// destination tenant's scope on the same vault. Fingerprinting runs before
// any lock is taken; the write itself runs inside the destination's locked
// transaction, skipping fields the destination acquired in between. For
// LoginMethods the destination scope may not exist yet and is created here.
func (s *Service) Prefill(ctx context.Context, sourceScopedVaultID id.ScopedVaultID, destTenantID id.TenantID, playbook prefill.Playbook, kind prefill.Kind) (id.Seqno, error) {
	ctx, span := tracer.Start(ctx, "service.Prefill",
		trace.WithAttributes(attribute.String("prefill_kind", string(kind))))
	defer span.End()

	if destTenantID.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "destination tenant id is required")
	}

	source, err := s.views.Build(ctx, sourceScopedVaultID, 0)
	if err != nil {
		return 0, err
	}
	vault := source.Vault()

	destScoped, err := s.deps.Vaults.FindScopedVault(ctx, vault.ID, destTenantID)
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		if kind != prefill.KindLoginMethods {
			return 0, dErrors.Newf(dErrors.CodeNotFound,
				"tenant %s has no scope on vault %s; onboarding prefill requires one", destTenantID, vault.ID)
		}
		destScoped = nil
	default:
		return 0, err
	}

	// The selection-time destination view is advisory: Apply re-checks
	// ownership under the lock.
	var destView *view.View
	if destScoped != nil {
		destView, err = s.views.Build(ctx, destScoped.ID, 0)
		if err != nil {
			return 0, err
		}
	}

	data, err := s.prefills.GetDataToPrefill(ctx, source, destView, playbook, kind, destTenantID)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("selected", len(data.Fields)))
	if len(data.Fields) == 0 {
		return 0, nil
	}

	var seqno id.Seqno
	err = s.deps.Runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deps.Vaults.LockVault(ctx, vault.ID); err != nil {
			return err
		}
		if destScoped == nil {
			destScoped = &models.ScopedVault{
				ID:         id.NewScopedVaultID(),
				VaultID:    vault.ID,
				TenantID:   destTenantID,
				ExternalID: models.NewExternalID(vault.Kind),
				IsActive:   true,
			}
			if err := s.deps.Vaults.CreateScopedVault(ctx, destScoped); err != nil {
				return err
			}
			if err := s.emit(ctx, audit.Event{
				Action:        string(audit.EventScopedVaultCreated),
				VaultID:       vault.ID,
				ScopedVaultID: destScoped.ID,
				TenantID:      destTenantID,
			}); err != nil {
				return err
			}
		}

		locked, err := s.views.BuildLocked(ctx, destScoped.ID)
		if err != nil {
			return err
		}
		seqno, err = s.prefills.Apply(ctx, locked, data)
		if err != nil {
			return err
		}

		return s.emit(ctx, audit.Event{
			Action:        string(audit.EventDataPrefilled),
			VaultID:       vault.ID,
			ScopedVaultID: destScoped.ID,
			TenantID:      destTenantID,
			Kinds:         fieldKindNames(data.Fields),
		})
	})
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.PrefillsApplied.Inc()
	}
	return seqno, nil
}

func fieldKindNames(fields []prefill.Field) []string {
	kinds := make([]models.DataIdentifier, len(fields))
	for i, f := range fields {
		kinds[i] = f.Kind
	}
	return kindNames(kinds)
}
