package service

import (
	"context"

	"vaultcore/internal/vault/dedup"
	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
	"vaultcore/pkg/platform/audit"
)

// CommitIdentityData promotes the scope's speculative identity data to
// portable in one transaction, superseding lesser variants atomically.
func (s *Service) CommitIdentityData(ctx context.Context, scopedVaultID id.ScopedVaultID) (id.Seqno, error) {
	ctx, span := tracer.Start(ctx, "service.CommitIdentityData")
	defer span.End()

	var seqno id.Seqno
	err := s.deps.Runner.RunInTx(ctx, func(ctx context.Context) error {
		v, err := s.views.BuildLocked(ctx, scopedVaultID)
		if err != nil {
			return err
		}
		var staged []models.DataIdentifier
		for _, di := range v.SpeculativeKinds() {
			if di.IsIdentity() {
				staged = append(staged, di)
			}
		}

		seqno, err = s.commits.CommitIdentityData(ctx, v)
		if err != nil {
			return err
		}

		return s.emit(ctx, audit.Event{
			Action:        string(audit.EventDataCommitted),
			VaultID:       v.Vault().ID,
			ScopedVaultID: scopedVaultID,
			TenantID:      v.ScopedVault().TenantID,
			Kinds:         kindNames(staged),
		})
	})

	if s.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.CommitsTotal.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		return 0, err
	}
	return seqno, nil
}

// GetDupes returns other scoped vaults holding matching identity data:
// itemized within the subject's tenant, aggregate counts elsewhere.
func (s *Service) GetDupes(ctx context.Context, scopedVaultID id.ScopedVaultID) (*dedup.Result, error) {
	ctx, span := tracer.Start(ctx, "service.GetDupes")
	defer span.End()

	result, err := s.dupes.GetDupes(ctx, scopedVaultID)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DupeChecksTotal.Inc()
	}
	if err := s.emit(ctx, audit.Event{
		Action:        string(audit.EventDupesChecked),
		ScopedVaultID: scopedVaultID,
	}); err != nil {
		s.log.Error().Err(err).Msg("dupe check audit emit failed")
	}
	return result, nil
}
