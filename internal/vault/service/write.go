package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vaultcore/internal/boundary"
	"vaultcore/internal/crypto"
	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/store/ledger"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/pkg/platform/audit"
)

// plaintextKinds are non-private identity fields stored in the clear and
// served without crossing the decrypt boundary.
var plaintextKinds = models.NewDISet(models.IDCountry, models.IDState)

// WriteSpeculative stages field values into the scope's speculative layer,
// superseding any prior speculative value of the same kind it owns. Values
// seal to the vault public key before anything persists; fingerprints are
// computed through the boundary so plaintext never touches this process
// again. Document kinds take a reference to pre-uploaded sealed content.
func (s *Service) WriteSpeculative(ctx context.Context, scopedVaultID id.ScopedVaultID, in map[models.DataIdentifier]string) (id.Seqno, error) {
	ctx, span := tracer.Start(ctx, "service.WriteSpeculative",
		trace.WithAttributes(attribute.Int("fields", len(in))))
	defer span.End()

	if len(in) == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "no fields to write")
	}
	for di, v := range in {
		if di == "" {
			return 0, dErrors.New(dErrors.CodeValidation, "empty field kind")
		}
		if v == "" {
			return 0, dErrors.Newf(dErrors.CodeValidation, "empty value for %s", di)
		}
	}

	scoped, err := s.deps.Vaults.GetScopedVault(ctx, scopedVaultID)
	if err != nil {
		return 0, err
	}
	vault, err := s.deps.Vaults.GetVault(ctx, scoped.VaultID)
	if err != nil {
		return 0, err
	}

	values, err := sealValues(vault.PublicKey, in)
	if err != nil {
		return 0, err
	}
	fps, err := s.fingerprintValues(ctx, *vault, scoped.TenantID, in, values)
	if err != nil {
		return 0, err
	}

	kinds := make([]models.DataIdentifier, 0, len(values))
	for di := range values {
		kinds = append(kinds, di)
	}

	var seqno id.Seqno
	err = s.deps.Runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deps.Vaults.LockVault(ctx, vault.ID); err != nil {
			return err
		}
		seqno, err = s.deps.Ledger.NextSeqno(ctx)
		if err != nil {
			return fmt.Errorf("allocate seqno: %w", err)
		}

		// Supersede the scope's own speculative predecessors at the same
		// seqno the replacements are created with.
		prior, err := s.ownedSpeculative(ctx, vault.ID, scoped.ID, kinds)
		if err != nil {
			return err
		}
		if len(prior) > 0 {
			if err := s.deps.Ledger.Deactivate(ctx, prior, seqno); err != nil {
				return err
			}
			if err := s.deps.Fingerprints.DeactivateByLifetimes(ctx, prior, seqno); err != nil {
				return err
			}
		}

		b := ledger.NewBatchBuilder(vault.ID, scoped.ID, models.SourceTenant)
		for di, value := range values {
			if err := b.AddField(di, nil); err != nil {
				return err
			}
			var attachErr error
			switch value.Class() {
			case models.ClassSealed:
				attachErr = b.AttachSealed(di, value.EData)
			case models.ClassPlaintext:
				attachErr = b.AttachPlaintext(di, value.PData)
			case models.ClassLargeSealed:
				attachErr = b.AttachDocRef(di, value.DocRef)
			}
			if attachErr != nil {
				return attachErr
			}
		}
		lifetimes, rows, err := b.Build(seqno, time.Now())
		if err != nil {
			return err
		}
		if err := s.deps.Ledger.CreateBatch(ctx, lifetimes); err != nil {
			return err
		}
		if err := s.deps.Fields.CreateBatch(ctx, rows); err != nil {
			return err
		}

		var created []*models.Fingerprint
		for _, l := range lifetimes {
			for _, fp := range fps[l.Kind] {
				fp.LifetimeID = l.ID
				fp.ScopedVaultID = scoped.ID
				fp.CreatedSeqno = seqno
				fp.CreatedAt = l.CreatedAt
				cp := fp
				created = append(created, &cp)
			}
		}
		if err := s.deps.Fingerprints.CreateBatch(ctx, created); err != nil {
			return err
		}

		return s.emit(ctx, audit.Event{
			Action:        string(audit.EventDataWritten),
			VaultID:       vault.ID,
			ScopedVaultID: scoped.ID,
			TenantID:      scoped.TenantID,
			Kinds:         kindNames(kinds),
		})
	})
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.FieldsWritten.Add(float64(len(values)))
	}
	return seqno, nil
}

// sealValues classifies and seals the incoming map: document kinds become
// references, non-private kinds stay plaintext, everything else seals to the
// vault public key.
func sealValues(vaultPublicKey []byte, in map[models.DataIdentifier]string) (map[models.DataIdentifier]models.Value, error) {
	out := make(map[models.DataIdentifier]models.Value, len(in))
	for di, v := range in {
		value := models.Value{Kind: di}
		switch {
		case di.IsDocument():
			value.DocRef = v
		case plaintextKinds.Has(di):
			value.PData = v
		default:
			sealed, err := crypto.Seal(vaultPublicKey, []byte(v))
			if err != nil {
				return nil, dErrors.Wrapf(err, dErrors.CodeInternal, "seal %s", di)
			}
			value.EData = sealed
		}
		out[di] = value
	}
	return out, nil
}

// fingerprintValues computes the fingerprints each identity field gets:
// global- and tenant-scoped through the boundary for sealed values, an
// unsalted plaintext-scope hash computed locally for non-private ones.
func (s *Service) fingerprintValues(
	ctx context.Context,
	vault models.Vault,
	tenantID id.TenantID,
	in map[models.DataIdentifier]string,
	values map[models.DataIdentifier]models.Value,
) (map[models.DataIdentifier][]models.Fingerprint, error) {
	out := make(map[models.DataIdentifier][]models.Fingerprint)

	newFP := func(di models.DataIdentifier, scope models.FingerprintScope, hash []byte) models.Fingerprint {
		fp := models.Fingerprint{
			ID:      id.NewFingerprintID(),
			VaultID: vault.ID,
			Kind:    models.SingleKind(di),
			Scope:   scope,
			Hash:    hash,
		}
		if scope == models.ScopeTenant {
			tenant := tenantID
			fp.TenantID = &tenant
		}
		return fp
	}

	var items []boundary.FingerprintItem
	for di, value := range values {
		if !di.IsIdentity() {
			continue
		}
		switch value.Class() {
		case models.ClassSealed:
			items = append(items,
				boundary.FingerprintItem{Ref: fpRef(models.ScopeGlobal, di), Salt: s.deps.Salts.Global(), Sealed: value.EData},
				boundary.FingerprintItem{Ref: fpRef(models.ScopeTenant, di), Salt: s.deps.Salts.Tenant(tenantID), Sealed: value.EData},
			)
		case models.ClassPlaintext:
			out[di] = append(out[di], newFP(di, models.ScopePlaintext, crypto.Fingerprint(nil, []byte(in[di]))))
		}
	}

	for start := 0; start < len(items); start += boundary.MaxBatchSize {
		chunk := items[start:min(start+boundary.MaxBatchSize, len(items))]
		hashes, err := s.deps.Boundary.BatchFingerprint(ctx, vault.EPrivateKey, chunk)
		if err != nil {
			return nil, fmt.Errorf("fingerprint fields: %w", err)
		}
		for r, hash := range hashes {
			scope, di, ok := parseFPRef(r)
			if !ok {
				return nil, dErrors.Newf(dErrors.CodeBoundary, "boundary returned unknown fingerprint ref %q", r)
			}
			out[di] = append(out[di], newFP(di, scope, hash))
		}
	}
	return out, nil
}

// ownedSpeculative lists the scope's own live speculative lifetimes of the
// given kinds.
func (s *Service) ownedSpeculative(ctx context.Context, vaultID id.VaultID, scopedVaultID id.ScopedVaultID, kinds []models.DataIdentifier) ([]id.LifetimeID, error) {
	visible, err := s.deps.Ledger.ListVisible(ctx, ledger.Filter{
		VaultID:           vaultID,
		Kinds:             kinds,
		ReaderScopedVault: scopedVaultID,
	})
	if err != nil {
		return nil, err
	}
	var out []id.LifetimeID
	for _, l := range visible {
		if l.Status() == models.StatusSpeculative && l.ScopedVaultID == scopedVaultID {
			out = append(out, l.ID)
		}
	}
	return out, nil
}

func kindNames(kinds []models.DataIdentifier) []string {
	out := make([]string, len(kinds))
	for i, di := range kinds {
		out[i] = string(di)
	}
	sort.Strings(out)
	return out
}

func fpRef(scope models.FingerprintScope, di models.DataIdentifier) string {
	return string(scope) + "|" + string(di)
}

func parseFPRef(r string) (models.FingerprintScope, models.DataIdentifier, bool) {
	scope, di, ok := strings.Cut(r, "|")
	if !ok || !models.FingerprintScope(scope).Valid() {
		return "", "", false
	}
	return models.FingerprintScope(scope), models.DataIdentifier(di), true
}
