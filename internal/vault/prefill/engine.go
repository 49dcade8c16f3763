// Package prefill copies eligible portable fields from one tenant scope into
// another scope on the same vault, preserving provenance so the same datum is
// never copied twice.
package prefill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vaultcore/internal/boundary"
	"vaultcore/internal/crypto"
	"vaultcore/internal/platform/logger"
	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/store/fields"
	"vaultcore/internal/vault/store/fingerprint"
	"vaultcore/internal/vault/store/ledger"
	"vaultcore/internal/vault/view"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
)

var tracer = otel.Tracer("vaultcore/internal/vault/prefill")

// Kind selects which phase of prefill is running.
type Kind string

const (
	// KindLoginMethods runs before any destination tenant scope exists and
	// carries contact-info fields only.
	KindLoginMethods Kind = "login_methods"

	// KindOnboarding runs after the destination scope exists and carries
	// everything except contact info, which LoginMethods already handled.
	KindOnboarding Kind = "onboarding"
)

func (k Kind) permits(di models.DataIdentifier) bool {
	if k == KindLoginMethods {
		return di.IsContactInfo()
	}
	return !di.IsContactInfo()
}

// Playbook is the destination flow's collection requirements.
type Playbook struct {
	Required models.DISet
}

// Field is one selected datum: the source payload plus the provenance link
// the destination copy will carry.
type Field struct {
	Kind   models.DataIdentifier
	Value  models.Value
	Origin id.LifetimeID
}

// Data is a prefill selection plus the fingerprints precomputed for the
// destination tenant. It is single-use: Apply consumes it.
type Data struct {
	SourceVaultID id.VaultID
	DestTenantID  id.TenantID
	Fields        []Field

	// Fingerprints are keyed by field kind; their LifetimeID is filled in
	// when Apply creates the destination lifetimes.
	Fingerprints map[models.DataIdentifier][]models.Fingerprint

	// ContactInfoCarryover lists the verified contact kinds carried
	// regardless of the playbook's requirements.
	ContactInfoCarryover []models.DataIdentifier

	applied bool
}

// Engine selects and applies prefill data. Fingerprinting happens before any
// lock; Apply runs inside the destination's write-locked transaction.
type Engine struct {
	client boundary.Client
	ledger ledger.Store
	fields fields.Store
	fps    fingerprint.Store
	salts  crypto.Salts
	log    *logger.Logger
}

// NewEngine wires a prefill engine.
func NewEngine(client boundary.Client, ledgerStore ledger.Store, fieldStore fields.Store, fpStore fingerprint.Store, salts crypto.Salts, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{client: client, ledger: ledgerStore, fields: fieldStore, fps: fpStore, salts: salts, log: log}
}

// GetDataToPrefill selects the source fields eligible for the destination
// and computes their fingerprints through the boundary. dest is nil for
// LoginMethods, which runs before the destination scope exists. The source
// view is consumed: destination state may advance before Apply runs, so the
// selection must not feed a second mutation.
func (e *Engine) GetDataToPrefill(ctx context.Context, source *view.View, dest *view.View, playbook Playbook, kind Kind, destTenantID id.TenantID) (*Data, error) {
	ctx, span := tracer.Start(ctx, "prefill.GetDataToPrefill",
		trace.WithAttributes(attribute.String("prefill_kind", string(kind))))
	defer span.End()

	if err := source.Usable(); err != nil {
		return nil, err
	}
	if source.Vault().Kind != models.VaultKindPerson {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"prefill source vault is %s; only person vaults prefill", source.Vault().Kind)
	}
	if dest != nil {
		if source.Vault().ID != dest.Vault().ID {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
				"prefill source vault %s and destination vault %s differ",
				source.Vault().ID, dest.Vault().ID)
		}
	}

	data := &Data{
		SourceVaultID: source.Vault().ID,
		DestTenantID:  destTenantID,
		Fingerprints:  map[models.DataIdentifier][]models.Fingerprint{},
	}

	selected := e.selectFields(source, dest, playbook, kind, data)
	span.SetAttributes(attribute.Int("selected", len(selected)))
	data.Fields = selected
	source.Consume()
	if len(selected) == 0 {
		return data, nil
	}

	if err := e.fingerprintFields(ctx, source.Vault(), destTenantID, data); err != nil {
		return nil, err
	}
	return data, nil
}

// selectFields applies the selection policy in order: portable candidates,
// verified-supersedes-unverified, kind permission, playbook requirement
// (verified contact always carries), destination ownership and provenance
// dedup, and synthesis of unverified counterparts.
func (e *Engine) selectFields(source *view.View, dest *view.View, playbook Playbook, kind Kind, data *Data) []Field {
	candidates := models.DISet{}
	for _, di := range source.PortableKinds() {
		candidates[di] = struct{}{}
	}
	for di := range candidates {
		if verified, ok := di.VerifiedCounterpart(); ok && candidates.Has(verified) {
			delete(candidates, di)
		}
	}

	var out []Field
	synthesized := models.DISet{}
	for di := range candidates {
		if !kind.permits(di) {
			continue
		}
		entry, ok := source.GetPortable(di)
		if !ok || entry.Value == nil {
			continue
		}

		alwaysCarry := di.IsVerified()
		if !alwaysCarry && !playbook.Required.Has(di) {
			continue
		}
		if dest != nil && alreadyAtDestination(dest, di) {
			continue
		}

		if alwaysCarry {
			data.ContactInfoCarryover = append(data.ContactInfoCarryover, di)
		}
		// Copies carry the root of the provenance chain, so a copy of a copy
		// still dedups against the original.
		root := provenanceRoot(entry.Lifetime)
		out = append(out, Field{Kind: di, Value: *entry.Value, Origin: root})

		// Verified contact info writes its derived unverified sibling
		// alongside, sharing payload and provenance.
		if unverified, ok := di.UnverifiedCounterpart(); ok && !synthesized.Has(unverified) {
			if dest == nil || !alreadyAtDestination(dest, unverified) {
				synthesized[unverified] = struct{}{}
				out = append(out, Field{Kind: unverified, Value: *entry.Value, Origin: root})
			}
		}
	}
	return out
}

// alreadyAtDestination reports whether the destination scope itself holds
// this kind: either entered there directly, or as a provenance-linked copy
// from an earlier prefill. The source's portable entry is visible in the
// destination view too, so mere visibility never counts as ownership.
func alreadyAtDestination(dest *view.View, di models.DataIdentifier) bool {
	if _, ok := dest.GetSpeculative(di); ok {
		return true
	}
	p, ok := dest.GetPortable(di)
	return ok && p.Lifetime.ScopedVaultID == dest.ScopedVault().ID
}

// provenanceRoot resolves the lifetime a copy chain started from.
func provenanceRoot(l models.DataLifetime) id.LifetimeID {
	if l.OriginID != nil {
		return *l.OriginID
	}
	return l.ID
}

// fingerprintFields computes global- and tenant-scoped fingerprints for each
// selected sealed field through the boundary, chunked and keyed so results
// map back to (kind, scope).
func (e *Engine) fingerprintFields(ctx context.Context, vault models.Vault, destTenantID id.TenantID, data *Data) error {
	tenantSalt := e.salts.Tenant(destTenantID)
	globalSalt := e.salts.Global()

	var items []boundary.FingerprintItem
	for _, f := range data.Fields {
		if f.Value.Class() != models.ClassSealed {
			continue
		}
		items = append(items,
			boundary.FingerprintItem{Ref: ref(models.ScopeGlobal, f.Kind), Salt: globalSalt, Sealed: f.Value.EData},
			boundary.FingerprintItem{Ref: ref(models.ScopeTenant, f.Kind), Salt: tenantSalt, Sealed: f.Value.EData},
		)
	}
	if len(items) == 0 {
		return nil
	}

	for start := 0; start < len(items); start += boundary.MaxBatchSize {
		chunk := items[start:min(start+boundary.MaxBatchSize, len(items))]
		hashes, err := e.client.BatchFingerprint(ctx, vault.EPrivateKey, chunk)
		if err != nil {
			return fmt.Errorf("fingerprint prefill fields: %w", err)
		}
		for r, hash := range hashes {
			scope, di, ok := parseRef(r)
			if !ok {
				return dErrors.Newf(dErrors.CodeBoundary, "boundary returned unknown fingerprint ref %q", r)
			}
			fp := models.Fingerprint{
				ID:      id.NewFingerprintID(),
				VaultID: vault.ID,
				Kind:    models.SingleKind(di),
				Scope:   scope,
				Hash:    hash,
			}
			if scope == models.ScopeTenant {
				tenant := destTenantID
				fp.TenantID = &tenant
			}
			data.Fingerprints[di] = append(data.Fingerprints[di], fp)
		}
	}
	return nil
}

// Apply writes the selection into the destination scope. Must run inside the
// destination's write-locked transaction; fields the destination acquired
// since selection are skipped rather than duplicated.
func (e *Engine) Apply(ctx context.Context, dest *view.View, data *Data) (id.Seqno, error) {
	ctx, span := tracer.Start(ctx, "prefill.Apply")
	defer span.End()

	if err := dest.RequireLocked(); err != nil {
		return 0, err
	}
	if data.applied {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, "prefill data already applied")
	}
	if data.SourceVaultID != dest.Vault().ID {
		return 0, dErrors.Newf(dErrors.CodeInvariantViolation,
			"prefill selected from vault %s but destination is vault %s",
			data.SourceVaultID, dest.Vault().ID)
	}
	data.applied = true

	seqno, err := e.ledger.NextSeqno(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate seqno: %w", err)
	}

	b := ledger.NewBatchBuilder(dest.Vault().ID, dest.ScopedVault().ID, models.SourcePrefill)
	written := 0
	for _, f := range data.Fields {
		if alreadyAtDestination(dest, f.Kind) {
			e.log.Debug().
				Str("scoped_vault_id", dest.ScopedVault().ID.String()).
				Str("kind", f.Kind.String()).
				Msg("destination acquired field since selection; skipping")
			continue
		}
		origin := f.Origin
		if err := b.AddField(f.Kind, &origin); err != nil {
			return 0, err
		}
		var attachErr error
		switch f.Value.Class() {
		case models.ClassSealed:
			attachErr = b.AttachSealed(f.Kind, f.Value.EData)
		case models.ClassPlaintext:
			attachErr = b.AttachPlaintext(f.Kind, f.Value.PData)
		case models.ClassLargeSealed:
			attachErr = b.AttachDocRef(f.Kind, f.Value.DocRef)
		}
		if attachErr != nil {
			return 0, attachErr
		}
		written++
	}
	span.SetAttributes(attribute.Int("written", written))
	if written == 0 {
		return seqno, nil
	}

	lifetimes, values, err := b.Build(seqno, time.Now())
	if err != nil {
		return 0, err
	}
	if err := e.ledger.CreateBatch(ctx, lifetimes); err != nil {
		return 0, err
	}
	if err := e.fields.CreateBatch(ctx, values); err != nil {
		return 0, err
	}

	var fps []*models.Fingerprint
	for _, l := range lifetimes {
		for _, fp := range data.Fingerprints[l.Kind] {
			fp.LifetimeID = l.ID
			fp.ScopedVaultID = dest.ScopedVault().ID
			fp.CreatedSeqno = seqno
			fp.CreatedAt = l.CreatedAt
			cp := fp
			fps = append(fps, &cp)
		}
	}
	if err := e.fps.CreateBatch(ctx, fps); err != nil {
		return 0, err
	}

	dest.Consume()
	return seqno, nil
}

func ref(scope models.FingerprintScope, di models.DataIdentifier) string {
	return string(scope) + "|" + string(di)
}

func parseRef(r string) (models.FingerprintScope, models.DataIdentifier, bool) {
	scope, di, ok := strings.Cut(r, "|")
	if !ok || !models.FingerprintScope(scope).Valid() {
		return "", "", false
	}
	return models.FingerprintScope(scope), models.DataIdentifier(di), true
}
