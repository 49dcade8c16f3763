// Package commit promotes speculative identity data to portable at decision
// time, enforcing the most-complete-variant-wins replacement policy.
package commit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"vaultcore/internal/platform/logger"
	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/store/fingerprint"
	"vaultcore/internal/vault/store/ledger"
	"vaultcore/internal/vault/view"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
)

var tracer = otel.Tracer("vaultcore/internal/vault/commit")

// Engine applies the identity-data commit protocol. All mutations run in the
// caller's transaction under the vault lock the view was built with.
type Engine struct {
	ledger       ledger.Store
	fingerprints fingerprint.Store
	log          *logger.Logger
}

// NewEngine wires a commit engine over the ledger and fingerprint stores.
func NewEngine(ledgerStore ledger.Store, fpStore fingerprint.Store, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{ledger: ledgerStore, fingerprints: fpStore, log: log}
}

// plan is the full set of transitions a commit will apply under one seqno.
type plan struct {
	// promote: surviving speculative lifetimes becoming portable.
	promote []models.DataLifetime

	// supersede: portable lifetimes replaced by a promoted option.
	supersede []models.DataLifetime

	// reject: speculative lifetimes whose fuller variant is already
	// portable; they deactivate without ever being promoted.
	reject []models.DataLifetime
}

// CommitIdentityData promotes the vault's speculative identity options for
// the view's scope and returns the seqno all transitions share. Committing
// with no speculative data is a no-op that still allocates a seqno.
//
// Only identity-class fields participate; custom, document and business data
// use separate append-only paths.
func (e *Engine) CommitIdentityData(ctx context.Context, v *view.View) (id.Seqno, error) {
	ctx, span := tracer.Start(ctx, "commit.CommitIdentityData")
	defer span.End()

	if err := v.RequireLocked(); err != nil {
		return 0, err
	}

	p := e.buildPlan(v)
	span.SetAttributes(
		attribute.Int("promote", len(p.promote)),
		attribute.Int("supersede", len(p.supersede)),
		attribute.Int("reject", len(p.reject)),
	)
	if err := p.assertTransitions(v.ScopedVault().ID); err != nil {
		return 0, err
	}

	seqno, err := e.ledger.NextSeqno(ctx)
	if err != nil {
		return 0, fmt.Errorf("allocate seqno: %w", err)
	}

	deactivate := lifetimeIDs(append(append([]models.DataLifetime{}, p.supersede...), p.reject...))
	if len(deactivate) > 0 {
		if err := e.ledger.Deactivate(ctx, deactivate, seqno); err != nil {
			return 0, err
		}
		if err := e.fingerprints.DeactivateByLifetimes(ctx, deactivate, seqno); err != nil {
			return 0, err
		}
	}
	if promote := lifetimeIDs(p.promote); len(promote) > 0 {
		if err := e.ledger.CommitForTenant(ctx, promote, v.ScopedVault().ID, seqno); err != nil {
			return 0, err
		}
	}

	v.Consume()
	return seqno, nil
}

// buildPlan decides, option by option, which speculative lifetimes promote
// and which portable ones they supersede.
func (e *Engine) buildPlan(v *view.View) plan {
	var p plan

	specSet := identitySet(v.SpeculativeKinds())
	portableSet := identitySet(v.PortableKinds())

	claimed := models.DISet{}
	for _, cdo := range models.OptionsFromDIs(specSet) {
		if full, ok := cdo.FullVariant(); ok && full.Represented(portableSet) {
			// The fuller variant already committed, almost certainly by a
			// concurrent onboarding. The lesser option deactivates unpromoted.
			e.log.Warn().
				Str("vault_id", v.Vault().ID.String()).
				Str("option", cdo.String()).
				Str("full_variant", full.String()).
				Msg("speculative option superseded by already-portable full variant")
			for _, di := range cdo.DIs() {
				if entry, ok := v.GetSpeculative(di); ok && !claimed.Has(di) {
					claimed[di] = struct{}{}
					p.reject = append(p.reject, entry.Lifetime)
				}
			}
			continue
		}
		for _, di := range cdo.DIs() {
			if claimed.Has(di) {
				continue
			}
			entry, ok := v.GetSpeculative(di)
			if !ok {
				continue
			}
			claimed[di] = struct{}{}
			p.promote = append(p.promote, entry.Lifetime)
			if old, ok := v.GetPortable(di); ok {
				p.supersede = append(p.supersede, old.Lifetime)
			}
		}
	}

	// Partially staged options still commit: a lone first name promotes even
	// though the name option is incomplete, otherwise it would stay
	// speculative forever. The lesser-variant guard applies per field.
	for _, di := range specSet.Sorted() {
		if claimed.Has(di) {
			continue
		}
		entry, ok := v.GetSpeculative(di)
		if !ok {
			continue
		}
		if cdo, owned := models.OptionForDI(di); owned {
			if full, hasFull := cdo.FullVariant(); hasFull && full.Represented(portableSet) {
				p.reject = append(p.reject, entry.Lifetime)
				continue
			}
		}
		p.promote = append(p.promote, entry.Lifetime)
		if old, ok := v.GetPortable(di); ok {
			p.supersede = append(p.supersede, old.Lifetime)
		}
	}
	return p
}

// assertTransitions re-checks every planned transition against the locked
// snapshot. The stores enforce the same rules; a violation here means the
// plan itself is wrong.
func (p plan) assertTransitions(scopedVaultID id.ScopedVaultID) error {
	for _, l := range p.supersede {
		if l.Status() != models.StatusPortable {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"superseded lifetime %s is %s, not portable", l.ID, l.Status())
		}
	}
	for _, l := range p.reject {
		if l.Status() != models.StatusSpeculative {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"rejected lifetime %s is %s, not speculative", l.ID, l.Status())
		}
	}
	for _, l := range p.promote {
		if l.Status() != models.StatusSpeculative {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"promoted lifetime %s is %s, not speculative", l.ID, l.Status())
		}
		if l.ScopedVaultID != scopedVaultID {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"promoted lifetime %s not owned by scoped vault %s", l.ID, scopedVaultID)
		}
	}
	return nil
}

func identitySet(kinds []models.DataIdentifier) models.DISet {
	s := models.DISet{}
	for _, di := range kinds {
		if di.IsIdentity() {
			s[di] = struct{}{}
		}
	}
	return s
}

func lifetimeIDs(ls []models.DataLifetime) []id.LifetimeID {
	out := make([]id.LifetimeID, len(ls))
	for i, l := range ls {
		out[i] = l.ID
	}
	return out
}
