// Package dedup finds other vaults sharing fingerprints with the latest
// version of a subject vault's data. Same-tenant matches are itemized;
// matches at other tenants are reduced to counts so no cross-tenant detail
// leaks.
package dedup

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"vaultcore/internal/platform/logger"
	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/store/fingerprint"
	"vaultcore/internal/vault/store/vaults"
	id "vaultcore/pkg/domain"
)

var tracer = otel.Tracer("vaultcore/internal/vault/dedup")

// SameTenantDupe is one other vault at the subject's tenant sharing at least
// one fingerprint. A vault with several scoped-vault instances at the tenant
// appears once.
type SameTenantDupe struct {
	ScopedVaultID id.ScopedVaultID
	VaultID       id.VaultID
	Kinds         []models.FingerprintKind
}

// ExternalDupes aggregates matches at other tenants into counts only.
type ExternalDupes struct {
	NumUsers   int
	NumTenants int
}

// Result is the dedup report for one subject. An empty result is valid.
type Result struct {
	SameTenant []SameTenantDupe
	External   ExternalDupes
}

// Engine answers dedup queries. All reads are lock-free; results reflect
// whatever committed state the queries observe.
type Engine struct {
	vaults       vaults.Store
	fingerprints fingerprint.Store
	log          *logger.Logger
}

// NewEngine wires a dedup engine over the vault and fingerprint stores.
func NewEngine(vaultStore vaults.Store, fpStore fingerprint.Store, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{vaults: vaultStore, fingerprints: fpStore, log: log}
}

// GetDupes compares the subject's latest live fingerprints against the
// latest live fingerprints of every other vault. Matching is always
// latest-to-latest; an overwritten value stops matching on its stale hash.
func (e *Engine) GetDupes(ctx context.Context, subjectScopedVaultID id.ScopedVaultID) (*Result, error) {
	ctx, span := tracer.Start(ctx, "dedup.GetDupes")
	defer span.End()

	subject, err := e.vaults.GetScopedVault(ctx, subjectScopedVaultID)
	if err != nil {
		return nil, fmt.Errorf("get subject scoped vault: %w", err)
	}

	live, err := e.fingerprints.List(ctx, fingerprint.Filter{VaultID: subject.VaultID, LiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("list subject fingerprints: %w", err)
	}
	latest := latestPerSlot(live)
	span.SetAttributes(attribute.Int("subject_fingerprints", len(latest)))
	if len(latest) == 0 {
		return &Result{}, nil
	}

	matches, err := e.fingerprints.FindMatches(ctx, latest, subject.VaultID)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}
	if len(matches) == 0 {
		return &Result{}, nil
	}

	matchedVaults := make([]id.VaultID, 0, len(matches))
	seenVault := make(map[id.VaultID]bool, len(matches))
	for _, m := range matches {
		if !seenVault[m.VaultID] {
			seenVault[m.VaultID] = true
			matchedVaults = append(matchedVaults, m.VaultID)
		}
	}
	scopes, err := e.vaults.ListScopedVaultsByVaults(ctx, matchedVaults)
	if err != nil {
		return nil, fmt.Errorf("list matched scoped vaults: %w", err)
	}

	return e.partition(subject, matches, scopes), nil
}

// partition splits matched vaults by whether they have a scoped vault at the
// subject's tenant. Same-tenant vaults are itemized with their matching
// kinds; the rest collapse to one count per distinct vault and one per
// distinct tenant.
func (e *Engine) partition(subject *models.ScopedVault, matches []fingerprint.Match, scopes []models.ScopedVault) *Result {
	sameTenantScope := make(map[id.VaultID]id.ScopedVaultID)
	otherTenants := make(map[id.VaultID]map[id.TenantID]bool)
	for _, sv := range scopes {
		if sv.TenantID == subject.TenantID {
			if _, ok := sameTenantScope[sv.VaultID]; !ok {
				sameTenantScope[sv.VaultID] = sv.ID
			}
			continue
		}
		if otherTenants[sv.VaultID] == nil {
			otherTenants[sv.VaultID] = make(map[id.TenantID]bool)
		}
		otherTenants[sv.VaultID][sv.TenantID] = true
	}

	kindsByVault := make(map[id.VaultID]map[models.FingerprintKind]bool)
	for _, m := range matches {
		if kindsByVault[m.VaultID] == nil {
			kindsByVault[m.VaultID] = make(map[models.FingerprintKind]bool)
		}
		kindsByVault[m.VaultID][m.SubjectKind] = true
	}

	res := &Result{}
	externalTenants := make(map[id.TenantID]bool)
	for vaultID, kinds := range kindsByVault {
		if svID, ok := sameTenantScope[vaultID]; ok {
			res.SameTenant = append(res.SameTenant, SameTenantDupe{
				ScopedVaultID: svID,
				VaultID:       vaultID,
				Kinds:         sortedKinds(kinds),
			})
			continue
		}
		res.External.NumUsers++
		for tenantID := range otherTenants[vaultID] {
			externalTenants[tenantID] = true
		}
	}
	res.External.NumTenants = len(externalTenants)

	sort.Slice(res.SameTenant, func(i, j int) bool {
		return res.SameTenant[i].ScopedVaultID.String() < res.SameTenant[j].ScopedVaultID.String()
	})
	return res
}

// latestPerSlot keeps only the newest live fingerprint per (kind, scope) for
// the subject vault.
func latestPerSlot(fps []models.Fingerprint) []models.Fingerprint {
	type slot struct {
		kind  models.FingerprintKind
		scope models.FingerprintScope
	}
	latest := make(map[slot]models.Fingerprint, len(fps))
	for _, fp := range fps {
		k := slot{fp.Kind, fp.Scope}
		if cur, ok := latest[k]; !ok || fp.CreatedSeqno > cur.CreatedSeqno {
			latest[k] = fp
		}
	}
	out := make([]models.Fingerprint, 0, len(latest))
	for _, fp := range latest {
		out = append(out, fp)
	}
	return out
}

func sortedKinds(kinds map[models.FingerprintKind]bool) []models.FingerprintKind {
	out := make([]models.FingerprintKind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
