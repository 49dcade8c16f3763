// Package service is the engine facade: it wires the stores, engines and the
// boundary client into transactional operations, and owns the side effects
// the engines stay free of (audit events, metrics, external-ID caching).
package service

import (
	"context"

	"go.opentelemetry.io/otel"

	"vaultcore/internal/boundary"
	"vaultcore/internal/crypto"
	"vaultcore/internal/platform/logger"
	"vaultcore/internal/platform/metrics"
	"vaultcore/internal/vault/commit"
	"vaultcore/internal/vault/dedup"
	"vaultcore/internal/vault/gateway"
	"vaultcore/internal/vault/models"
	"vaultcore/internal/vault/prefill"
	"vaultcore/internal/vault/store/fields"
	"vaultcore/internal/vault/store/fingerprint"
	"vaultcore/internal/vault/store/ledger"
	"vaultcore/internal/vault/store/vaults"
	"vaultcore/internal/vault/view"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/pkg/platform/audit"
	"vaultcore/pkg/platform/audit/publisher"
	"vaultcore/pkg/platform/tx"
	"vaultcore/pkg/requestcontext"
)

var tracer = otel.Tracer("vaultcore/internal/vault/service")

// Deps are the required collaborators.
type Deps struct {
	Runner       tx.Runner
	Vaults       vaults.Store
	Ledger       ledger.Store
	Fields       fields.Store
	Fingerprints fingerprint.Store
	Boundary     boundary.Client
	Salts        crypto.Salts

	// MasterSealKey is the public key vault private keys are envelope-sealed
	// under at creation.
	MasterSealKey []byte
}

// Service exposes every engine operation behind one transactional facade.
type Service struct {
	deps Deps

	views    *view.Builder
	gateway  *gateway.Gateway
	commits  *commit.Engine
	dupes    *dedup.Engine
	prefills *prefill.Engine

	audit   *publisher.Publisher
	metrics *metrics.Metrics
	cache   ResolveCache
	log     *logger.Logger
}

type Option func(*Service)

// WithAudit routes audit events through the given publisher. Without it,
// events are dropped.
func WithAudit(pub *publisher.Publisher) Option {
	return func(s *Service) { s.audit = pub }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithResolveCache caches external-ID resolution, typically in redis.
func WithResolveCache(c ResolveCache) Option {
	return func(s *Service) { s.cache = c }
}

func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		deps: deps,
		log:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.views = view.NewBuilder(deps.Vaults, deps.Ledger, deps.Fields)
	s.gateway = gateway.New(deps.Boundary, s.log)
	s.commits = commit.NewEngine(deps.Ledger, deps.Fingerprints, s.log)
	s.dupes = dedup.NewEngine(deps.Vaults, deps.Fingerprints, s.log)
	s.prefills = prefill.NewEngine(deps.Boundary, deps.Ledger, deps.Fields, deps.Fingerprints, deps.Salts, s.log)
	return s
}

// CreateVault provisions a new vault and its first tenant scope. The vault
// keypair is generated here and the private key immediately sealed under the
// master public key; the clear private key never persists.
func (s *Service) CreateVault(ctx context.Context, kind models.VaultKind, tenantID id.TenantID, sandbox bool) (*models.Vault, *models.ScopedVault, error) {
	ctx, span := tracer.Start(ctx, "service.CreateVault")
	defer span.End()

	if !kind.Valid() {
		return nil, nil, dErrors.Newf(dErrors.CodeValidation, "unknown vault kind %q", kind)
	}
	if tenantID.IsNil() {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}

	publicKey, privateKey, err := crypto.GenerateKeypair()
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate vault keypair")
	}
	sealedKey, err := boundary.SealVaultKeyEnvelope(s.deps.MasterSealKey, publicKey, privateKey)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "seal vault key")
	}

	vault := &models.Vault{
		ID:          id.NewVaultID(),
		Kind:        kind,
		PublicKey:   publicKey,
		EPrivateKey: sealedKey,
		IsLive:      !sandbox,
		Sandbox:     sandbox,
	}
	scoped := &models.ScopedVault{
		ID:         id.NewScopedVaultID(),
		VaultID:    vault.ID,
		TenantID:   tenantID,
		ExternalID: models.NewExternalID(kind),
		IsActive:   true,
	}

	err = s.deps.Runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deps.Vaults.CreateVault(ctx, vault); err != nil {
			return err
		}
		if err := s.deps.Vaults.CreateScopedVault(ctx, scoped); err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:        string(audit.EventVaultCreated),
			VaultID:       vault.ID,
			ScopedVaultID: scoped.ID,
			TenantID:      tenantID,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.VaultsCreated.Inc()
	}
	s.log.Info().
		Str("vault_id", vault.ID.String()).
		Str("kind", kind.String()).
		Bool("sandbox", sandbox).
		Msg("vault created")
	return vault, scoped, nil
}

// CreateScopedVault binds an existing vault to another tenant, minting a new
// external ID for that tenant's use.
func (s *Service) CreateScopedVault(ctx context.Context, vaultID id.VaultID, tenantID id.TenantID) (*models.ScopedVault, error) {
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant id is required")
	}

	vault, err := s.deps.Vaults.GetVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	scoped := &models.ScopedVault{
		ID:         id.NewScopedVaultID(),
		VaultID:    vault.ID,
		TenantID:   tenantID,
		ExternalID: models.NewExternalID(vault.Kind),
		IsActive:   true,
	}

	err = s.deps.Runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deps.Vaults.CreateScopedVault(ctx, scoped); err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:        string(audit.EventScopedVaultCreated),
			VaultID:       vault.ID,
			ScopedVaultID: scoped.ID,
			TenantID:      tenantID,
		})
	})
	if err != nil {
		return nil, err
	}
	return scoped, nil
}

// DeactivateScopedVault soft-deactivates a tenant binding. The row survives
// for audit history; it just stops resolving and stops reading portable data.
func (s *Service) DeactivateScopedVault(ctx context.Context, scopedVaultID id.ScopedVaultID) error {
	if scopedVaultID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "scoped vault id is required")
	}

	scoped, err := s.deps.Vaults.GetScopedVault(ctx, scopedVaultID)
	if err != nil {
		return err
	}

	err = s.deps.Runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deps.Vaults.DeactivateScopedVault(ctx, scopedVaultID); err != nil {
			return err
		}
		return s.emit(ctx, audit.Event{
			Action:        string(audit.EventScopedVaultDeactivated),
			VaultID:       scoped.VaultID,
			ScopedVaultID: scoped.ID,
			TenantID:      scoped.TenantID,
		})
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("scoped_vault_id", scoped.ID.String()).
		Str("tenant_id", scoped.TenantID.String()).
		Msg("scoped vault deactivated")
	return nil
}

// ResolveExternalID maps the opaque external token to its scoped vault,
// consulting the cache first. Only successful resolutions are cached.
func (s *Service) ResolveExternalID(ctx context.Context, externalID string) (*models.ScopedVault, error) {
	if externalID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "external id is required")
	}

	if s.cache != nil {
		if scoped, ok := s.cache.Get(ctx, externalID); ok {
			return scoped, nil
		}
	}

	scoped, err := s.deps.Vaults.ResolveExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, externalID, scoped)
	}
	return scoped, nil
}

// BuildView materializes the read-side projection for one scope. asOf zero
// means latest.
func (s *Service) BuildView(ctx context.Context, scopedVaultID id.ScopedVaultID, asOf id.Seqno) (*view.View, error) {
	return s.views.Build(ctx, scopedVaultID, asOf)
}

// emit records an audit event. Inside a transaction the outbox insert joins
// it, so a failed audit write fails the operation: access to sealed data is
// never unaccounted for.
func (s *Service) emit(ctx context.Context, event audit.Event) error {
	if s.audit == nil {
		return nil
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Principal == "" {
		event.Principal = requestcontext.Principal(ctx)
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record audit event")
	}
	return nil
}
