package ledger

import (
	"time"

	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/internal/vault/models"
)

// BatchBuilder assembles a bulk write in two independent phases: lifetimes
// are declared first, then payloads are attached keyed by field kind. Build
// verifies the phases line up before anything is produced, which keeps each
// phase testable on its own.
type BatchBuilder struct {
	vaultID       id.VaultID
	scopedVaultID id.ScopedVaultID
	source        models.DataSource

	order     []models.DataIdentifier
	lifetimes map[models.DataIdentifier]*models.DataLifetime
	values    map[models.DataIdentifier]*models.Value
}

// NewBatchBuilder starts a batch for one scoped vault and source.
func NewBatchBuilder(vaultID id.VaultID, scopedVaultID id.ScopedVaultID, source models.DataSource) *BatchBuilder {
	return &BatchBuilder{
		vaultID:       vaultID,
		scopedVaultID: scopedVaultID,
		source:        source,
		lifetimes:     make(map[models.DataIdentifier]*models.DataLifetime),
		values:        make(map[models.DataIdentifier]*models.Value),
	}
}

// AddField declares a lifetime for the field kind (phase one). origin links
// provenance for prefilled fields; nil for originals.
func (b *BatchBuilder) AddField(kind models.DataIdentifier, origin *id.LifetimeID) error {
	if _, ok := b.lifetimes[kind]; ok {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "batch already declares %s", kind)
	}
	b.order = append(b.order, kind)
	b.lifetimes[kind] = &models.DataLifetime{
		ID:            id.NewLifetimeID(),
		VaultID:       b.vaultID,
		ScopedVaultID: b.scopedVaultID,
		Kind:          kind,
		Source:        b.source,
		OriginID:      origin,
	}
	return nil
}

// AttachSealed attaches a sealed payload to a declared field (phase two).
func (b *BatchBuilder) AttachSealed(kind models.DataIdentifier, sealed []byte) error {
	return b.attach(kind, models.Value{Kind: kind, EData: sealed})
}

// AttachPlaintext attaches a non-private plaintext payload (phase two).
func (b *BatchBuilder) AttachPlaintext(kind models.DataIdentifier, plaintext string) error {
	return b.attach(kind, models.Value{Kind: kind, PData: plaintext})
}

// AttachDocRef attaches a reference to large external sealed content
// (phase two).
func (b *BatchBuilder) AttachDocRef(kind models.DataIdentifier, docRef string) error {
	return b.attach(kind, models.Value{Kind: kind, DocRef: docRef})
}

func (b *BatchBuilder) attach(kind models.DataIdentifier, v models.Value) error {
	if _, ok := b.lifetimes[kind]; !ok {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "attach %s: field not declared", kind)
	}
	if _, ok := b.values[kind]; ok {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "attach %s: payload already attached", kind)
	}
	b.values[kind] = &v
	return nil
}

// Kinds returns the declared field kinds in declaration order.
func (b *BatchBuilder) Kinds() []models.DataIdentifier {
	out := make([]models.DataIdentifier, len(b.order))
	copy(out, b.order)
	return out
}

// LifetimeID returns the pre-allocated lifetime ID for a declared field, so
// fingerprints can link to it before Build runs.
func (b *BatchBuilder) LifetimeID(kind models.DataIdentifier) (id.LifetimeID, bool) {
	l, ok := b.lifetimes[kind]
	if !ok {
		return id.LifetimeID{}, false
	}
	return l.ID, true
}

// Build stamps the seqno and returns aligned lifetime and value slices.
// Every declared field must carry exactly one payload.
func (b *BatchBuilder) Build(seqno id.Seqno, now time.Time) ([]*models.DataLifetime, []*models.Value, error) {
	if !seqno.Valid() {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "batch built without an allocated seqno")
	}
	lifetimes := make([]*models.DataLifetime, 0, len(b.order))
	values := make([]*models.Value, 0, len(b.order))
	for _, kind := range b.order {
		v, ok := b.values[kind]
		if !ok {
			return nil, nil, dErrors.Newf(dErrors.CodeInvariantViolation, "field %s declared but no payload attached", kind)
		}
		l := b.lifetimes[kind]
		l.CreatedSeqno = seqno
		l.CreatedAt = now
		v.LifetimeID = l.ID
		lifetimes = append(lifetimes, l)
		values = append(values, v)
	}
	return lifetimes, values, nil
}
