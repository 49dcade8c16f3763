package fingerprint

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	txcontext "vaultcore/pkg/platform/tx"
)

// Postgres implements Store over the transactional relational store.
type Postgres struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPostgres builds the SQL-backed fingerprint store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

var fingerprintCols = []string{
	"id", "lifetime_id", "vault_id", "scoped_vault_id", "tenant_id",
	"kind", "scope", "hash", "created_seqno", "deactivated_seqno", "created_at",
}

func (s *Postgres) CreateBatch(ctx context.Context, fps []*models.Fingerprint) error {
	if len(fps) == 0 {
		return nil
	}
	ins := s.sb.Insert("fingerprints").Columns(fingerprintCols...)
	for _, fp := range fps {
		var tenant any
		if fp.TenantID != nil {
			tenant = uuid.UUID(*fp.TenantID)
		}
		var deactivated any
		if fp.DeactivatedSeqno != nil {
			deactivated = int64(*fp.DeactivatedSeqno)
		}
		ins = ins.Values(
			uuid.UUID(fp.ID), uuid.UUID(fp.LifetimeID), uuid.UUID(fp.VaultID), uuid.UUID(fp.ScopedVaultID), tenant,
			string(fp.Kind), string(fp.Scope), fp.Hash, int64(fp.CreatedSeqno), deactivated, fp.CreatedAt)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build fingerprint insert: %w", err)
	}
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert fingerprints: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, f Filter) ([]models.Fingerprint, error) {
	sel := s.sb.Select(fingerprintCols...).From("fingerprints")
	if !f.VaultID.IsNil() {
		sel = sel.Where(sq.Eq{"vault_id": uuid.UUID(f.VaultID)})
	}
	if !f.ScopedVaultID.IsNil() {
		sel = sel.Where(sq.Eq{"scoped_vault_id": uuid.UUID(f.ScopedVaultID)})
	}
	if f.Scope != "" {
		sel = sel.Where(sq.Eq{"scope": string(f.Scope)})
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		sel = sel.Where(sq.Eq{"kind": kinds})
	}
	if f.LiveOnly {
		sel = sel.Where(sq.Eq{"deactivated_seqno": nil})
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fingerprint select: %w", err)
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fingerprints: %w", err)
	}
	defer rows.Close()
	return collectFingerprints(rows)
}

// DeactivateByLifetimes marks every live fingerprint of the given lifetimes
// deactivated at seqno. A fingerprint already deactivated means the caller
// lost a race it should have been holding a lock against.
func (s *Postgres) DeactivateByLifetimes(ctx context.Context, lifetimeIDs []id.LifetimeID, seqno id.Seqno) error {
	if len(lifetimeIDs) == 0 {
		return nil
	}
	raws := make([]uuid.UUID, len(lifetimeIDs))
	for i, lid := range lifetimeIDs {
		raws[i] = uuid.UUID(lid)
	}

	var stale int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT count(*) FROM fingerprints WHERE lifetime_id = ANY($1) AND deactivated_seqno IS NOT NULL`,
		raws,
	).Scan(&stale)
	if err != nil {
		return fmt.Errorf("check fingerprints: %w", err)
	}
	if stale > 0 {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "%d fingerprints already deactivated", stale)
	}

	_, err = s.q(ctx).ExecContext(ctx,
		`UPDATE fingerprints SET deactivated_seqno = $1 WHERE lifetime_id = ANY($2) AND deactivated_seqno IS NULL`,
		int64(seqno), raws)
	if err != nil {
		return fmt.Errorf("deactivate fingerprints: %w", err)
	}
	return nil
}

func (s *Postgres) FindMatches(ctx context.Context, subject []models.Fingerprint, excludeVault id.VaultID) ([]Match, error) {
	if len(subject) == 0 {
		return nil, nil
	}

	// Latest live fingerprint per (scoped vault, kind, scope) on the
	// candidate side, then hash equality against the subject set.
	inner := s.sb.Select(fingerprintCols...).
		Options("DISTINCT ON (scoped_vault_id, kind, scope)").
		From("fingerprints").
		Where(sq.Eq{"deactivated_seqno": nil}).
		Where(sq.NotEq{"vault_id": uuid.UUID(excludeVault)}).
		OrderBy("scoped_vault_id", "kind", "scope", "created_seqno DESC")

	match := sq.Or{}
	for _, fp := range subject {
		match = append(match, sq.Eq{
			"kind":  string(fp.Kind),
			"scope": string(fp.Scope),
			"hash":  fp.Hash,
		})
	}
	sel := s.sb.Select("*").FromSelect(inner, "latest").Where(match)

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build match select: %w", err)
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find matches: %w", err)
	}
	defer rows.Close()

	fps, err := collectFingerprints(rows)
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(fps))
	for _, fp := range fps {
		out = append(out, Match{Fingerprint: fp, SubjectKind: fp.Kind})
	}
	return out, nil
}

func collectFingerprints(rows *sql.Rows) ([]models.Fingerprint, error) {
	var out []models.Fingerprint
	for rows.Next() {
		var (
			fp          models.Fingerprint
			fpID        uuid.UUID
			lifetimeID  uuid.UUID
			vaultID     uuid.UUID
			svID        uuid.UUID
			tenantID    uuid.NullUUID
			kind        string
			scope       string
			seqno       int64
			deactivated sql.NullInt64
		)
		err := rows.Scan(&fpID, &lifetimeID, &vaultID, &svID, &tenantID,
			&kind, &scope, &fp.Hash, &seqno, &deactivated, &fp.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		fp.ID = id.FingerprintID(fpID)
		fp.LifetimeID = id.LifetimeID(lifetimeID)
		fp.VaultID = id.VaultID(vaultID)
		fp.ScopedVaultID = id.ScopedVaultID(svID)
		if tenantID.Valid {
			t := id.TenantID(tenantID.UUID)
			fp.TenantID = &t
		}
		fp.Kind = models.FingerprintKind(kind)
		fp.Scope = models.FingerprintScope(scope)
		fp.CreatedSeqno = id.Seqno(seqno)
		if deactivated.Valid {
			fp.DeactivatedSeqno = models.SeqnoPtr(id.Seqno(deactivated.Int64))
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}
