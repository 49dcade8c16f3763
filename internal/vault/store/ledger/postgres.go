package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	id "vaultcore/pkg/domain"
	dErrors "vaultcore/pkg/domain-errors"
	"vaultcore/internal/vault/models"
	"vaultcore/pkg/platform/sentinel"
	txcontext "vaultcore/pkg/platform/tx"
)

// Postgres implements Store over the transactional relational store.
type Postgres struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPostgres builds the SQL-backed ledger.
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

// NextSeqno allocates from the shared sequence. The caller must hold a
// transaction: the allocated value orders this transaction's transitions.
func (s *Postgres) NextSeqno(ctx context.Context) (id.Seqno, error) {
	tx, ok := txcontext.From(ctx)
	if !ok {
		return 0, fmt.Errorf("next seqno: no transaction in context")
	}
	var seqno int64
	if err := tx.QueryRowContext(ctx, `SELECT nextval('data_lifetime_seqno')`).Scan(&seqno); err != nil {
		return 0, fmt.Errorf("next seqno: %w", err)
	}
	return id.Seqno(seqno), nil
}

const lifetimeCols = `id, vault_id, scoped_vault_id, kind, source, origin_id, created_seqno, portablized_seqno, deactivated_seqno, created_at`

func (s *Postgres) CreateBatch(ctx context.Context, lifetimes []*models.DataLifetime) error {
	if len(lifetimes) == 0 {
		return nil
	}
	ins := s.sb.Insert("data_lifetimes").Columns(
		"id", "vault_id", "scoped_vault_id", "kind", "source", "origin_id",
		"created_seqno", "portablized_seqno", "deactivated_seqno", "created_at")
	for _, l := range lifetimes {
		var origin any
		if l.OriginID != nil {
			origin = uuid.UUID(*l.OriginID)
		}
		ins = ins.Values(
			uuid.UUID(l.ID), uuid.UUID(l.VaultID), uuid.UUID(l.ScopedVaultID),
			string(l.Kind), string(l.Source), origin,
			int64(l.CreatedSeqno), seqnoArg(l.PortablizedSeqno), seqnoArg(l.DeactivatedSeqno),
			l.CreatedAt)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build lifetime insert: %w", err)
	}
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert lifetimes: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, lifetimeID id.LifetimeID) (*models.DataLifetime, error) {
	query := `SELECT ` + lifetimeCols + ` FROM data_lifetimes WHERE id = $1`
	row := s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(lifetimeID))
	l, err := scanLifetime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return l, err
}

func (s *Postgres) GetBatch(ctx context.Context, lifetimeIDs []id.LifetimeID) ([]models.DataLifetime, error) {
	if len(lifetimeIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + lifetimeCols + ` FROM data_lifetimes WHERE id = ANY($1)`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuidSlice(lifetimeIDs))
	if err != nil {
		return nil, fmt.Errorf("get lifetimes: %w", err)
	}
	defer rows.Close()
	return collectLifetimes(rows)
}

// ListVisible assembles the visibility predicates conditionally, exactly
// mirroring Filter.Visible.
func (s *Postgres) ListVisible(ctx context.Context, f Filter) ([]models.DataLifetime, error) {
	sel := s.sb.Select(
		"id", "vault_id", "scoped_vault_id", "kind", "source", "origin_id",
		"created_seqno", "portablized_seqno", "deactivated_seqno", "created_at").
		From("data_lifetimes").
		Where(sq.Eq{"vault_id": uuid.UUID(f.VaultID)})

	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		sel = sel.Where(sq.Eq{"kind": kinds})
	}

	if f.AsOf > 0 {
		sel = sel.Where(sq.LtOrEq{"created_seqno": int64(f.AsOf)})
		sel = sel.Where(sq.Or{
			sq.Eq{"deactivated_seqno": nil},
			sq.Gt{"deactivated_seqno": int64(f.AsOf)},
		})
	} else {
		sel = sel.Where(sq.Eq{"deactivated_seqno": nil})
	}

	if f.ReaderScopedVault.IsNil() {
		sel = sel.Where(sq.NotEq{"portablized_seqno": nil})
	} else {
		sel = sel.Where(sq.Or{
			sq.NotEq{"portablized_seqno": nil},
			sq.Eq{"scoped_vault_id": uuid.UUID(f.ReaderScopedVault)},
		})
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build visibility query: %w", err)
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visible lifetimes: %w", err)
	}
	defer rows.Close()
	return collectLifetimes(rows)
}

// Deactivate updates only rows still live; a shortfall in affected rows
// means a target was already deactivated, which violates the forward-only
// transition invariant and aborts the transaction.
func (s *Postgres) Deactivate(ctx context.Context, lifetimeIDs []id.LifetimeID, seqno id.Seqno) error {
	if len(lifetimeIDs) == 0 {
		return nil
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE data_lifetimes
		SET deactivated_seqno = $1
		WHERE id = ANY($2) AND deactivated_seqno IS NULL
	`, int64(seqno), uuidSlice(lifetimeIDs))
	if err != nil {
		return fmt.Errorf("deactivate lifetimes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate lifetimes: %w", err)
	}
	if int(n) != len(lifetimeIDs) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"deactivate: %d of %d lifetimes were not live", len(lifetimeIDs)-int(n), len(lifetimeIDs))
	}
	return nil
}

// CommitForTenant promotes only speculative rows owned by the scoped vault;
// a shortfall means a precondition failed and aborts the transaction.
func (s *Postgres) CommitForTenant(ctx context.Context, lifetimeIDs []id.LifetimeID, scopedVaultID id.ScopedVaultID, seqno id.Seqno) error {
	if len(lifetimeIDs) == 0 {
		return nil
	}
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE data_lifetimes
		SET portablized_seqno = $1
		WHERE id = ANY($2)
		  AND portablized_seqno IS NULL
		  AND deactivated_seqno IS NULL
		  AND scoped_vault_id = $3
	`, int64(seqno), uuidSlice(lifetimeIDs), uuid.UUID(scopedVaultID))
	if err != nil {
		return fmt.Errorf("commit lifetimes: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit lifetimes: %w", err)
	}
	if int(n) != len(lifetimeIDs) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"commit: %d of %d lifetimes were not speculative and tenant-owned", len(lifetimeIDs)-int(n), len(lifetimeIDs))
	}
	return nil
}

func seqnoArg(s *id.Seqno) any {
	if s == nil {
		return nil
	}
	return int64(*s)
}

func uuidSlice(ids []id.LifetimeID) []uuid.UUID {
	out := make([]uuid.UUID, len(ids))
	for i, lid := range ids {
		out[i] = uuid.UUID(lid)
	}
	return out
}

func scanLifetime(row interface{ Scan(...any) error }) (*models.DataLifetime, error) {
	var (
		l                models.DataLifetime
		lid, vid, svid   uuid.UUID
		kind, source     string
		origin           *uuid.UUID
		created          int64
		portablized, deactivated *int64
	)
	err := row.Scan(&lid, &vid, &svid, &kind, &source, &origin, &created, &portablized, &deactivated, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan lifetime: %w", err)
	}
	l.ID = id.LifetimeID(lid)
	l.VaultID = id.VaultID(vid)
	l.ScopedVaultID = id.ScopedVaultID(svid)
	l.Kind = models.DataIdentifier(kind)
	l.Source = models.DataSource(source)
	if origin != nil {
		o := id.LifetimeID(*origin)
		l.OriginID = &o
	}
	l.CreatedSeqno = id.Seqno(created)
	if portablized != nil {
		l.PortablizedSeqno = models.SeqnoPtr(id.Seqno(*portablized))
	}
	if deactivated != nil {
		l.DeactivatedSeqno = models.SeqnoPtr(id.Seqno(*deactivated))
	}
	return &l, nil
}

func collectLifetimes(rows *sql.Rows) ([]models.DataLifetime, error) {
	var out []models.DataLifetime
	for rows.Next() {
		l, err := scanLifetime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
