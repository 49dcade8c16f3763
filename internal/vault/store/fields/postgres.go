package fields

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"vaultcore/internal/vault/models"
	id "vaultcore/pkg/domain"
	txcontext "vaultcore/pkg/platform/tx"
)

// Postgres implements Store over the transactional relational store.
type Postgres struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPostgres builds the SQL-backed value store.
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

func (s *Postgres) CreateBatch(ctx context.Context, values []*models.Value) error {
	if len(values) == 0 {
		return nil
	}
	ins := s.sb.Insert("vault_data").Columns("lifetime_id", "kind", "e_data", "p_data", "doc_ref")
	for _, v := range values {
		var eData any
		if len(v.EData) > 0 {
			eData = v.EData
		}
		var pData, docRef any
		if v.PData != "" {
			pData = v.PData
		}
		if v.DocRef != "" {
			docRef = v.DocRef
		}
		ins = ins.Values(uuid.UUID(v.LifetimeID), string(v.Kind), eData, pData, docRef)
	}
	query, args, err := ins.ToSql()
	if err != nil {
		return fmt.Errorf("build value insert: %w", err)
	}
	if _, err := s.q(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert values: %w", err)
	}
	return nil
}

func (s *Postgres) GetByLifetimes(ctx context.Context, lifetimeIDs []id.LifetimeID) (map[id.LifetimeID]*models.Value, error) {
	if len(lifetimeIDs) == 0 {
		return map[id.LifetimeID]*models.Value{}, nil
	}
	raws := make([]uuid.UUID, len(lifetimeIDs))
	for i, lid := range lifetimeIDs {
		raws[i] = uuid.UUID(lid)
	}
	const query = `
		SELECT lifetime_id, kind, e_data, p_data, doc_ref
		FROM vault_data WHERE lifetime_id = ANY($1)
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, raws)
	if err != nil {
		return nil, fmt.Errorf("get values: %w", err)
	}
	defer rows.Close()

	out := make(map[id.LifetimeID]*models.Value, len(lifetimeIDs))
	for rows.Next() {
		var (
			v     models.Value
			raw   uuid.UUID
			kind  string
			pData sql.NullString
			doc   sql.NullString
		)
		if err := rows.Scan(&raw, &kind, &v.EData, &pData, &doc); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		v.LifetimeID = id.LifetimeID(raw)
		v.Kind = models.DataIdentifier(kind)
		v.PData = pData.String
		v.DocRef = doc.String
		out[v.LifetimeID] = &v
	}
	return out, rows.Err()
}
