package vaults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	id "vaultcore/pkg/domain"
	"vaultcore/internal/vault/models"
	"vaultcore/pkg/platform/sentinel"
	txcontext "vaultcore/pkg/platform/tx"
)

// Postgres implements Store over the transactional relational store.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds the SQL-backed store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
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

func (s *Postgres) CreateVault(ctx context.Context, v *models.Vault) error {
	const query = `
		INSERT INTO vaults (id, kind, public_key, e_private_key, is_live, sandbox, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(v.ID), string(v.Kind), v.PublicKey, v.EPrivateKey, v.IsLive, v.Sandbox, v.CreatedAt)
	if err != nil {
		return classify(err, "create vault")
	}
	return nil
}

func (s *Postgres) GetVault(ctx context.Context, vaultID id.VaultID) (*models.Vault, error) {
	const query = `
		SELECT id, kind, public_key, e_private_key, is_live, sandbox, created_at
		FROM vaults WHERE id = $1
	`
	return scanVault(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(vaultID)))
}

// LockVault takes SELECT ... FOR UPDATE on the vault row. Requires a
// transaction in the context: locking outside one would release immediately.
func (s *Postgres) LockVault(ctx context.Context, vaultID id.VaultID) error {
	tx, ok := txcontext.From(ctx)
	if !ok {
		return fmt.Errorf("lock vault: no transaction in context")
	}
	var locked uuid.UUID
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM vaults WHERE id = $1 FOR UPDATE`, uuid.UUID(vaultID),
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock vault: %w", err)
	}
	return nil
}

func (s *Postgres) CreateScopedVault(ctx context.Context, sv *models.ScopedVault) error {
	const query = `
		INSERT INTO scoped_vaults (id, vault_id, tenant_id, external_id, sandbox_instance, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(sv.ID), uuid.UUID(sv.VaultID), uuid.UUID(sv.TenantID),
		sv.ExternalID, sv.SandboxInstance, sv.IsActive, sv.CreatedAt)
	if err != nil {
		return classify(err, "create scoped vault")
	}
	return nil
}

const scopedVaultCols = `id, vault_id, tenant_id, external_id, sandbox_instance, is_active, created_at`

func (s *Postgres) GetScopedVault(ctx context.Context, scopedVaultID id.ScopedVaultID) (*models.ScopedVault, error) {
	query := `SELECT ` + scopedVaultCols + ` FROM scoped_vaults WHERE id = $1`
	return scanScopedVault(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(scopedVaultID)))
}

func (s *Postgres) FindScopedVault(ctx context.Context, vaultID id.VaultID, tenantID id.TenantID) (*models.ScopedVault, error) {
	query := `SELECT ` + scopedVaultCols + `
		FROM scoped_vaults
		WHERE vault_id = $1 AND tenant_id = $2 AND is_active
		ORDER BY created_at
		LIMIT 1`
	return scanScopedVault(s.q(ctx).QueryRowContext(ctx, query, uuid.UUID(vaultID), uuid.UUID(tenantID)))
}

func (s *Postgres) ResolveExternalID(ctx context.Context, externalID string) (*models.ScopedVault, error) {
	query := `SELECT ` + scopedVaultCols + ` FROM scoped_vaults WHERE external_id = $1`
	return scanScopedVault(s.q(ctx).QueryRowContext(ctx, query, externalID))
}

func (s *Postgres) ListScopedVaultsByVaults(ctx context.Context, vaultIDs []id.VaultID) ([]models.ScopedVault, error) {
	if len(vaultIDs) == 0 {
		return nil, nil
	}
	raw := make([]uuid.UUID, len(vaultIDs))
	for i, v := range vaultIDs {
		raw[i] = uuid.UUID(v)
	}
	query := `SELECT ` + scopedVaultCols + `
		FROM scoped_vaults
		WHERE vault_id = ANY($1) AND is_active`
	rows, err := s.q(ctx).QueryContext(ctx, query, raw)
	if err != nil {
		return nil, fmt.Errorf("list scoped vaults: %w", err)
	}
	defer rows.Close()

	var out []models.ScopedVault
	for rows.Next() {
		sv, err := scanScopedVaultRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sv)
	}
	return out, rows.Err()
}

func (s *Postgres) DeactivateScopedVault(ctx context.Context, scopedVaultID id.ScopedVaultID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE scoped_vaults SET is_active = FALSE WHERE id = $1`, uuid.UUID(scopedVaultID))
	if err != nil {
		return fmt.Errorf("deactivate scoped vault: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate scoped vault: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVault(row rowScanner) (*models.Vault, error) {
	var (
		v    models.Vault
		vid  uuid.UUID
		kind string
	)
	err := row.Scan(&vid, &kind, &v.PublicKey, &v.EPrivateKey, &v.IsLive, &v.Sandbox, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}
	v.ID = id.VaultID(vid)
	v.Kind = models.VaultKind(kind)
	return &v, nil
}

func scanScopedVault(row rowScanner) (*models.ScopedVault, error) {
	sv, err := scanScopedVaultRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return sv, err
}

func scanScopedVaultRows(row rowScanner) (*models.ScopedVault, error) {
	var (
		sv            models.ScopedVault
		svID, vid, tid uuid.UUID
	)
	err := row.Scan(&svID, &vid, &tid, &sv.ExternalID, &sv.SandboxInstance, &sv.IsActive, &sv.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan scoped vault: %w", err)
	}
	sv.ID = id.ScopedVaultID(svID)
	sv.VaultID = id.VaultID(vid)
	sv.TenantID = id.TenantID(tid)
	return &sv, nil
}

func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
