// Package tx carries a SQL transaction through context so every store touched
// by one engine operation joins the same transaction, and provides the Runner
// used by mutation paths.
//
// The engine's ordering rule: mutations open one transaction, take the vault
// row lock first, then read, decide and write. An error anywhere rolls the
// whole transaction back, so failure before commit is equivalent to
// cancellation.
package tx

import (
	"context"
	"database/sql"
	"fmt"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner runs functions inside a transaction. Stores that honor the
// tx-in-context convention automatically join.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner is the database/sql-backed Runner.
type SQLRunner struct {
	db *sql.DB
}

// NewRunner builds a Runner over db.
func NewRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db}
}

// RunInTx begins a transaction, injects it into the context, and commits when
// fn returns nil. Any error rolls back every proposed change. A context that
// already carries a transaction joins it instead of nesting.
func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NoopRunner satisfies Runner for in-memory stores, which synchronize
// internally. Used by unit tests and the memory wiring.
type NoopRunner struct{}

func (NoopRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
