package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const dbConnKey contextKey = "db_conn"

// Queryable is the subset of pgx shared by pools, connections and
// transactions. Repositories run against whichever the context carries.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// WithConn returns a context carrying q so repositories called beneath it
// join the same connection or transaction.
func WithConn(ctx context.Context, q Queryable) context.Context {
	return context.WithValue(ctx, dbConnKey, q)
}

// ConnFromContext retrieves the context-scoped database handle, or nil when
// the caller is outside any transaction.
func ConnFromContext(ctx context.Context) Queryable {
	q, _ := ctx.Value(dbConnKey).(Queryable)
	return q
}

// TxRunner executes functions inside a database transaction, exposing the
// transaction to repositories through the context.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// InTx begins a transaction, runs fn with the transaction bound into the
// context, and commits or rolls back depending on fn's error. Nested calls
// reuse the surrounding transaction rather than opening a second one.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ConnFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(WithConn(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
