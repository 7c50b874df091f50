package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by DB and by the transactions handed out by a
// UnitOfWork. Queries are written with $N placeholders.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a connection pool that rebinds placeholders for its dialect.
type DB struct {
	*sql.DB
	dialect Dialect
}

func (d *DB) Dialect() Dialect { return d.dialect }

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.dialect.Rebind(query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.dialect.Rebind(query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, d.dialect.Rebind(query), args...)
}

// BindTx wraps a transaction so it rebinds placeholders like DB does.
func BindTx(tx *sql.Tx, dialect Dialect) DBTX {
	return boundTx{tx: tx, dialect: dialect}
}

type boundTx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (b boundTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.tx.ExecContext(ctx, b.dialect.Rebind(query), args...)
}

func (b boundTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.tx.QueryContext(ctx, b.dialect.Rebind(query), args...)
}

func (b boundTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.tx.QueryRowContext(ctx, b.dialect.Rebind(query), args...)
}

var (
	_ DBTX = (*DB)(nil)
	_ DBTX = boundTx{}
)
