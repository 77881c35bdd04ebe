// Package db holds the Postgres queries for the escalation ledger, laid out
// the way sqlc emits them: SQL in queries/ and migrations/, one Go method per
// named query, and a Querier interface the store and tests depend on.
package db

import (
	"context"
	"database/sql"
	"embed"
)

// Migrations holds the schema files, applied in lexical order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{
		db: tx,
	}
}
