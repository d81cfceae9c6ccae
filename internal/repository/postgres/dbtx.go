package postgres

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx, so repositories run inside
// test transactions that are rolled back afterwards
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}
