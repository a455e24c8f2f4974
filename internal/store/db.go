package store

import (
	"context"
	"database/sql"
)

// Execer and Getter are the two shapes a query runs against. Store methods
// that must run inside the webhook transaction accept one of these instead of
// holding the pool, so the caller decides between *sqlx.DB and *sqlx.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is the pool-backed surface used by reads that do not join a transaction.
type DB interface {
	Execer
	Getter
	Selecter
}
