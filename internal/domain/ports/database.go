package ports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX represents a statement executor bound to the ledger session's connection.
// Inside a transaction every call runs within that transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row
}

// TransactionManager manages nested transactions on a single connection
type TransactionManager interface {
	// Begin opens a transaction, or a savepoint when one is already open
	Begin(ctx context.Context) error

	// Commit finishes the innermost level; the outermost level commits the transaction
	Commit(ctx context.Context) error

	// Rollback undoes the innermost level only; outer levels stay open
	Rollback(ctx context.Context) error

	// Depth is the current nesting depth, 0 when no transaction is open
	Depth() int

	// WithTransaction runs fn inside one nesting level.
	// fn returning an error (or panicking) rolls that level back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// DBPort provides access to the session's executor and its transaction manager
type DBPort interface {
	DB() DBTX
	TransactionManager
}
