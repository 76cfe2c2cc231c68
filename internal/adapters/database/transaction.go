package database

import (
	"context"
	"fmt"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/desblooms/school-crm-sub000/pkg/observability"
	"go.uber.org/zap"
)

// TransactionCoordinator layers nested transactions over one ConnectionManager.
// Depth 0 means no transaction; the outermost level is a real
// BEGIN/COMMIT/ROLLBACK and every inner level is a savepoint named after
// the depth it was opened at (sp_1, sp_2, ...).
//
// State only advances after the statement that implements it succeeds.
// The exceptions are the outermost COMMIT/ROLLBACK and a lost connection.
// Ending the outermost level never trusts the caller's context: ROLLBACK is
// sent detached from cancellation, and when it cannot be confirmed the
// physical connection is dropped so the server discards the transaction.
type TransactionCoordinator struct {
	conn   *ConnectionManager
	logger *zap.Logger
	depth  int
}

var _ ports.DBPort = (*TransactionCoordinator)(nil)

// endTimeout bounds the detached ROLLBACK issued when a transaction ends
const endTimeout = 5 * time.Second

// NewTransactionCoordinator creates a coordinator in the NotStarted state
func NewTransactionCoordinator(conn *ConnectionManager, logger *zap.Logger) *TransactionCoordinator {
	return &TransactionCoordinator{
		conn:   conn,
		logger: logger,
	}
}

// DB returns the executor statements should run through
func (c *TransactionCoordinator) DB() ports.DBTX {
	return c.conn
}

// Depth returns the current nesting depth
func (c *TransactionCoordinator) Depth() int {
	return c.depth
}

// InTransaction reports whether a transaction is open
func (c *TransactionCoordinator) InTransaction() bool {
	return c.depth > 0
}

// Begin opens a transaction, or a savepoint inside the open one
func (c *TransactionCoordinator) Begin(ctx context.Context) error {
	if c.depth == 0 {
		if err := c.exec(ctx, "begin", "BEGIN"); err != nil {
			return err
		}
		c.conn.setPinned(true)
		c.depth = 1
		return nil
	}

	if err := c.exec(ctx, "savepoint", "SAVEPOINT "+savepointName(c.depth)); err != nil {
		c.resetIfConnectionLost(ctx, err)
		return err
	}
	c.depth++
	return nil
}

// Commit commits the transaction at depth 1 or releases the innermost savepoint
func (c *TransactionCoordinator) Commit(ctx context.Context) error {
	switch {
	case c.depth == 0:
		return noActiveTransaction("commit")

	case c.depth == 1:
		tag, err := c.conn.Exec(ctx, "COMMIT")
		if err != nil {
			observability.RecordTransactionOp("commit", err)
			c.logger.Error("Transaction commit failed", zap.Error(err))
			// COMMIT may never have reached the server
			_ = c.end(ctx)
			return err
		}
		if tag.String() == "ROLLBACK" {
			// the server turns COMMIT of a failed transaction into a rollback
			err = domain.NewDomainError(domain.ErrorCodeQueryFailed, "transaction was rolled back by the server on commit")
			c.logger.Error("Transaction commit failed", zap.Error(err))
		}
		observability.RecordTransactionOp("commit", err)
		c.reset()
		return err

	default:
		if err := c.exec(ctx, "release", "RELEASE SAVEPOINT "+savepointName(c.depth-1)); err != nil {
			c.resetIfConnectionLost(ctx, err)
			return err
		}
		c.depth--
		return nil
	}
}

// Rollback rolls back the whole transaction at depth 1, otherwise only the
// innermost savepoint; outer levels remain open.
func (c *TransactionCoordinator) Rollback(ctx context.Context) error {
	switch {
	case c.depth == 0:
		return noActiveTransaction("rollback")

	case c.depth == 1:
		return c.end(ctx)

	default:
		if err := c.exec(ctx, "rollback_to", "ROLLBACK TO SAVEPOINT "+savepointName(c.depth-1)); err != nil {
			c.resetIfConnectionLost(ctx, err)
			return err
		}
		c.depth--
		return nil
	}
}

// Abort rolls back every open level at once. It is a no-op with no open transaction.
func (c *TransactionCoordinator) Abort(ctx context.Context) error {
	if c.depth == 0 {
		return nil
	}

	c.logger.Warn("Aborting open transaction", zap.Int("depth", c.depth))
	return c.end(ctx)
}

// WithTransaction runs fn inside one new nesting level. The level is
// committed when fn returns nil and rolled back when fn returns an error or
// panics; the panic is re-raised after the rollback.
func (c *TransactionCoordinator) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.Begin(ctx); err != nil {
		return err
	}
	level := c.depth

	defer func() {
		if p := recover(); p != nil {
			c.unwind(ctx, level)
			panic(p)
		}
	}()

	if err := fn(ctx); err != nil {
		c.unwind(ctx, level)
		return err
	}

	if c.depth != level {
		c.unwind(ctx, level)
		return domain.NewDomainError(domain.ErrorCodeInternalError, "unbalanced transaction levels").
			WithDetail("expected_depth", level)
	}
	return c.Commit(ctx)
}

// unwind rolls back until the level opened at depth level is gone
func (c *TransactionCoordinator) unwind(ctx context.Context, level int) {
	for c.depth >= level && c.depth > 0 {
		before := c.depth
		if err := c.Rollback(ctx); err != nil {
			c.logger.Error("Failed to rollback transaction",
				zap.Int("depth", before),
				zap.Error(err),
			)
			if c.depth == before {
				// savepoint rollback refused; drop the whole transaction
				_ = c.Abort(ctx)
			}
		}
	}
}

func (c *TransactionCoordinator) exec(ctx context.Context, op, sql string) error {
	_, err := c.conn.Exec(ctx, sql)
	observability.RecordTransactionOp(op, err)
	if err != nil {
		c.logger.Error("Transaction statement failed",
			zap.String("statement", sql),
			zap.Int("depth", c.depth),
			zap.Error(err),
		)
	}
	return err
}

// end rolls back the outermost transaction and returns to depth 0
func (c *TransactionCoordinator) end(ctx context.Context) error {
	endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), endTimeout)
	defer cancel()

	err := c.exec(endCtx, "rollback", "ROLLBACK")
	if err != nil {
		c.logger.Warn("Dropping connection with unconfirmed rollback", zap.Error(err))
		c.conn.discard(endCtx)
	}
	c.reset()
	return err
}

func (c *TransactionCoordinator) reset() {
	c.depth = 0
	c.conn.setPinned(false)
}

func (c *TransactionCoordinator) resetIfConnectionLost(ctx context.Context, err error) {
	if domain.IsConnectionError(err) {
		c.conn.discard(ctx)
		c.reset()
	}
}

func savepointName(depth int) string {
	return fmt.Sprintf("sp_%d", depth)
}

func noActiveTransaction(op string) error {
	return domain.NewDomainError(domain.ErrorCodeNoActiveTransaction, "no active transaction").
		WithDetail("operation", op)
}
