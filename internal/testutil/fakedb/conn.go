// Package fakedb provides an in-memory stand-in for a PostgreSQL server that
// understands just enough to exercise transaction handling: BEGIN, COMMIT,
// ROLLBACK, savepoints, an aborted-transaction state and a single table of
// text rows written with "INSERT INTO items".
package fakedb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConnectionLost is returned by every call on a killed connection
var ErrConnectionLost = errors.New("fakedb: connection lost")

// Server holds committed rows shared by every connection it dials
type Server struct {
	mu        sync.Mutex
	committed []string
	dials     int
	failDials int
	dialErr   error
	conns     []*Conn
}

// NewServer creates an empty server
func NewServer() *Server {
	return &Server{}
}

// FailNextDials makes the next n dials fail with err
func (s *Server) FailNextDials(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDials = n
	s.dialErr = err
}

// Dial opens a new connection
func (s *Server) Dial(ctx context.Context) (*Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.failDials > 0 {
		s.failDials--
		return nil, s.dialErr
	}
	c := &Conn{server: s, id: len(s.conns) + 1}
	s.conns = append(s.conns, c)
	return c, nil
}

// Dials returns the number of dial attempts so far
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Rows returns the committed rows
func (s *Server) Rows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.committed...)
}

// LastConn returns the most recently dialed connection
func (s *Server) LastConn() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

type savepoint struct {
	name     string
	snapshot []string
}

// Conn is one fake connection
type Conn struct {
	server *Server
	id     int

	mu         sync.Mutex
	statements []string
	inTx       bool
	aborted    bool
	working    []string
	savepoints []savepoint
	failOn     map[string]error
	killed     bool
	closed     bool
	pings      int
	rowFunc    func(sql string, args []any, dest []any) error
}

// ID identifies the connection within its server (1-based dial order)
func (c *Conn) ID() int { return c.id }

// FailOn makes every statement starting with prefix fail with err
func (c *Conn) FailOn(prefix string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOn == nil {
		c.failOn = make(map[string]error)
	}
	c.failOn[prefix] = err
}

// Kill simulates the server dropping the connection
func (c *Conn) Kill() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.killed = true
	c.inTx = false
	c.working = nil
	c.savepoints = nil
}

// OnQueryRow installs the handler that answers QueryRow calls.
// Without one QueryRow reports pgx.ErrNoRows.
func (c *Conn) OnQueryRow(fn func(sql string, args []any, dest []any) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowFunc = fn
}

// Statements returns every statement received, in order
func (c *Conn) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statements...)
}

// Pings returns the number of liveness probes received
func (c *Conn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

// Closed reports whether Close was called
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// InTransaction reports whether the fake server side has an open transaction
func (c *Conn) InTransaction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inTx
}

func (c *Conn) Ping(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	if c.killed || c.closed {
		return ErrConnectionLost
	}
	return ctx.Err()
}

func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.inTx = false
	return nil
}

func (c *Conn) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// a done context means the statement is never sent
	if err := ctx.Err(); err != nil {
		return pgconn.CommandTag{}, err
	}
	c.statements = append(c.statements, sql)
	if c.killed || c.closed {
		return pgconn.CommandTag{}, ErrConnectionLost
	}
	for prefix, err := range c.failOn {
		if strings.HasPrefix(sql, prefix) {
			if c.inTx {
				c.aborted = true
			}
			return pgconn.CommandTag{}, err
		}
	}

	upper := strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case upper == "BEGIN":
		c.inTx = true
		c.aborted = false
		c.working = c.committedCopy()
		c.savepoints = nil
		return pgconn.NewCommandTag("BEGIN"), nil

	case upper == "COMMIT":
		if !c.inTx {
			return pgconn.NewCommandTag("COMMIT"), nil
		}
		c.inTx = false
		if c.aborted {
			c.aborted = false
			return pgconn.NewCommandTag("ROLLBACK"), nil
		}
		c.server.mu.Lock()
		c.server.committed = append([]string(nil), c.working...)
		c.server.mu.Unlock()
		return pgconn.NewCommandTag("COMMIT"), nil

	case upper == "ROLLBACK":
		c.inTx = false
		c.aborted = false
		c.working = nil
		c.savepoints = nil
		return pgconn.NewCommandTag("ROLLBACK"), nil

	case strings.HasPrefix(upper, "ROLLBACK TO SAVEPOINT "):
		name := strings.TrimPrefix(upper, "ROLLBACK TO SAVEPOINT ")
		i := c.findSavepoint(name)
		if i < 0 {
			return pgconn.CommandTag{}, pgError("3B001", "savepoint does not exist")
		}
		c.working = append([]string(nil), c.savepoints[i].snapshot...)
		c.savepoints = c.savepoints[:i+1]
		c.aborted = false
		return pgconn.NewCommandTag("ROLLBACK"), nil
	}

	if c.aborted {
		return pgconn.CommandTag{}, pgError("25P02", "current transaction is aborted, commands ignored until end of transaction block")
	}

	switch {
	case strings.HasPrefix(upper, "SAVEPOINT "):
		if !c.inTx {
			return pgconn.CommandTag{}, pgError("25P01", "SAVEPOINT can only be used in transaction blocks")
		}
		c.savepoints = append(c.savepoints, savepoint{
			name:     strings.TrimPrefix(upper, "SAVEPOINT "),
			snapshot: append([]string(nil), c.working...),
		})
		return pgconn.NewCommandTag("SAVEPOINT"), nil

	case strings.HasPrefix(upper, "RELEASE SAVEPOINT "):
		i := c.findSavepoint(strings.TrimPrefix(upper, "RELEASE SAVEPOINT "))
		if i < 0 {
			return pgconn.CommandTag{}, pgError("3B001", "savepoint does not exist")
		}
		c.savepoints = c.savepoints[:i]
		return pgconn.NewCommandTag("RELEASE"), nil

	case strings.HasPrefix(upper, "INSERT INTO ITEMS"):
		if len(arguments) != 1 {
			return pgconn.CommandTag{}, fmt.Errorf("fakedb: insert expects one argument, got %d", len(arguments))
		}
		row := fmt.Sprint(arguments[0])
		if c.inTx {
			c.working = append(c.working, row)
		} else {
			c.server.mu.Lock()
			c.server.committed = append(c.server.committed, row)
			c.server.mu.Unlock()
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}

	return pgconn.NewCommandTag("SELECT 0"), nil
}

func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = append(c.statements, sql)
	if c.killed || c.closed {
		return nil, ErrConnectionLost
	}
	return nil, errors.New("fakedb: Query is not supported")
}

func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statements = append(c.statements, sql)
	if c.killed || c.closed {
		return Row(func(...any) error { return ErrConnectionLost })
	}
	fn := c.rowFunc
	if fn == nil {
		return Row(func(...any) error { return pgx.ErrNoRows })
	}
	return Row(func(dest ...any) error { return fn(sql, args, dest) })
}

func (c *Conn) committedCopy() []string {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	return append([]string(nil), c.server.committed...)
}

func (c *Conn) findSavepoint(name string) int {
	for i := len(c.savepoints) - 1; i >= 0; i-- {
		if c.savepoints[i].name == name {
			return i
		}
	}
	return -1
}

// Row adapts a scan function to pgx.Row
type Row func(dest ...any) error

func (r Row) Scan(dest ...any) error { return r(dest...) }

func pgError(code, message string) *pgconn.PgError {
	return &pgconn.PgError{Severity: "ERROR", Code: code, Message: message}
}
