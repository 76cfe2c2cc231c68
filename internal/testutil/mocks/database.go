// Package mocks provides shared mock implementations for testing.
package mocks

import (
	"context"
	"reflect"

	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockDBTX is a testify mock of ports.DBTX
type MockDBTX struct {
	mock.Mock
}

var _ ports.DBTX = (*MockDBTX)(nil)

func (m *MockDBTX) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *MockDBTX) Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
}

func (m *MockDBTX) QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// MockRow is a pgx.Row that copies fixed values into Scan destinations
type MockRow struct {
	Values []any
	Err    error
}

// Scan assigns Values positionally or returns Err
func (r *MockRow) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	for i := range dest {
		if i >= len(r.Values) {
			break
		}
		if r.Values[i] == nil {
			continue
		}
		target := reflect.ValueOf(dest[i]).Elem()
		value := reflect.ValueOf(r.Values[i])
		if target.Kind() == reflect.Ptr && value.Type().AssignableTo(target.Type().Elem()) {
			// nullable column scanned into a pointer
			ptr := reflect.New(value.Type())
			ptr.Elem().Set(value)
			target.Set(ptr)
			continue
		}
		target.Set(value.Convert(target.Type()))
	}
	return nil
}

// ErrRow returns a row whose Scan fails with err
func ErrRow(err error) *MockRow {
	return &MockRow{Err: err}
}

// ValueRow returns a row scanning the given values
func ValueRow(values ...any) *MockRow {
	return &MockRow{Values: values}
}

// MockTransactionManager wraps a DBTX with a configurable nesting depth.
// Begin/Commit/Rollback are recorded on the embedded mock.
type MockTransactionManager struct {
	mock.Mock
	Executor ports.DBTX
	depth    int
}

var _ ports.DBPort = (*MockTransactionManager)(nil)

// NewMockTransactionManager returns a manager already inside one transaction level
func NewMockTransactionManager(db ports.DBTX) *MockTransactionManager {
	return &MockTransactionManager{Executor: db, depth: 1}
}

func (m *MockTransactionManager) DB() ports.DBTX { return m.Executor }

func (m *MockTransactionManager) Depth() int { return m.depth }

// SetDepth forces the reported depth
func (m *MockTransactionManager) SetDepth(depth int) { m.depth = depth }

func (m *MockTransactionManager) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	if args.Error(0) == nil {
		m.depth++
	}
	return args.Error(0)
}

func (m *MockTransactionManager) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.depth--
	return args.Error(0)
}

func (m *MockTransactionManager) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.depth--
	return args.Error(0)
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := m.Begin(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		_ = m.Rollback(ctx)
		return err
	}
	return m.Commit(ctx)
}
