// Package session hands out ledger sessions: one database connection with
// its transaction coordinator and the services bound to it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/adapters/database"
	"github.com/desblooms/school-crm-sub000/internal/adapters/postgres"
	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/desblooms/school-crm-sub000/internal/services/ledger"
	"github.com/desblooms/school-crm-sub000/internal/services/registry"
	"github.com/desblooms/school-crm-sub000/internal/services/sequence"
	"github.com/desblooms/school-crm-sub000/pkg/timeutil"
	"go.uber.org/zap"
)

// ErrPoolClosed is returned by Acquire after Close
var ErrPoolClosed = domain.NewDomainError(domain.ErrorCodeConnectionUnavailable, "session pool closed")

// Session is one connection and everything that runs on it. A session is
// used by one caller at a time.
type Session struct {
	ID       int
	Conn     *database.ConnectionManager
	Tx       *database.TransactionCoordinator
	Numbers  *sequence.Generator
	Ledger   *ledger.FeeLedger
	Registry *registry.Service
}

// Config configures a Pool
type Config struct {
	Size               int
	Connection         *database.ConnectionConfig
	Dialer             database.Dialer // nil dials PostgreSQL with pgx
	SerializeSequences bool
	Ledger             ledger.Config
	Clock              timeutil.Clock
	Renderer           ports.InvoiceRenderer
}

// Pool owns a fixed set of sessions
type Pool struct {
	idle   chan *Session
	all    []*Session
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool builds cfg.Size sessions. Connections are opened lazily on first use.
func NewPool(cfg Config, logger *zap.Logger) *Pool {
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.NewSystemClock(time.UTC)
	}

	p := &Pool{
		idle:   make(chan *Session, cfg.Size),
		logger: logger,
	}

	payments := postgres.NewPaymentRepository()
	invoices := postgres.NewInvoiceRepository()
	students := postgres.NewStudentRepository()
	employees := postgres.NewEmployeeRepository()

	for i := 0; i < cfg.Size; i++ {
		connCfg := *cfg.Connection
		sessionLogger := logger.With(zap.Int("session", i))

		conn := database.NewConnectionManager(&connCfg, cfg.Dialer, sessionLogger)
		tx := database.NewTransactionCoordinator(conn, sessionLogger)
		numbers := sequence.NewGenerator(sessionLogger, cfg.SerializeSequences)

		s := &Session{
			ID:      i,
			Conn:    conn,
			Tx:      tx,
			Numbers: numbers,
			Ledger: ledger.NewFeeLedger(tx, payments, invoices, numbers, cfg.Renderer,
				cfg.Clock, sessionLogger, cfg.Ledger),
			Registry: registry.NewService(tx, students, employees, numbers,
				cfg.Clock, sessionLogger, cfg.Ledger.CollisionRetries, cfg.Ledger.CollisionBackoff),
		}
		p.all = append(p.all, s)
		p.idle <- s
	}

	return p
}

// Size returns the number of sessions
func (p *Pool) Size() int {
	return len(p.all)
}

// Acquire waits for an idle session
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	select {
	case s, ok := <-p.idle:
		if !ok {
			return nil, ErrPoolClosed
		}
		if p.isClosed() {
			// Close is waiting for this session
			p.idle <- s
			return nil, ErrPoolClosed
		}
		return s, nil
	case <-ctx.Done():
		return nil, domain.WrapError(domain.ErrorCodeConnectionUnavailable, "no idle session", ctx.Err())
	}
}

// Release returns s to the pool. A transaction the caller left open is rolled back first.
func (p *Pool) Release(ctx context.Context, s *Session) {
	if s.Tx.InTransaction() {
		p.logger.Warn("Session released with an open transaction",
			zap.Int("session", s.ID),
			zap.Int("depth", s.Tx.Depth()),
		)
		if err := s.Tx.Abort(ctx); err != nil {
			p.logger.Error("Failed to abort transaction on release", zap.Int("session", s.ID), zap.Error(err))
		}
	}

	p.idle <- s
}

// Do runs fn on an acquired session and releases it afterwards
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context, s *Session) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(context.WithoutCancel(ctx), s)
	return fn(ctx, s)
}

// CollectFee records a fee payment on any idle session
func (p *Pool) CollectFee(ctx context.Context, req ledger.CollectFeeRequest) (*ledger.FeeReceipt, error) {
	var receipt *ledger.FeeReceipt
	err := p.Do(ctx, func(ctx context.Context, s *Session) error {
		var err error
		receipt, err = s.Ledger.CollectFee(ctx, req)
		return err
	})
	return receipt, err
}

// AdmitStudent registers a student on any idle session
func (p *Pool) AdmitStudent(ctx context.Context, student *domain.Student) error {
	return p.Do(ctx, func(ctx context.Context, s *Session) error {
		return s.Registry.AdmitStudent(ctx, student)
	})
}

// HireEmployee registers an employee on any idle session
func (p *Pool) HireEmployee(ctx context.Context, employee *domain.Employee) error {
	return p.Do(ctx, func(ctx context.Context, s *Session) error {
		return s.Registry.HireEmployee(ctx, employee)
	})
}

// PeekNext reports the identifier series would hand out at the given
// instant, without consuming it; the lookup runs in a transaction that is
// rolled back.
func (p *Pool) PeekNext(ctx context.Context, series sequence.Series, at time.Time) (string, error) {
	var id string
	err := p.Do(ctx, func(ctx context.Context, s *Session) error {
		if err := s.Tx.Begin(ctx); err != nil {
			return err
		}
		var err error
		id, err = s.Numbers.Next(ctx, s.Tx, series, at)
		if rbErr := s.Tx.Rollback(ctx); rbErr != nil && err == nil {
			err = rbErr
		}
		return err
	})
	return id, err
}

// Ping proves the database is reachable through an idle session
func (p *Pool) Ping(ctx context.Context) error {
	return p.Do(ctx, func(ctx context.Context, s *Session) error {
		return s.Conn.HealthCheck(ctx)
	})
}

// Close waits for every session to come back, aborts anything still open
// and closes the connections
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for range p.all {
		select {
		case s := <-p.idle:
			if err := s.Tx.Abort(ctx); err != nil {
				errs = append(errs, fmt.Errorf("session %d abort: %w", s.ID, err))
			}
			if err := s.Conn.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("session %d close: %w", s.ID, err))
			}
		case <-ctx.Done():
			return errors.Join(append(errs, fmt.Errorf("waiting for sessions: %w", ctx.Err()))...)
		}
	}

	// every session is back; wake callers still blocked in Acquire
	close(p.idle)

	p.logger.Info("Session pool closed", zap.Int("sessions", len(p.all)))
	return errors.Join(errs...)
}

func (p *Pool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}
