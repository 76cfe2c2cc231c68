// Package registry admits students and hires employees under generated
// admission numbers and employee IDs.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/desblooms/school-crm-sub000/internal/services/sequence"
	"github.com/desblooms/school-crm-sub000/pkg/observability"
	"github.com/desblooms/school-crm-sub000/pkg/resilience"
	"github.com/desblooms/school-crm-sub000/pkg/timeutil"
	"go.uber.org/zap"
)

// NumberGenerator hands out the next identifier of a series inside an open transaction
type NumberGenerator interface {
	Next(ctx context.Context, tx ports.DBPort, series sequence.Series, at time.Time) (string, error)
}

// Service registers people under generated identifiers
type Service struct {
	tx        ports.DBPort
	students  ports.StudentRepository
	employees ports.EmployeeRepository
	numbers   NumberGenerator
	clock     timeutil.Clock
	logger    *zap.Logger
	retries   int
	backoff   resilience.BackoffStrategy
}

// NewService creates a registry service. collisionRetries is how many times a
// registration that lost its number to a concurrent session is repeated.
func NewService(
	tx ports.DBPort,
	students ports.StudentRepository,
	employees ports.EmployeeRepository,
	numbers NumberGenerator,
	clock timeutil.Clock,
	logger *zap.Logger,
	collisionRetries int,
	backoff resilience.BackoffStrategy,
) *Service {
	if backoff == nil {
		backoff = resilience.CollisionBackoff()
	}
	return &Service{
		tx:        tx,
		students:  students,
		employees: employees,
		numbers:   numbers,
		clock:     clock,
		logger:    logger,
		retries:   collisionRetries,
		backoff:   backoff,
	}
}

// AdmitStudent assigns the next admission number and inserts the student
func (s *Service) AdmitStudent(ctx context.Context, student *domain.Student) error {
	if err := student.Validate(); err != nil {
		observability.RecordRegistration("student", "rejected")
		return err
	}

	err := s.register(ctx, sequence.Admission, func(ctx context.Context, id string) error {
		student.AdmissionNumber = id
		return s.students.Create(ctx, s.tx.DB(), student)
	})
	if err != nil {
		student.AdmissionNumber = ""
		observability.RecordRegistration("student", "failed")
		s.logger.Error("Failed to admit student",
			zap.String("first_name", student.FirstName),
			zap.String("last_name", student.LastName),
			zap.Error(err),
		)
		return err
	}

	observability.RecordRegistration("student", "success")
	s.logger.Info("Student admitted",
		zap.Int64("student_id", student.ID),
		zap.String("admission_number", student.AdmissionNumber),
	)
	return nil
}

// HireEmployee assigns the next employee ID and inserts the employee
func (s *Service) HireEmployee(ctx context.Context, employee *domain.Employee) error {
	if err := employee.Validate(); err != nil {
		observability.RecordRegistration("employee", "rejected")
		return err
	}

	err := s.register(ctx, sequence.Employee, func(ctx context.Context, id string) error {
		employee.EmployeeID = id
		return s.employees.Create(ctx, s.tx.DB(), employee)
	})
	if err != nil {
		employee.EmployeeID = ""
		observability.RecordRegistration("employee", "failed")
		s.logger.Error("Failed to hire employee",
			zap.String("full_name", employee.FullName),
			zap.Error(err),
		)
		return err
	}

	observability.RecordRegistration("employee", "success")
	s.logger.Info("Employee hired",
		zap.Int64("employee_row_id", employee.ID),
		zap.String("employee_id", employee.EmployeeID),
	)
	return nil
}

// register generates an identifier of series and passes it to insert, all in
// one transaction level, repeating the pair after a collision
func (s *Service) register(ctx context.Context, series sequence.Series, insert func(ctx context.Context, id string) error) error {
	return resilience.Retry(ctx, s.retries+1, s.backoff, domain.IsSequenceCollision, func(attempt int) error {
		if attempt > 0 {
			s.logger.Warn("Retrying registration after identifier collision",
				zap.String("series", series.Name),
				zap.Int("attempt", attempt+1),
			)
		}
		return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			id, err := s.numbers.Next(ctx, s.tx, series, s.clock.Now())
			if err != nil {
				return fmt.Errorf("generate %s number: %w", series.Name, err)
			}
			return insert(ctx, id)
		})
	})
}
