package ports

import (
	"context"

	"github.com/desblooms/school-crm-sub000/internal/domain"
)

// StudentRepository persists students (students)
type StudentRepository interface {
	Create(ctx context.Context, db DBTX, student *domain.Student) error
	GetByAdmissionNumber(ctx context.Context, db DBTX, admissionNumber string) (*domain.Student, error)
}

// EmployeeRepository persists staff members (employees)
type EmployeeRepository interface {
	Create(ctx context.Context, db DBTX, employee *domain.Employee) error
	GetByEmployeeID(ctx context.Context, db DBTX, employeeID string) (*domain.Employee, error)
}
