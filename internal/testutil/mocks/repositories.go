package mocks

import (
	"context"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockStudentRepository is a testify mock of ports.StudentRepository
type MockStudentRepository struct {
	mock.Mock
}

var _ ports.StudentRepository = (*MockStudentRepository)(nil)

func (m *MockStudentRepository) Create(ctx context.Context, db ports.DBTX, student *domain.Student) error {
	args := m.Called(ctx, db, student)
	return args.Error(0)
}

func (m *MockStudentRepository) GetByAdmissionNumber(ctx context.Context, db ports.DBTX, admissionNumber string) (*domain.Student, error) {
	args := m.Called(ctx, db, admissionNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Student), args.Error(1)
}

// MockEmployeeRepository is a testify mock of ports.EmployeeRepository
type MockEmployeeRepository struct {
	mock.Mock
}

var _ ports.EmployeeRepository = (*MockEmployeeRepository)(nil)

func (m *MockEmployeeRepository) Create(ctx context.Context, db ports.DBTX, employee *domain.Employee) error {
	args := m.Called(ctx, db, employee)
	return args.Error(0)
}

func (m *MockEmployeeRepository) GetByEmployeeID(ctx context.Context, db ports.DBTX, employeeID string) (*domain.Employee, error) {
	args := m.Called(ctx, db, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Employee), args.Error(1)
}
