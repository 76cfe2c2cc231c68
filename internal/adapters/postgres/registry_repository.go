package postgres

import (
	"context"
	"fmt"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
)

const (
	insertStudent = `
INSERT INTO students (admission_number, first_name, last_name)
VALUES ($1, $2, $3)
RETURNING id, created_at`

	selectStudentByAdmission = `
SELECT id, admission_number, first_name, last_name, created_at
FROM students
WHERE admission_number = $1`

	insertEmployee = `
INSERT INTO employees (employee_id, full_name, role)
VALUES ($1, $2, $3)
RETURNING id, created_at`

	selectEmployeeByID = `
SELECT id, employee_id, full_name, role, created_at
FROM employees
WHERE employee_id = $1`

	studentAdmissionConstraint = "students_admission_number_key"
	employeeIDConstraint       = "employees_employee_id_key"
)

// StudentRepository implements ports.StudentRepository
type StudentRepository struct{}

var _ ports.StudentRepository = (*StudentRepository)(nil)

// NewStudentRepository creates a new student repository
func NewStudentRepository() *StudentRepository {
	return &StudentRepository{}
}

// Create inserts a student under its admission number
func (r *StudentRepository) Create(ctx context.Context, db ports.DBTX, student *domain.Student) error {
	err := db.QueryRow(ctx, insertStudent,
		student.AdmissionNumber, student.FirstName, student.LastName,
	).Scan(&student.ID, &student.CreatedAt)
	if err != nil {
		return insertError(err, "students", studentAdmissionConstraint, "admission", student.AdmissionNumber)
	}
	return nil
}

// GetByAdmissionNumber retrieves a student
func (r *StudentRepository) GetByAdmissionNumber(ctx context.Context, db ports.DBTX, admissionNumber string) (*domain.Student, error) {
	var s domain.Student
	err := db.QueryRow(ctx, selectStudentByAdmission, admissionNumber).
		Scan(&s.ID, &s.AdmissionNumber, &s.FirstName, &s.LastName, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get student by admission number: %w", err)
	}
	return &s, nil
}

// EmployeeRepository implements ports.EmployeeRepository
type EmployeeRepository struct{}

var _ ports.EmployeeRepository = (*EmployeeRepository)(nil)

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository() *EmployeeRepository {
	return &EmployeeRepository{}
}

// Create inserts an employee under its employee ID
func (r *EmployeeRepository) Create(ctx context.Context, db ports.DBTX, employee *domain.Employee) error {
	err := db.QueryRow(ctx, insertEmployee,
		employee.EmployeeID, employee.FullName, employee.Role,
	).Scan(&employee.ID, &employee.CreatedAt)
	if err != nil {
		return insertError(err, "employees", employeeIDConstraint, "employee", employee.EmployeeID)
	}
	return nil
}

// GetByEmployeeID retrieves an employee
func (r *EmployeeRepository) GetByEmployeeID(ctx context.Context, db ports.DBTX, employeeID string) (*domain.Employee, error) {
	var e domain.Employee
	err := db.QueryRow(ctx, selectEmployeeByID, employeeID).
		Scan(&e.ID, &e.EmployeeID, &e.FullName, &e.Role, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get employee by employee id: %w", err)
	}
	return &e, nil
}
