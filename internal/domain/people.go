package domain

import (
	"strings"
	"time"
)

// Student is a learner registered under a generated admission number
type Student struct {
	ID              int64
	AdmissionNumber string
	FirstName       string
	LastName        string
	CreatedAt       time.Time
}

// Validate checks the fields a caller must supply before admission
func (s *Student) Validate() error {
	if strings.TrimSpace(s.FirstName) == "" {
		return missingField("first_name")
	}
	if strings.TrimSpace(s.LastName) == "" {
		return missingField("last_name")
	}
	return nil
}

// Employee is a staff member registered under a generated employee ID
type Employee struct {
	ID         int64
	EmployeeID string
	FullName   string
	Role       string
	CreatedAt  time.Time
}

// Validate checks the fields a caller must supply before hiring
func (e *Employee) Validate() error {
	if strings.TrimSpace(e.FullName) == "" {
		return missingField("full_name")
	}
	if strings.TrimSpace(e.Role) == "" {
		return missingField("role")
	}
	return nil
}
