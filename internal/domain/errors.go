package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Database Errors (DB_*)
	ErrorCodeConnectionUnavailable ErrorCode = "DB_CONNECTION_UNAVAILABLE"
	ErrorCodeQueryFailed           ErrorCode = "DB_QUERY_FAILED"

	// Transaction Errors (TXN_*)
	ErrorCodeNoActiveTransaction ErrorCode = "TXN_NO_ACTIVE_TRANSACTION"

	// Sequence Errors (SEQUENCE_*)
	ErrorCodeSequenceCollision ErrorCode = "SEQUENCE_COLLISION"
	ErrorCodeSequenceExhausted ErrorCode = "SEQUENCE_EXHAUSTED"
	ErrorCodeSequenceCorrupt   ErrorCode = "SEQUENCE_CORRUPT"

	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationAmountInvalid     ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationMissingField      ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeValidationInvoiceUnbalanced ErrorCode = "VALIDATION_INVOICE_UNBALANCED"
	ErrorCodeValidationDueDate           ErrorCode = "VALIDATION_DUE_DATE_INVALID"

	// Ledger Errors (LEDGER_*)
	ErrorCodeInsertFailed ErrorCode = "LEDGER_INSERT_FAILED"

	// Internal Errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
// This lets callers write errors.Is(err, domain.ErrNoActiveTransaction).
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the outermost error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsConnectionError reports a store that stayed unreachable after all retries
func IsConnectionError(err error) bool {
	return IsDomainError(err, ErrorCodeConnectionUnavailable)
}

// IsQueryError reports a single failed statement
func IsQueryError(err error) bool {
	return IsDomainError(err, ErrorCodeQueryFailed)
}

// IsTransactionStateError reports commit/rollback issued with no active transaction
func IsTransactionStateError(err error) bool {
	return IsDomainError(err, ErrorCodeNoActiveTransaction)
}

// IsSequenceCollision reports a generated identifier that lost a race for its unique slot
func IsSequenceCollision(err error) bool {
	return IsDomainError(err, ErrorCodeSequenceCollision)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationMissingField ||
		code == ErrorCodeValidationInvoiceUnbalanced ||
		code == ErrorCodeValidationDueDate
}

// Structured error instances used as errors.Is targets
var (
	ErrConnectionUnavailable = NewDomainError(ErrorCodeConnectionUnavailable, "database unavailable")
	ErrQueryFailed           = NewDomainError(ErrorCodeQueryFailed, "statement failed")

	ErrNoActiveTransaction = NewDomainError(ErrorCodeNoActiveTransaction, "no active transaction")

	ErrSequenceCollision = NewDomainError(ErrorCodeSequenceCollision, "generated identifier already taken")
	ErrSequenceExhausted = NewDomainError(ErrorCodeSequenceExhausted, "identifier series exhausted")
	ErrSequenceCorrupt   = NewDomainError(ErrorCodeSequenceCorrupt, "existing identifier has a malformed suffix")

	ErrInvalidAmount     = NewDomainError(ErrorCodeValidationAmountInvalid, "amount must be greater than zero")
	ErrMissingField      = NewDomainError(ErrorCodeValidationMissingField, "required field missing")
	ErrInvoiceUnbalanced = NewDomainError(ErrorCodeValidationInvoiceUnbalanced, "invoice items do not sum to the invoice total")

	ErrInsertFailed = NewDomainError(ErrorCodeInsertFailed, "insert failed")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal error")
)
