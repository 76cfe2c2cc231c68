package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/pkg/observability"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// uniqueViolation is the SQLSTATE for unique_violation
const uniqueViolation = "23505"

// nullText creates a pgtype.Text from an optional string; nil and "" are NULL
func nullText(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

// textPtr converts a nullable text column back to an optional string
func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// decimalToNumeric converts decimal.Decimal to pgtype.Numeric
func decimalToNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return n, fmt.Errorf("convert amount: %w", err)
	}
	return n, nil
}

// pgNumericToDecimal converts pgtype.Numeric to decimal.Decimal
func pgNumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	var dec decimal.Decimal
	str, err := n.MarshalJSON()
	if err != nil {
		return dec, fmt.Errorf("marshal numeric: %w", err)
	}
	// Remove quotes from JSON string
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	return decimal.NewFromString(string(str))
}

// pgDate keeps only the calendar day of t
func pgDate(t time.Time) pgtype.Date {
	return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
}

// isUniqueViolation reports whether err is a unique violation on constraint
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// insertError classifies a failed insert of a row that carries a generated identifier.
// Losing the identifier race is SEQUENCE_COLLISION; an unreachable database keeps
// its own code; everything else is LEDGER_INSERT_FAILED.
func insertError(err error, table, constraint, series, identifier string) error {
	if isUniqueViolation(err, constraint) {
		observability.RecordSequenceCollision(series)
		return domain.WrapError(domain.ErrorCodeSequenceCollision, "generated identifier already taken", err).
			WithDetail("series", series).
			WithDetail("identifier", identifier)
	}
	if domain.IsConnectionError(err) {
		return err
	}
	return domain.WrapError(domain.ErrorCodeInsertFailed, fmt.Sprintf("insert into %s failed", table), err).
		WithDetail("table", table)
}
