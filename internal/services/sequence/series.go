package sequence

import (
	"fmt"
	"strings"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
)

// Series describes one family of human-readable identifiers: a fixed prefix,
// an optional date stamp and a zero-padded counter, stored in Table.Column.
type Series struct {
	Name       string // metrics/log label
	Prefix     string
	DateLayout string // Go time layout appended to Prefix; empty for none
	Width      int    // digits in the counter suffix
	Table      string
	Column     string
}

// Predefined series
var (
	// Receipt numbers restart daily: RCT202405210001
	Receipt = Series{Name: "receipt", Prefix: "RCT", DateLayout: "20060102", Width: 4, Table: "fee_payments", Column: "receipt_number"}

	// Invoice numbers restart monthly: INV2024050001
	Invoice = Series{Name: "invoice", Prefix: "INV", DateLayout: "200601", Width: 4, Table: "invoices", Column: "invoice_number"}

	// Admission numbers restart yearly: ADM20240001
	Admission = Series{Name: "admission", Prefix: "ADM", DateLayout: "2006", Width: 4, Table: "students", Column: "admission_number"}

	// Employee IDs restart yearly: EMP20240001
	Employee = Series{Name: "employee", Prefix: "EMP", DateLayout: "2006", Width: 4, Table: "employees", Column: "employee_id"}
)

// ByName resolves a predefined series
func ByName(name string) (Series, bool) {
	for _, s := range []Series{Receipt, Invoice, Admission, Employee} {
		if s.Name == name {
			return s, true
		}
	}
	return Series{}, false
}

// PrefixAt returns the prefix in force at the given instant
func (s Series) PrefixAt(at time.Time) string {
	if s.DateLayout == "" {
		return s.Prefix
	}
	return s.Prefix + at.Format(s.DateLayout)
}

// MaxSequence is the largest counter that fits in Width digits
func (s Series) MaxSequence() int {
	n := 1
	for i := 0; i < s.Width; i++ {
		n *= 10
	}
	return n - 1
}

// Format renders prefix plus the zero-padded counter
func (s Series) Format(prefix string, seq int) (string, error) {
	if seq < 1 || seq > s.MaxSequence() {
		return "", domain.NewDomainError(domain.ErrorCodeSequenceExhausted, "identifier series exhausted").
			WithDetail("series", s.Name).
			WithDetail("prefix", prefix).
			WithDetail("max", s.MaxSequence())
	}
	return fmt.Sprintf("%s%0*d", prefix, s.Width, seq), nil
}

// NextAfter returns the identifier following last under prefix.
// An empty last starts the series at 1.
func (s Series) NextAfter(prefix, last string) (string, error) {
	if last == "" {
		return s.Format(prefix, 1)
	}

	seq, err := s.parseSuffix(prefix, last)
	if err != nil {
		return "", err
	}
	return s.Format(prefix, seq+1)
}

func (s Series) parseSuffix(prefix, id string) (int, error) {
	if !strings.HasPrefix(id, prefix) || len(id) != len(prefix)+s.Width {
		return 0, corrupt(s, id)
	}

	seq := 0
	for _, r := range id[len(prefix):] {
		if r < '0' || r > '9' {
			return 0, corrupt(s, id)
		}
		seq = seq*10 + int(r-'0')
	}
	return seq, nil
}

func corrupt(s Series, id string) error {
	return domain.NewDomainError(domain.ErrorCodeSequenceCorrupt, "existing identifier has a malformed suffix").
		WithDetail("series", s.Name).
		WithDetail("identifier", id)
}
