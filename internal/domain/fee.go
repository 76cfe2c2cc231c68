package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the lifecycle state of a fee payment
type PaymentStatus string

const (
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentMethod is how the fee was tendered
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodMobileMoney  PaymentMethod = "mobile_money"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodCard         PaymentMethod = "card"
)

// IsValid reports whether m is one of the accepted payment methods
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodMobileMoney,
		PaymentMethodCheque, PaymentMethodCard:
		return true
	}
	return false
}

// InvoiceStatus represents the settlement state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// DefaultInvoiceDueDays is the due date offset applied when the caller does not supply one
const DefaultInvoiceDueDays = 30

// Payment is a single fee payment row (fee_payments)
type Payment struct {
	ID            int64
	StudentID     int64
	FeeTypeID     int64
	Amount        decimal.Decimal
	Method        PaymentMethod
	TransactionID *string // external reference (bank/mobile money), optional
	PaymentDate   time.Time
	MonthYear     string // period label, e.g. "2024-05"
	CollectedBy   int64
	ReceiptNumber string
	Remarks       *string
	Status        PaymentStatus
	CreatedAt     time.Time
}

// InvoiceItem is one line of an invoice (invoice_items)
type InvoiceItem struct {
	ID          int64
	InvoiceID   int64
	FeeTypeID   int64
	Description string
	Amount      decimal.Decimal
}

// Invoice is the billing document generated for a payment (invoices)
type Invoice struct {
	ID            int64
	StudentID     int64
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       time.Time
	TotalAmount   decimal.Decimal
	PaidAmount    decimal.Decimal
	Status        InvoiceStatus
	GeneratedBy   int64
	CreatedAt     time.Time
	Items         []InvoiceItem
}

// Amount columns are NUMERIC(12,2)
const AmountScale = 2

// MaxAmount is the first value that no longer fits an amount column
var MaxAmount = decimal.New(1, 12-AmountScale)

// ValidateAmount rejects monetary amounts the ledger cannot store exactly:
// zero or negative, finer than a cent, or too large for the column.
func ValidateAmount(field string, amount decimal.Decimal) error {
	var reason string
	switch {
	case amount.LessThanOrEqual(decimal.Zero):
		reason = "amount must be greater than zero"
	case !amount.Equal(amount.Truncate(AmountScale)):
		reason = "amount has more than two decimal places"
	case amount.GreaterThanOrEqual(MaxAmount):
		reason = "amount exceeds the largest storable value"
	default:
		return nil
	}
	return WrapError(ErrorCodeValidationAmountInvalid, reason, nil).
		WithDetail("field", field).
		WithDetail("amount", amount.String())
}

// ValidateDueDate rejects a due date on a calendar day before issue
func ValidateDueDate(issue, due time.Time) error {
	if calendarDay(due).Before(calendarDay(issue)) {
		return WrapError(ErrorCodeValidationDueDate, "due date is before the issue date", nil).
			WithDetail("issue_date", issue.Format(time.DateOnly)).
			WithDetail("due_date", due.Format(time.DateOnly))
	}
	return nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ItemsTotal sums the invoice line items
func (inv *Invoice) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range inv.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// Validate checks the invoice invariants before it is written:
// at least one item, every item amount storable, items summing to the total
// and a due date no earlier than the issue date.
func (inv *Invoice) Validate() error {
	if inv.InvoiceNumber == "" {
		return missingField("invoice_number")
	}
	if err := ValidateDueDate(inv.IssueDate, inv.DueDate); err != nil {
		return err
	}
	if len(inv.Items) == 0 {
		return missingField("items")
	}
	for i, item := range inv.Items {
		if err := ValidateAmount(fmt.Sprintf("items[%d].amount", i), item.Amount); err != nil {
			return err
		}
	}
	if !inv.ItemsTotal().Equal(inv.TotalAmount) {
		return WrapError(ErrorCodeValidationInvoiceUnbalanced, "invoice items do not sum to the invoice total", nil).
			WithDetail("items_total", inv.ItemsTotal().String()).
			WithDetail("total_amount", inv.TotalAmount.String())
	}
	return nil
}

// NewInvoiceForPayment derives the single-item invoice that accompanies a payment.
// A zero dueDate means issue date plus DefaultInvoiceDueDays.
func NewInvoiceForPayment(p *Payment, invoiceNumber string, dueDate time.Time) *Invoice {
	issue := p.PaymentDate
	if dueDate.IsZero() {
		dueDate = issue.AddDate(0, 0, DefaultInvoiceDueDays)
	}

	return &Invoice{
		StudentID:     p.StudentID,
		InvoiceNumber: invoiceNumber,
		IssueDate:     issue,
		DueDate:       dueDate,
		TotalAmount:   p.Amount,
		PaidAmount:    p.Amount,
		Status:        InvoiceStatusPaid,
		GeneratedBy:   p.CollectedBy,
		Items: []InvoiceItem{{
			FeeTypeID:   p.FeeTypeID,
			Description: fmt.Sprintf("Fee payment for %s (receipt %s)", p.MonthYear, p.ReceiptNumber),
			Amount:      p.Amount,
		}},
	}
}

func missingField(field string) *DomainError {
	return WrapError(ErrorCodeValidationMissingField, "required field missing", nil).
		WithDetail("field", field)
}
