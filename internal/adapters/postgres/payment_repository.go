package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	insertPayment = `
INSERT INTO fee_payments (
    student_id, fee_type_id, amount, payment_method, transaction_id,
    payment_date, month_year, collected_by, receipt_number, remarks, status
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, created_at`

	selectPaymentByReceipt = `
SELECT id, student_id, fee_type_id, amount, payment_method, transaction_id,
       payment_date, month_year, collected_by, receipt_number, remarks, status, created_at
FROM fee_payments
WHERE receipt_number = $1`

	paymentReceiptConstraint = "fee_payments_receipt_number_key"
)

// PaymentRepository implements ports.PaymentRepository
type PaymentRepository struct{}

var _ ports.PaymentRepository = (*PaymentRepository)(nil)

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{}
}

// Create inserts a fee payment and fills in its ID and CreatedAt
func (r *PaymentRepository) Create(ctx context.Context, db ports.DBTX, payment *domain.Payment) error {
	amount, err := decimalToNumeric(payment.Amount)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInsertFailed, "insert into fee_payments failed", err)
	}

	err = db.QueryRow(ctx, insertPayment,
		payment.StudentID,
		payment.FeeTypeID,
		amount,
		string(payment.Method),
		nullText(payment.TransactionID),
		payment.PaymentDate,
		payment.MonthYear,
		payment.CollectedBy,
		payment.ReceiptNumber,
		nullText(payment.Remarks),
		string(payment.Status),
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return insertError(err, "fee_payments", paymentReceiptConstraint, "receipt", payment.ReceiptNumber)
	}

	return nil
}

// GetByReceiptNumber retrieves a payment by its receipt number
func (r *PaymentRepository) GetByReceiptNumber(ctx context.Context, db ports.DBTX, receiptNumber string) (*domain.Payment, error) {
	var (
		p             domain.Payment
		amount        pgtype.Numeric
		method        string
		transactionID pgtype.Text
		remarks       pgtype.Text
		status        string
		paymentDate   time.Time
	)

	err := db.QueryRow(ctx, selectPaymentByReceipt, receiptNumber).Scan(
		&p.ID, &p.StudentID, &p.FeeTypeID, &amount, &method, &transactionID,
		&paymentDate, &p.MonthYear, &p.CollectedBy, &p.ReceiptNumber, &remarks, &status, &p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get payment by receipt number: %w", err)
	}

	if p.Amount, err = pgNumericToDecimal(amount); err != nil {
		return nil, fmt.Errorf("convert amount: %w", err)
	}
	p.Method = domain.PaymentMethod(method)
	p.TransactionID = textPtr(transactionID)
	p.Remarks = textPtr(remarks)
	p.Status = domain.PaymentStatus(status)
	p.PaymentDate = paymentDate

	return &p, nil
}
