package ports

import (
	"context"

	"github.com/desblooms/school-crm-sub000/internal/domain"
)

// PaymentRepository persists fee payments (fee_payments)
type PaymentRepository interface {
	// Create inserts the payment and sets its ID and CreatedAt.
	// A duplicate receipt number fails with SEQUENCE_COLLISION.
	Create(ctx context.Context, db DBTX, payment *domain.Payment) error

	// GetByReceiptNumber loads one payment
	GetByReceiptNumber(ctx context.Context, db DBTX, receiptNumber string) (*domain.Payment, error)
}

// InvoiceRepository persists invoices together with their items (invoices, invoice_items)
type InvoiceRepository interface {
	// Create inserts the invoice header and every item, setting their IDs.
	// A duplicate invoice number fails with SEQUENCE_COLLISION.
	Create(ctx context.Context, db DBTX, invoice *domain.Invoice) error

	// GetByNumber loads an invoice and its items
	GetByNumber(ctx context.Context, db DBTX, invoiceNumber string) (*domain.Invoice, error)
}

// InvoiceRenderer produces the printable invoice document after a payment commits
type InvoiceRenderer interface {
	RenderInvoice(ctx context.Context, invoiceID int64) error
}
