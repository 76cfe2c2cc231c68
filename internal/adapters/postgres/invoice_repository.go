package postgres

import (
	"context"
	"fmt"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	insertInvoice = `
INSERT INTO invoices (
    student_id, invoice_number, issue_date, due_date,
    total_amount, paid_amount, status, generated_by
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at`

	insertInvoiceItem = `
INSERT INTO invoice_items (invoice_id, fee_type_id, description, amount)
VALUES ($1, $2, $3, $4)
RETURNING id`

	selectInvoiceByNumber = `
SELECT id, student_id, invoice_number, issue_date, due_date,
       total_amount, paid_amount, status, generated_by, created_at
FROM invoices
WHERE invoice_number = $1`

	selectInvoiceItems = `
SELECT id, invoice_id, fee_type_id, description, amount
FROM invoice_items
WHERE invoice_id = $1
ORDER BY id`

	invoiceNumberConstraint = "invoices_invoice_number_key"
)

// InvoiceRepository implements ports.InvoiceRepository
type InvoiceRepository struct{}

var _ ports.InvoiceRepository = (*InvoiceRepository)(nil)

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{}
}

// Create inserts the invoice header followed by its items.
// The caller's transaction makes the header and items one unit.
func (r *InvoiceRepository) Create(ctx context.Context, db ports.DBTX, invoice *domain.Invoice) error {
	total, err := decimalToNumeric(invoice.TotalAmount)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInsertFailed, "insert into invoices failed", err)
	}
	paid, err := decimalToNumeric(invoice.PaidAmount)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInsertFailed, "insert into invoices failed", err)
	}

	err = db.QueryRow(ctx, insertInvoice,
		invoice.StudentID,
		invoice.InvoiceNumber,
		pgDate(invoice.IssueDate),
		pgDate(invoice.DueDate),
		total,
		paid,
		string(invoice.Status),
		invoice.GeneratedBy,
	).Scan(&invoice.ID, &invoice.CreatedAt)
	if err != nil {
		return insertError(err, "invoices", invoiceNumberConstraint, "invoice", invoice.InvoiceNumber)
	}

	for i := range invoice.Items {
		item := &invoice.Items[i]
		item.InvoiceID = invoice.ID

		amount, err := decimalToNumeric(item.Amount)
		if err != nil {
			return domain.WrapError(domain.ErrorCodeInsertFailed, "insert into invoice_items failed", err)
		}

		err = db.QueryRow(ctx, insertInvoiceItem,
			item.InvoiceID, item.FeeTypeID, item.Description, amount,
		).Scan(&item.ID)
		if err != nil {
			return insertError(err, "invoice_items", "", "invoice", invoice.InvoiceNumber)
		}
	}

	return nil
}

// GetByNumber retrieves an invoice and its items
func (r *InvoiceRepository) GetByNumber(ctx context.Context, db ports.DBTX, invoiceNumber string) (*domain.Invoice, error) {
	var (
		inv       domain.Invoice
		issueDate pgtype.Date
		dueDate   pgtype.Date
		total     pgtype.Numeric
		paid      pgtype.Numeric
		status    string
	)

	err := db.QueryRow(ctx, selectInvoiceByNumber, invoiceNumber).Scan(
		&inv.ID, &inv.StudentID, &inv.InvoiceNumber, &issueDate, &dueDate,
		&total, &paid, &status, &inv.GeneratedBy, &inv.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get invoice by number: %w", err)
	}

	inv.IssueDate = issueDate.Time
	inv.DueDate = dueDate.Time
	inv.Status = domain.InvoiceStatus(status)
	if inv.TotalAmount, err = pgNumericToDecimal(total); err != nil {
		return nil, fmt.Errorf("convert total amount: %w", err)
	}
	if inv.PaidAmount, err = pgNumericToDecimal(paid); err != nil {
		return nil, fmt.Errorf("convert paid amount: %w", err)
	}

	rows, err := db.Query(ctx, selectInvoiceItems, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item   domain.InvoiceItem
			amount pgtype.Numeric
		)
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.FeeTypeID, &item.Description, &amount); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		if item.Amount, err = pgNumericToDecimal(amount); err != nil {
			return nil, fmt.Errorf("convert item amount: %w", err)
		}
		inv.Items = append(inv.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}

	return &inv, nil
}
