// Package ledger turns a fee payment into a committed payment row plus the
// invoice that accompanies it.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/desblooms/school-crm-sub000/internal/services/sequence"
	"github.com/desblooms/school-crm-sub000/pkg/observability"
	"github.com/desblooms/school-crm-sub000/pkg/resilience"
	"github.com/desblooms/school-crm-sub000/pkg/timeutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// NumberGenerator hands out the next identifier of a series inside an open transaction
type NumberGenerator interface {
	Next(ctx context.Context, tx ports.DBPort, series sequence.Series, at time.Time) (string, error)
}

// CollectFeeRequest contains the data needed to record a fee payment
type CollectFeeRequest struct {
	StudentID              int64
	FeeTypeID              int64
	Amount                 decimal.Decimal
	Method                 domain.PaymentMethod
	CollectorID            int64
	PeriodLabel            string // e.g. "2024-05" or "Term 2"
	ExternalTransactionRef *string
	Remarks                *string
	DueDate                *time.Time // defaults to payment date + 30 days
}

// Validate rejects a request before anything is written
func (r *CollectFeeRequest) Validate() error {
	if err := domain.ValidateAmount("amount", r.Amount); err != nil {
		return err
	}
	switch {
	case r.StudentID <= 0:
		return missing("student_id")
	case r.FeeTypeID <= 0:
		return missing("fee_type_id")
	case r.CollectorID <= 0:
		return missing("collector_id")
	case strings.TrimSpace(r.PeriodLabel) == "":
		return missing("period_label")
	case !r.Method.IsValid():
		return domain.NewDomainError(domain.ErrorCodeValidationMissingField, "unsupported payment method").
			WithDetail("field", "method").
			WithDetail("value", string(r.Method))
	}
	return nil
}

// FeeReceipt identifies what a successful collection committed
type FeeReceipt struct {
	PaymentID     int64
	InvoiceID     int64
	ReceiptNumber string
	InvoiceNumber string
	Amount        decimal.Decimal
	PaymentDate   time.Time
	DueDate       time.Time
}

// Config tunes the collision retry policy
type Config struct {
	// CollisionRetries is how many times a whole generate-and-insert attempt
	// is repeated after losing a number to a concurrent session.
	CollisionRetries int
	CollisionBackoff resilience.BackoffStrategy
}

// DefaultConfig returns the default retry policy
func DefaultConfig() Config {
	return Config{
		CollisionRetries: 3,
		CollisionBackoff: resilience.CollisionBackoff(),
	}
}

// FeeLedger records fee payments atomically with their invoices
type FeeLedger struct {
	tx       ports.DBPort
	payments ports.PaymentRepository
	invoices ports.InvoiceRepository
	numbers  NumberGenerator
	renderer ports.InvoiceRenderer
	clock    timeutil.Clock
	logger   *zap.Logger
	cfg      Config
}

// NewFeeLedger creates a fee ledger bound to one session's transaction coordinator.
// renderer may be nil.
func NewFeeLedger(
	tx ports.DBPort,
	payments ports.PaymentRepository,
	invoices ports.InvoiceRepository,
	numbers NumberGenerator,
	renderer ports.InvoiceRenderer,
	clock timeutil.Clock,
	logger *zap.Logger,
	cfg Config,
) *FeeLedger {
	if cfg.CollisionBackoff == nil {
		cfg.CollisionBackoff = resilience.CollisionBackoff()
	}
	if cfg.CollisionRetries < 0 {
		cfg.CollisionRetries = 0
	}
	return &FeeLedger{
		tx:       tx,
		payments: payments,
		invoices: invoices,
		numbers:  numbers,
		renderer: renderer,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
	}
}

// CollectFee records a payment and its invoice in one transaction.
// Either both rows commit or neither does. A receipt or invoice number lost
// to a concurrent session rolls the attempt back and starts it over.
func (l *FeeLedger) CollectFee(ctx context.Context, req CollectFeeRequest) (*FeeReceipt, error) {
	opID := uuid.New().String()
	start := time.Now()

	err := req.Validate()
	if err == nil && req.DueDate != nil {
		err = domain.ValidateDueDate(l.clock.Now(), *req.DueDate)
	}
	if err != nil {
		l.logger.Info("Fee collection rejected",
			zap.String("operation_id", opID),
			zap.Int64("student_id", req.StudentID),
			zap.Error(err),
		)
		l.record(req, "rejected", start)
		return nil, err
	}

	var receipt *FeeReceipt
	err = resilience.Retry(ctx, l.cfg.CollisionRetries+1, l.cfg.CollisionBackoff, domain.IsSequenceCollision,
		func(attempt int) error {
			if attempt > 0 {
				l.logger.Warn("Retrying fee collection after identifier collision",
					zap.String("operation_id", opID),
					zap.Int("attempt", attempt+1),
				)
			}
			var err error
			receipt, err = l.collectOnce(ctx, req)
			return err
		})
	if err != nil {
		l.logger.Error("Fee collection failed",
			zap.String("operation_id", opID),
			zap.Int64("student_id", req.StudentID),
			zap.Int64("fee_type_id", req.FeeTypeID),
			zap.String("amount", req.Amount.String()),
			zap.String("code", string(domain.GetErrorCode(err))),
			zap.Error(err),
		)
		l.record(req, "failed", start)
		return nil, err
	}

	l.record(req, "success", start)
	l.logger.Info("Fee collected",
		zap.String("operation_id", opID),
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("invoice_number", receipt.InvoiceNumber),
		zap.Int64("payment_id", receipt.PaymentID),
		zap.String("amount", receipt.Amount.String()),
	)

	l.render(ctx, opID, receipt)
	return receipt, nil
}

// collectOnce runs one generate-and-insert attempt inside its own transaction level
func (l *FeeLedger) collectOnce(ctx context.Context, req CollectFeeRequest) (*FeeReceipt, error) {
	var receipt *FeeReceipt

	err := l.tx.WithTransaction(ctx, func(ctx context.Context) error {
		now := l.clock.Now()

		receiptNumber, err := l.numbers.Next(ctx, l.tx, sequence.Receipt, now)
		if err != nil {
			return fmt.Errorf("generate receipt number: %w", err)
		}

		payment := &domain.Payment{
			StudentID:     req.StudentID,
			FeeTypeID:     req.FeeTypeID,
			Amount:        req.Amount,
			Method:        req.Method,
			TransactionID: req.ExternalTransactionRef,
			PaymentDate:   now,
			MonthYear:     req.PeriodLabel,
			CollectedBy:   req.CollectorID,
			ReceiptNumber: receiptNumber,
			Remarks:       req.Remarks,
			Status:        domain.PaymentStatusPaid,
		}
		if err := l.payments.Create(ctx, l.tx.DB(), payment); err != nil {
			return insertFailed("fee_payments", err)
		}

		invoiceNumber, err := l.numbers.Next(ctx, l.tx, sequence.Invoice, now)
		if err != nil {
			return fmt.Errorf("generate invoice number: %w", err)
		}

		var due time.Time
		if req.DueDate != nil {
			due = *req.DueDate
		}
		invoice := domain.NewInvoiceForPayment(payment, invoiceNumber, due)
		if err := invoice.Validate(); err != nil {
			return err
		}
		if err := l.invoices.Create(ctx, l.tx.DB(), invoice); err != nil {
			return insertFailed("invoices", err)
		}

		receipt = &FeeReceipt{
			PaymentID:     payment.ID,
			InvoiceID:     invoice.ID,
			ReceiptNumber: receiptNumber,
			InvoiceNumber: invoiceNumber,
			Amount:        payment.Amount,
			PaymentDate:   payment.PaymentDate,
			DueDate:       invoice.DueDate,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// render hands the committed invoice to the document renderer. The payment
// is already committed, so a rendering failure is only logged.
func (l *FeeLedger) render(ctx context.Context, opID string, receipt *FeeReceipt) {
	if l.renderer == nil {
		return
	}
	if err := l.renderer.RenderInvoice(ctx, receipt.InvoiceID); err != nil {
		l.logger.Warn("Invoice rendering failed",
			zap.String("operation_id", opID),
			zap.String("invoice_number", receipt.InvoiceNumber),
			zap.Error(err),
		)
	}
}

func (l *FeeLedger) record(req CollectFeeRequest, status string, start time.Time) {
	cents := req.Amount.Shift(2).IntPart()
	observability.RecordFeeCollection(string(req.Method), status, cents, time.Since(start).Seconds())
}

// insertFailed keeps classified repository errors and labels anything else
// as a failed insert into table
func insertFailed(table string, err error) error {
	if domain.GetErrorCode(err) != "" {
		return err
	}
	return domain.WrapError(domain.ErrorCodeInsertFailed, fmt.Sprintf("insert into %s failed", table), err).
		WithDetail("table", table)
}

func missing(field string) *domain.DomainError {
	return domain.NewDomainError(domain.ErrorCodeValidationMissingField, "required field missing").
		WithDetail("field", field)
}
