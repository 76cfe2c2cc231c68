package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/domain/ports"
	"github.com/desblooms/school-crm-sub000/internal/services/sequence"
)

// memStore is the committed-or-pending content of an in-memory ledger
type memStore struct {
	payments []domain.Payment
	invoices []domain.Invoice
}

func (s memStore) clone() memStore {
	c := memStore{
		payments: append([]domain.Payment(nil), s.payments...),
		invoices: make([]domain.Invoice, len(s.invoices)),
	}
	for i, inv := range s.invoices {
		inv.Items = append([]domain.InvoiceItem(nil), inv.Items...)
		c.invoices[i] = inv
	}
	return c
}

// memTx is a ports.DBPort whose levels snapshot the store on Begin and
// restore it on Rollback
type memTx struct {
	store     memStore
	snapshots []memStore
	commits   int
	rollbacks int
}

var _ ports.DBPort = (*memTx)(nil)

func (t *memTx) DB() ports.DBTX { return nil }

func (t *memTx) Depth() int { return len(t.snapshots) }

func (t *memTx) Begin(ctx context.Context) error {
	t.snapshots = append(t.snapshots, t.store.clone())
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if len(t.snapshots) == 0 {
		return domain.NewDomainError(domain.ErrorCodeNoActiveTransaction, "no active transaction")
	}
	t.snapshots = t.snapshots[:len(t.snapshots)-1]
	t.commits++
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if len(t.snapshots) == 0 {
		return domain.NewDomainError(domain.ErrorCodeNoActiveTransaction, "no active transaction")
	}
	t.store = t.snapshots[len(t.snapshots)-1]
	t.snapshots = t.snapshots[:len(t.snapshots)-1]
	t.rollbacks++
	return nil
}

func (t *memTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := t.Begin(ctx); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		_ = t.Rollback(ctx)
		return err
	}
	return t.Commit(ctx)
}

type memPayments struct {
	tx  *memTx
	err error
}

func (r *memPayments) Create(ctx context.Context, db ports.DBTX, p *domain.Payment) error {
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.tx.store.payments {
		if existing.ReceiptNumber == p.ReceiptNumber {
			return domain.NewDomainError(domain.ErrorCodeSequenceCollision, "generated identifier already taken").
				WithDetail("series", "receipt")
		}
	}
	p.ID = int64(len(r.tx.store.payments) + 1)
	p.CreatedAt = p.PaymentDate
	r.tx.store.payments = append(r.tx.store.payments, *p)
	return nil
}

func (r *memPayments) GetByReceiptNumber(ctx context.Context, db ports.DBTX, receiptNumber string) (*domain.Payment, error) {
	for _, p := range r.tx.store.payments {
		if p.ReceiptNumber == receiptNumber {
			return &p, nil
		}
	}
	return nil, errors.New("not found")
}

type memInvoices struct {
	tx  *memTx
	err error
}

func (r *memInvoices) Create(ctx context.Context, db ports.DBTX, inv *domain.Invoice) error {
	if r.err != nil {
		return r.err
	}
	for _, existing := range r.tx.store.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return domain.NewDomainError(domain.ErrorCodeSequenceCollision, "generated identifier already taken").
				WithDetail("series", "invoice")
		}
	}
	inv.ID = int64(len(r.tx.store.invoices) + 1)
	for i := range inv.Items {
		inv.Items[i].ID = int64(i + 1)
		inv.Items[i].InvoiceID = inv.ID
	}
	r.tx.store.invoices = append(r.tx.store.invoices, *inv)
	return nil
}

func (r *memInvoices) GetByNumber(ctx context.Context, db ports.DBTX, invoiceNumber string) (*domain.Invoice, error) {
	for _, inv := range r.tx.store.invoices {
		if inv.InvoiceNumber == invoiceNumber {
			return &inv, nil
		}
	}
	return nil, errors.New("not found")
}

// memNumbers derives identifiers from the highest one in the store. The
// first staleReceipts receipt lookups pretend the store is empty, the way a
// concurrent session that read the maximum too early would.
type memNumbers struct {
	tx            *memTx
	staleReceipts int
	calls         []string
}

func (g *memNumbers) Next(ctx context.Context, tx ports.DBPort, series sequence.Series, at time.Time) (string, error) {
	if tx.Depth() == 0 {
		return "", domain.NewDomainError(domain.ErrorCodeNoActiveTransaction, "identifier generation requires an open transaction")
	}
	g.calls = append(g.calls, series.Name)
	prefix := series.PrefixAt(at)

	last := ""
	if series.Name == sequence.Receipt.Name && g.staleReceipts > 0 {
		g.staleReceipts--
		return series.NextAfter(prefix, last)
	}

	for _, id := range g.stored(series) {
		if len(id) == len(prefix)+series.Width && id[:len(prefix)] == prefix && id > last {
			last = id
		}
	}
	return series.NextAfter(prefix, last)
}

func (g *memNumbers) stored(series sequence.Series) []string {
	var ids []string
	switch series.Name {
	case sequence.Receipt.Name:
		for _, p := range g.tx.store.payments {
			ids = append(ids, p.ReceiptNumber)
		}
	case sequence.Invoice.Name:
		for _, inv := range g.tx.store.invoices {
			ids = append(ids, inv.InvoiceNumber)
		}
	}
	return ids
}

type recordingRenderer struct {
	rendered []int64
	err      error
}

func (r *recordingRenderer) RenderInvoice(ctx context.Context, invoiceID int64) error {
	r.rendered = append(r.rendered, invoiceID)
	return r.err
}
