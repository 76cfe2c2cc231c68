package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/adapters/postgres"
	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/services/ledger"
	"github.com/desblooms/school-crm-sub000/internal/services/sequence"
	"github.com/desblooms/school-crm-sub000/pkg/resilience"
	"github.com/desblooms/school-crm-sub000/pkg/timeutil"
	"github.com/desblooms/school-crm-sub000/test/integration/testdb"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLedger(s *testdb.Session, serialize bool, retries int) *ledger.FeeLedger {
	return ledger.NewFeeLedger(
		s.Tx,
		postgres.NewPaymentRepository(),
		postgres.NewInvoiceRepository(),
		sequence.NewGenerator(zap.NewNop(), serialize),
		nil,
		timeutil.NewSystemClock(time.UTC),
		zap.NewNop(),
		ledger.Config{CollisionRetries: retries, CollisionBackoff: resilience.CollisionBackoff()},
	)
}

func request(studentID, feeTypeID int64) ledger.CollectFeeRequest {
	return ledger.CollectFeeRequest{
		StudentID:   studentID,
		FeeTypeID:   feeTypeID,
		Amount:      decimal.RequireFromString("1000.00"),
		Method:      domain.PaymentMethodCash,
		CollectorID: 1,
		PeriodLabel: "2024-05",
	}
}

func TestCollectFee_Postgres(t *testing.T) {
	url := testdb.SetupTestDB(t)
	s := testdb.NewSession(t, url)
	ctx := context.Background()

	studentID := s.InsertStudent(t, "ADM20240001", "Amina", "Okello")
	feeTypeID := s.FeeTypeID(t, "Tuition")

	receipt, err := newLedger(s, true, 3).CollectFee(ctx, request(studentID, feeTypeID))
	require.NoError(t, err)

	today := time.Now().UTC().Format("20060102")
	assert.Equal(t, "RCT"+today+"0001", receipt.ReceiptNumber)
	assert.Equal(t, 1, s.Count(t, "fee_payments"))
	assert.Equal(t, 1, s.Count(t, "invoices"))
	assert.Equal(t, 1, s.Count(t, "invoice_items"))

	inv, err := postgres.NewInvoiceRepository().GetByNumber(ctx, s.Conn, receipt.InvoiceNumber)
	require.NoError(t, err)
	assert.True(t, inv.ItemsTotal().Equal(decimal.RequireFromString("1000.00")))
	assert.Equal(t, 30, int(inv.DueDate.Sub(inv.IssueDate).Hours()/24))
}

func TestCollectFee_Postgres_InvoiceFailureLeavesNoPayment(t *testing.T) {
	url := testdb.SetupTestDB(t)
	s := testdb.NewSession(t, url)

	studentID := s.InsertStudent(t, "ADM20240001", "Amina", "Okello")

	// fee_payments accepts the fee type, invoice_items rejects it
	_, err := s.Conn.Exec(context.Background(), "INSERT INTO fee_types (id, name, amount) VALUES (9001, 'Library', 50)")
	require.NoError(t, err)
	_, err = s.Conn.Exec(context.Background(),
		"ALTER TABLE invoice_items ADD CONSTRAINT no_library CHECK (fee_type_id <> 9001)")
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.Conn.Exec(context.Background(), "ALTER TABLE invoice_items DROP CONSTRAINT IF EXISTS no_library")
		_, _ = s.Conn.Exec(context.Background(), "DELETE FROM fee_types WHERE id = 9001")
	})

	_, err = newLedger(s, true, 3).CollectFee(context.Background(), request(studentID, 9001))

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeInsertFailed))
	assert.Equal(t, 0, s.Count(t, "fee_payments"))
	assert.Equal(t, 0, s.Count(t, "invoices"))
	assert.False(t, s.Tx.InTransaction())
}

func TestCollectFee_Postgres_ConcurrentSessions(t *testing.T) {
	url := testdb.SetupTestDB(t)
	setup := testdb.NewSession(t, url)
	studentID := setup.InsertStudent(t, "ADM20240001", "Amina", "Okello")
	feeTypeID := setup.FeeTypeID(t, "Tuition")

	const workers = 8
	const perWorker = 5

	run := func(t *testing.T, serialize bool, retries int) (receipts []string, failures []error) {
		var mu sync.Mutex
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			s := testdb.NewSession(t, url)
			l := newLedger(s, serialize, retries)
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					r, err := l.CollectFee(context.Background(), request(studentID, feeTypeID))
					mu.Lock()
					if err != nil {
						failures = append(failures, err)
					} else {
						receipts = append(receipts, r.ReceiptNumber)
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		return receipts, failures
	}

	t.Run("advisory lock serializes generators", func(t *testing.T) {
		receipts, failures := run(t, true, 0)

		assert.Empty(t, failures)
		assert.Len(t, receipts, workers*perWorker)
		assertDistinct(t, receipts)
	})

	t.Run("unserialized generators collide", func(t *testing.T) {
		// Without the lock two sessions may read the same maximum. The unique
		// constraint rejects the loser, which surfaces as a collision.
		receipts, failures := run(t, false, 0)

		assertDistinct(t, receipts)
		for _, err := range failures {
			assert.True(t, domain.IsSequenceCollision(err), "unexpected failure: %v", err)
		}
		assert.Equal(t, workers*perWorker, len(receipts)+len(failures))
		t.Logf("%d of %d collections lost a number race", len(failures), workers*perWorker)
	})
}

func assertDistinct(t *testing.T, ids []string) {
	t.Helper()
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate identifier %s", id)
		seen[id] = true
	}
}
