package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/services/ledger"
	"github.com/desblooms/school-crm-sub000/internal/services/sequence"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) CollectFee(ctx context.Context, req ledger.CollectFeeRequest) (*ledger.FeeReceipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.FeeReceipt), args.Error(1)
}

func (m *mockLedger) AdmitStudent(ctx context.Context, student *domain.Student) error {
	args := m.Called(ctx, student)
	return args.Error(0)
}

func (m *mockLedger) HireEmployee(ctx context.Context, employee *domain.Employee) error {
	args := m.Called(ctx, employee)
	return args.Error(0)
}

func (m *mockLedger) PeekNext(ctx context.Context, series sequence.Series, at time.Time) (string, error) {
	args := m.Called(ctx, series, at)
	return args.String(0), args.Error(1)
}

func (m *mockLedger) Close(ctx context.Context) error {
	m.Called(ctx)
	return nil
}

func run(t *testing.T, l *mockLedger, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	l.On("Close", mock.Anything).Return().Maybe()
	cmd := NewRootCmd(func(context.Context) (Ledger, *time.Location, error) {
		return l, time.UTC, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestCollect(t *testing.T) {
	l := new(mockLedger)
	due := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	l.On("CollectFee", mock.Anything, mock.MatchedBy(func(req ledger.CollectFeeRequest) bool {
		return req.StudentID == 12 && req.FeeTypeID == 3 &&
			req.Amount.Equal(decimal.RequireFromString("150")) &&
			req.Method == domain.PaymentMethodMobileMoney &&
			req.PeriodLabel == "2024-05" &&
			req.ExternalTransactionRef != nil && *req.ExternalTransactionRef == "MM-77" &&
			req.Remarks == nil &&
			req.DueDate != nil && req.DueDate.Equal(due)
	})).Return(&ledger.FeeReceipt{
		ReceiptNumber: "RCT202405210001",
		InvoiceNumber: "INV2024050001",
		Amount:        decimal.RequireFromString("150"),
		DueDate:       due,
	}, nil).Once()

	out, err := run(t, l, "collect", "--student", "12", "--fee-type", "3", "--amount", "150",
		"--method", "mobile_money", "--collector", "4", "--period", "2024-05", "--txn-ref", "MM-77", "--due", "2024-06-30")

	require.NoError(t, err)
	assert.Contains(t, out, "✓ Payment recorded")
	assert.Contains(t, out, "Receipt: RCT202405210001")
	assert.Contains(t, out, "Amount:  150.00")
	l.AssertExpectations(t)
}

func TestCollect_Failure(t *testing.T) {
	l := new(mockLedger)
	l.On("CollectFee", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainError(domain.ErrorCodeSequenceCollision, "taken")).Once()

	out, err := run(t, l, "collect", "--student", "1", "--fee-type", "1", "--amount", "10", "--collector", "1", "--period", "x")

	require.Error(t, err)
	assert.Contains(t, out, "Payment failed [SEQUENCE_COLLISION]")
}

func TestCollect_BadAmount(t *testing.T) {
	l := new(mockLedger)

	_, err := run(t, l, "collect", "--amount", "ten")

	assert.ErrorContains(t, err, "invalid --amount")
	l.AssertNotCalled(t, "CollectFee", mock.Anything, mock.Anything)
}

func TestAdmit(t *testing.T) {
	l := new(mockLedger)
	l.On("AdmitStudent", mock.Anything, mock.AnythingOfType("*domain.Student")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Student).AdmissionNumber = "ADM20240007"
		}).Return(nil).Once()

	out, err := run(t, l, "admit", "Amina", "Nakato")

	require.NoError(t, err)
	assert.Contains(t, out, "Admitted Amina Nakato as ADM20240007")
}

func TestHire(t *testing.T) {
	l := new(mockLedger)
	l.On("HireEmployee", mock.Anything, mock.MatchedBy(func(e *domain.Employee) bool {
		return e.FullName == "John Okello" && e.Role == "teacher"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Employee).EmployeeID = "EMP20240002"
	}).Return(nil).Once()

	out, err := run(t, l, "hire", "John", "Okello", "--role", "teacher")

	require.NoError(t, err)
	assert.Contains(t, out, "Registered John Okello (teacher) as EMP20240002")
}

func TestNextNumber(t *testing.T) {
	l := new(mockLedger)
	at := time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)
	l.On("PeekNext", mock.Anything, sequence.Receipt, at).Return("RCT202405210004", nil).Once()

	out, err := run(t, l, "next-number", "receipt", "--date", "2024-05-21")

	require.NoError(t, err)
	assert.Equal(t, "RCT202405210004\n", out)
}

func TestNextNumber_UnknownSeries(t *testing.T) {
	_, err := run(t, new(mockLedger), "next-number", "voucher")
	assert.ErrorContains(t, err, "unknown series")
}

func TestOpenFailure(t *testing.T) {
	cmd := NewRootCmd(func(context.Context) (Ledger, *time.Location, error) {
		return nil, nil, errors.New("connection refused")
	})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"admit", "A", "B"})

	assert.ErrorContains(t, cmd.Execute(), "failed to open ledger")
}
