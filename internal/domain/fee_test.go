package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  decimal.Decimal
		wantErr bool
	}{
		{"positive", decimal.RequireFromString("1000.00"), false},
		{"smallest unit", decimal.RequireFromString("0.01"), false},
		{"zero", decimal.Zero, true},
		{"negative", decimal.RequireFromString("-5"), true},
		{"trailing zero beyond cents", decimal.RequireFromString("12.500"), false},
		{"sub-cent", decimal.RequireFromString("0.004"), true},
		{"half cent", decimal.RequireFromString("1000.005"), true},
		{"largest storable", decimal.RequireFromString("9999999999.99"), false},
		{"too large", decimal.RequireFromString("10000000000.00"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmount("amount", tt.amount)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsDomainError(err, ErrorCodeValidationAmountInvalid))
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestPaymentMethod_IsValid(t *testing.T) {
	assert.True(t, PaymentMethodCash.IsValid())
	assert.True(t, PaymentMethodMobileMoney.IsValid())
	assert.False(t, PaymentMethod("barter").IsValid())
	assert.False(t, PaymentMethod("").IsValid())
}

func TestNewInvoiceForPayment(t *testing.T) {
	paidAt := time.Date(2024, 5, 21, 10, 30, 0, 0, time.UTC)
	payment := &Payment{
		StudentID:     3,
		FeeTypeID:     1,
		Amount:        decimal.RequireFromString("1000.00"),
		Method:        PaymentMethodCash,
		PaymentDate:   paidAt,
		MonthYear:     "2024-05",
		CollectedBy:   1,
		ReceiptNumber: "RCT202405210001",
		Status:        PaymentStatusPaid,
	}

	t.Run("default due date is thirty days after issue", func(t *testing.T) {
		inv := NewInvoiceForPayment(payment, "INV2024050001", time.Time{})

		assert.Equal(t, "INV2024050001", inv.InvoiceNumber)
		assert.Equal(t, paidAt, inv.IssueDate)
		assert.Equal(t, paidAt.AddDate(0, 0, 30), inv.DueDate)
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.TotalAmount.Equal(payment.Amount))
		assert.True(t, inv.PaidAmount.Equal(payment.Amount))
		assert.Equal(t, int64(1), inv.GeneratedBy)

		require.Len(t, inv.Items, 1)
		assert.Equal(t, int64(1), inv.Items[0].FeeTypeID)
		assert.True(t, inv.Items[0].Amount.Equal(payment.Amount))
		assert.Contains(t, inv.Items[0].Description, "RCT202405210001")
		assert.NoError(t, inv.Validate())
	})

	t.Run("explicit due date is kept", func(t *testing.T) {
		due := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		inv := NewInvoiceForPayment(payment, "INV2024050002", due)
		assert.Equal(t, due, inv.DueDate)
	})
}

func TestInvoice_Validate(t *testing.T) {
	valid := func() *Invoice {
		return &Invoice{
			InvoiceNumber: "INV2024050001",
			TotalAmount:   decimal.RequireFromString("150.00"),
			Items: []InvoiceItem{
				{FeeTypeID: 1, Amount: decimal.RequireFromString("100.00")},
				{FeeTypeID: 2, Amount: decimal.RequireFromString("50.00")},
			},
		}
	}

	t.Run("balanced", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unbalanced", func(t *testing.T) {
		inv := valid()
		inv.TotalAmount = decimal.RequireFromString("151.00")
		err := inv.Validate()
		assert.True(t, IsDomainError(err, ErrorCodeValidationInvoiceUnbalanced))
	})

	t.Run("no items", func(t *testing.T) {
		inv := valid()
		inv.Items = nil
		assert.True(t, IsDomainError(inv.Validate(), ErrorCodeValidationMissingField))
	})

	t.Run("zero line item", func(t *testing.T) {
		inv := valid()
		inv.Items[1].Amount = decimal.Zero
		inv.TotalAmount = decimal.RequireFromString("100.00")
		assert.True(t, IsDomainError(inv.Validate(), ErrorCodeValidationAmountInvalid))
	})

	t.Run("due before issue", func(t *testing.T) {
		inv := valid()
		inv.IssueDate = time.Date(2024, 5, 21, 14, 0, 0, 0, time.UTC)
		inv.DueDate = time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
		assert.True(t, IsDomainError(inv.Validate(), ErrorCodeValidationDueDate))
		assert.True(t, IsValidationError(inv.Validate()))
	})

	t.Run("due on issue day", func(t *testing.T) {
		inv := valid()
		inv.IssueDate = time.Date(2024, 5, 21, 14, 0, 0, 0, time.UTC)
		inv.DueDate = time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)
		assert.NoError(t, inv.Validate())
	})

	t.Run("missing number", func(t *testing.T) {
		inv := valid()
		inv.InvoiceNumber = ""
		assert.True(t, IsDomainError(inv.Validate(), ErrorCodeValidationMissingField))
	})
}

func TestStudentAndEmployee_Validate(t *testing.T) {
	assert.NoError(t, (&Student{FirstName: "Amina", LastName: "Nakato"}).Validate())
	assert.True(t, IsValidationError((&Student{FirstName: " ", LastName: "Nakato"}).Validate()))
	assert.True(t, IsValidationError((&Student{FirstName: "Amina"}).Validate()))

	assert.NoError(t, (&Employee{FullName: "John Okello", Role: "bursar"}).Validate())
	assert.True(t, IsValidationError((&Employee{Role: "bursar"}).Validate()))
	assert.True(t, IsValidationError((&Employee{FullName: "John Okello"}).Validate()))
}
