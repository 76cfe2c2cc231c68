package ledger

import (
	"github.com/desblooms/school-crm-sub000/internal/domain"
)

// CollectFeeResult is the explicit success/failure answer handed to
// presentation code; it never carries a raw error.
type CollectFeeResult struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	Code          domain.ErrorCode `json:"code,omitempty"`
	ReceiptNumber string           `json:"receipt_number,omitempty"`
	InvoiceNumber string           `json:"invoice_number,omitempty"`
}

// Outcome converts the result of CollectFee into a CollectFeeResult
func Outcome(receipt *FeeReceipt, err error) CollectFeeResult {
	if err == nil && receipt != nil {
		return CollectFeeResult{
			Success:       true,
			Message:       "Payment recorded successfully",
			ReceiptNumber: receipt.ReceiptNumber,
			InvoiceNumber: receipt.InvoiceNumber,
		}
	}

	code := domain.GetErrorCode(err)
	if code == "" {
		code = domain.ErrorCodeInternalError
	}
	return CollectFeeResult{
		Success: false,
		Message: failureMessage(code),
		Code:    code,
	}
}

func failureMessage(code domain.ErrorCode) string {
	switch code {
	case domain.ErrorCodeValidationAmountInvalid:
		return "Amount must be positive, in whole cents and within the ledger's limit"
	case domain.ErrorCodeValidationDueDate:
		return "Due date cannot be before the payment date"
	case domain.ErrorCodeValidationMissingField, domain.ErrorCodeValidationInvoiceUnbalanced:
		return "Payment details are incomplete or inconsistent"
	case domain.ErrorCodeSequenceCollision:
		return "Another payment was recorded at the same moment; please try again"
	case domain.ErrorCodeSequenceExhausted:
		return "No identifiers left in the current numbering period"
	case domain.ErrorCodeConnectionUnavailable:
		return "The database is unavailable; payment not recorded"
	default:
		return "Error recording payment"
	}
}
