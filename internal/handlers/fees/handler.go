// Package fees serves the JSON endpoint cashiers use to record fee payments.
package fees

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/desblooms/school-crm-sub000/internal/domain"
	"github.com/desblooms/school-crm-sub000/internal/services/ledger"
	"github.com/desblooms/school-crm-sub000/pkg/encoding"
	"github.com/desblooms/school-crm-sub000/pkg/timeutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxBodyBytes caps the request body
const maxBodyBytes = 64 << 10

// FeeCollector records fee payments
type FeeCollector interface {
	CollectFee(ctx context.Context, req ledger.CollectFeeRequest) (*ledger.FeeReceipt, error)
}

// Handler handles fee collection requests
type Handler struct {
	collector FeeCollector
	location  *time.Location
	logger    *zap.Logger
}

// NewHandler creates a fee handler. Due dates are read as calendar days in loc.
func NewHandler(collector FeeCollector, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		collector: collector,
		location:  loc,
		logger:    logger,
	}
}

// CollectFeeRequest is the body of POST /api/v1/fees/collect
type CollectFeeRequest struct {
	StudentID     int64           `json:"student_id"`
	FeeTypeID     int64           `json:"fee_type_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	CollectorID   int64           `json:"collector_id"`
	MonthYear     string          `json:"month_year"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	Remarks       *string         `json:"remarks,omitempty"`
	DueDate       *string         `json:"due_date,omitempty"` // YYYY-MM-DD
}

// RegisterRoutes mounts the handler on mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("/api/v1/fees/collect", wrap(http.HandlerFunc(h.CollectFee)))
}

// CollectFee handles POST /api/v1/fees/collect
func (h *Handler) CollectFee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.respond(w, http.StatusMethodNotAllowed, ledger.CollectFeeResult{Message: "only POST method is allowed"})
		return
	}

	var body CollectFeeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		h.logger.Warn("Failed to parse fee collection request", zap.Error(err))
		h.respond(w, http.StatusBadRequest, ledger.CollectFeeResult{
			Message: "invalid request body",
			Code:    domain.ErrorCodeValidationMissingField,
		})
		return
	}

	req := ledger.CollectFeeRequest{
		StudentID:              body.StudentID,
		FeeTypeID:              body.FeeTypeID,
		Amount:                 body.Amount,
		Method:                 domain.PaymentMethod(body.PaymentMethod),
		CollectorID:            body.CollectorID,
		PeriodLabel:            body.MonthYear,
		ExternalTransactionRef: body.TransactionID,
		Remarks:                body.Remarks,
	}
	if body.DueDate != nil && *body.DueDate != "" {
		due, err := timeutil.ParseDate("2006-01-02", *body.DueDate, h.location)
		if err != nil {
			h.respond(w, http.StatusBadRequest, ledger.CollectFeeResult{
				Message: "due_date must be YYYY-MM-DD",
				Code:    domain.ErrorCodeValidationMissingField,
			})
			return
		}
		req.DueDate = &due
	}

	receipt, err := h.collector.CollectFee(r.Context(), req)
	result := ledger.Outcome(receipt, err)
	h.respond(w, statusFor(err), result)
}

// statusFor maps a collection error to its HTTP status
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsSequenceCollision(err):
		return http.StatusConflict
	case domain.IsConnectionError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respond(w http.ResponseWriter, statusCode int, result ledger.CollectFeeResult) {
	if err := encoding.WriteJSON(w, statusCode, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
