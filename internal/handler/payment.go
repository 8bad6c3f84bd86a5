package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/rentroll/internal/event"
	"github.com/matthewbaird/rentroll/internal/schedule"
	"github.com/matthewbaird/rentroll/internal/store"
	"github.com/matthewbaird/rentroll/internal/types"
)

// PaymentHandler implements the payment endpoints.
type PaymentHandler struct {
	Deps
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(d Deps) *PaymentHandler {
	return &PaymentHandler{Deps: d.withDefaults()}
}

type putPaymentRequest struct {
	Amount    decimal.Decimal     `json:"amount"`
	Status    types.PaymentStatus `json:"status" validate:"required,oneof=SUCCEEDED PENDING FAILED"`
	Method    string              `json:"method"`
	PaidDate  string              `json:"paidDate"`
	CreatedAt string              `json:"createdAt"`
	Metadata  struct {
		Month      string   `json:"month" validate:"required"`
		UnitID     types.ID `json:"unitId" validate:"required"`
		DueDate    string   `json:"dueDate"`
		PropertyID types.ID `json:"propertyId"`
	} `json:"metadata"`
}

// HandlePut records or replaces a payment.
// PUT /v1/payments/{id}
func (h *PaymentHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req putPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "amount must be positive")
		return
	}
	month, err := schedule.ParseMonthKey(req.Metadata.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_MONTH", err.Error())
		return
	}
	if !checkDates(w, h.Location, map[string]string{
		"paidDate":         req.PaidDate,
		"metadata.dueDate": req.Metadata.DueDate,
	}) {
		return
	}

	payment := types.Payment{
		ID:        types.ID(chi.URLParam(r, "id")),
		Amount:    req.Amount,
		Status:    req.Status,
		Method:    req.Method,
		PaidDate:  req.PaidDate,
		CreatedAt: req.CreatedAt,
		Metadata: types.PaymentMetadata{
			Month:      month.String(),
			UnitID:     req.Metadata.UnitID,
			DueDate:    req.Metadata.DueDate,
			PropertyID: req.Metadata.PropertyID,
		},
	}
	if err := h.Store.UpsertPayment(r.Context(), payment); err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	h.recordEvent(r.Context(), event.NewPaymentRecorded(event.PaymentRecordedPayload{
		PaymentID: payment.ID,
		UnitID:    payment.Metadata.UnitID,
		Month:     payment.Metadata.Month,
		Amount:    payment.Amount.String(),
		Status:    payment.Status,
	}))
	writeJSON(w, http.StatusOK, payment)
}

// HandleGet returns one payment.
// GET /v1/payments/{id}
func (h *PaymentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	payment, err := h.Store.GetPayment(r.Context(), types.ID(chi.URLParam(r, "id")))
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// HandleList lists payments, optionally for a comma-separated set of units.
// GET /v1/payments?unit_id=
func (h *PaymentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var f store.PaymentFilter
	if raw := r.URL.Query().Get("unit_id"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				f.UnitIDs = append(f.UnitIDs, types.ID(id))
			}
		}
	}
	payments, err := h.Store.ListPayments(r.Context(), f)
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(payments, parsePagination(r)))
}

type paymentStatusRequest struct {
	Status   types.PaymentStatus `json:"status" validate:"required,oneof=SUCCEEDED PENDING FAILED"`
	PaidDate string              `json:"paidDate"`
}

// HandleStatus applies a gateway status change to a payment.
// POST /v1/payments/{id}/status
func (h *PaymentHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !checkDates(w, h.Location, map[string]string{"paidDate": req.PaidDate}) {
		return
	}
	payment, err := h.Store.GetPayment(r.Context(), types.ID(chi.URLParam(r, "id")))
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	old := payment.Status
	payment.Status = req.Status
	if req.PaidDate != "" {
		payment.PaidDate = req.PaidDate
	}
	if err := h.Store.UpsertPayment(r.Context(), *payment); err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	if old != payment.Status {
		h.recordEvent(r.Context(), event.NewPaymentStatusUpdated(event.PaymentStatusUpdatedPayload{
			PaymentID: payment.ID,
			UnitID:    payment.Metadata.UnitID,
			Month:     payment.Metadata.Month,
			OldStatus: old,
			NewStatus: payment.Status,
		}))
	} else {
		h.invalidate(r.Context())
	}
	writeJSON(w, http.StatusOK, payment)
}
