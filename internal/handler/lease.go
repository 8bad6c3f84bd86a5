package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/rentroll/internal/cache"
	"github.com/matthewbaird/rentroll/internal/event"
	"github.com/matthewbaird/rentroll/internal/schedule"
	"github.com/matthewbaird/rentroll/internal/store"
	"github.com/matthewbaird/rentroll/internal/types"
)

// LeaseHandler implements the lease endpoints and the rent schedule view.
type LeaseHandler struct {
	Deps
}

// NewLeaseHandler creates a new LeaseHandler.
func NewLeaseHandler(d Deps) *LeaseHandler {
	return &LeaseHandler{Deps: d.withDefaults()}
}

type putLeaseRequest struct {
	Unit            types.ID          `json:"unit" validate:"required"`
	Tenant          types.ID          `json:"tenant" validate:"required"`
	LeaseStartDate  string            `json:"leaseStartDate" validate:"required"`
	LeaseEndDate    string            `json:"leaseEndDate" validate:"required"`
	MonthlyRent     decimal.Decimal   `json:"monthlyRent"`
	SecurityDeposit *decimal.Decimal  `json:"securityDeposit,omitempty"`
	Status          types.LeaseStatus `json:"status" validate:"omitempty,oneof=ACTIVE ENDED TERMINATED INACTIVE"`
	TerminatedDate  string            `json:"terminatedDate"`
	MoveOutDate     string            `json:"moveOutDate"`
	AgreementNumber string            `json:"agreementNumber"`
}

// HandlePut creates or replaces a lease.
// PUT /v1/leases/{id}
func (h *LeaseHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	var req putLeaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.MonthlyRent.IsNegative() {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "monthlyRent must not be negative")
		return
	}
	if !checkDates(w, h.Location, map[string]string{
		"leaseStartDate": req.LeaseStartDate,
		"leaseEndDate":   req.LeaseEndDate,
		"terminatedDate": req.TerminatedDate,
		"moveOutDate":    req.MoveOutDate,
	}) {
		return
	}

	lease := types.Lease{
		ID:              types.ID(chi.URLParam(r, "id")),
		Unit:            req.Unit,
		Tenant:          req.Tenant,
		LeaseStartDate:  req.LeaseStartDate,
		LeaseEndDate:    req.LeaseEndDate,
		MonthlyRent:     req.MonthlyRent,
		SecurityDeposit: req.SecurityDeposit,
		Status:          req.Status,
		TerminatedDate:  req.TerminatedDate,
		MoveOutDate:     req.MoveOutDate,
		AgreementNumber: req.AgreementNumber,
	}
	if err := h.Store.UpsertLease(r.Context(), lease); err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	h.recordEvent(r.Context(), event.NewLeaseUpdated(event.LeaseUpdatedPayload{
		LeaseID:     lease.ID,
		UnitID:      lease.Unit,
		TenantID:    lease.Tenant,
		Status:      lease.Status,
		MonthlyRent: lease.MonthlyRent.String(),
	}))
	writeJSON(w, http.StatusOK, lease)
}

// HandleGet returns one lease.
// GET /v1/leases/{id}
func (h *LeaseHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	lease, err := h.Store.GetLease(r.Context(), types.ID(chi.URLParam(r, "id")))
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, lease)
}

// HandleList lists leases, optionally narrowed by tenant and unit.
// GET /v1/leases?tenant=&unit=
func (h *LeaseHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	leases, err := h.Store.ListLeases(r.Context(), store.LeaseFilter{
		TenantID: types.ID(q.Get("tenant")),
		UnitID:   types.ID(q.Get("unit")),
	})
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(leases, parsePagination(r)))
}

type endLeaseRequest struct {
	Status         types.LeaseStatus `json:"status" validate:"required,oneof=ENDED TERMINATED INACTIVE"`
	TerminatedDate string            `json:"terminatedDate"`
	MoveOutDate    string            `json:"moveOutDate"`
}

// HandleEnd moves a lease into an ended status.
// POST /v1/leases/{id}/end
func (h *LeaseHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	var req endLeaseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !checkDates(w, h.Location, map[string]string{
		"terminatedDate": req.TerminatedDate,
		"moveOutDate":    req.MoveOutDate,
	}) {
		return
	}
	lease, err := h.Store.GetLease(r.Context(), types.ID(chi.URLParam(r, "id")))
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	if lease.Status.IsEnded() {
		writeError(w, http.StatusConflict, "ALREADY_ENDED", "lease is already "+string(lease.Status))
		return
	}
	lease.Status = req.Status
	if req.TerminatedDate != "" {
		lease.TerminatedDate = req.TerminatedDate
	}
	if req.MoveOutDate != "" {
		lease.MoveOutDate = req.MoveOutDate
	}
	if err := h.Store.UpsertLease(r.Context(), *lease); err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	h.recordEvent(r.Context(), event.NewLeaseEnded(event.LeaseEndedPayload{
		LeaseID:        lease.ID,
		UnitID:         lease.Unit,
		TenantID:       lease.Tenant,
		Status:         lease.Status,
		TerminatedDate: lease.TerminatedDate,
		MoveOutDate:    lease.MoveOutDate,
	}))
	writeJSON(w, http.StatusOK, lease)
}

// ScheduleResponse is the rent schedule of one lease.
type ScheduleResponse struct {
	LeaseID types.ID         `json:"leaseId"`
	UnitID  types.ID         `json:"unitId"`
	DueRule schedule.DueRule `json:"dueRule"`
	AsOf    string           `json:"asOf"`
	Entries []schedule.Entry `json:"entries"`
	Totals  schedule.Totals  `json:"totals"`
}

// HandleSchedule returns the month-by-month rent schedule of a lease.
// GET /v1/leases/{id}/schedule?unit_id=&due_rule=&as_of=
func (h *LeaseHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rule := h.Policy.DueRule
	if raw := q.Get("due_rule"); raw != "" {
		parsed, err := schedule.ParseDueRule(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DUE_RULE", err.Error())
			return
		}
		rule = parsed
	}
	if rule == "" {
		rule = schedule.DueRuleScheduleDate
	}
	asOf, ok := parseAsOf(w, r, h.Now, h.Location)
	if !ok {
		return
	}

	lease, err := h.Store.GetLease(r.Context(), types.ID(chi.URLParam(r, "id")))
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	unitID := types.ID(q.Get("unit_id"))
	if unitID == "" {
		unitID = lease.Unit
	}

	var resp ScheduleResponse
	err = h.cached(r.Context(), cache.ScheduleKey(lease.ID, unitID, string(rule), h.day(asOf)), &resp,
		func(ctx context.Context) (any, error) {
			return h.buildSchedule(ctx, lease, unitID, rule, asOf)
		})
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LeaseHandler) buildSchedule(ctx context.Context, lease *types.Lease, unitID types.ID, rule schedule.DueRule, asOf time.Time) (*ScheduleResponse, error) {
	payments, err := h.Store.ListPayments(ctx, store.PaymentFilter{UnitIDs: []types.ID{unitID}})
	if err != nil {
		return nil, err
	}
	policy := h.Policy
	policy.DueRule = rule
	entries, err := schedule.Generate(lease, payments, schedule.Options{
		UnitID:   unitID,
		Now:      asOf,
		Location: h.Location,
		Policy:   policy,
	})
	if err != nil {
		return nil, err
	}
	return &ScheduleResponse{
		LeaseID: lease.ID,
		UnitID:  unitID,
		DueRule: rule,
		AsOf:    schedule.DayOf(asOf, h.Location).Format(time.DateOnly),
		Entries: entries,
		Totals:  schedule.Summarize(entries),
	}, nil
}
