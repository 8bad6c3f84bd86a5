package handler

import (
	"context"
	"net/http"

	"github.com/matthewbaird/rentroll/internal/cache"
	"github.com/matthewbaird/rentroll/internal/report"
	"github.com/matthewbaird/rentroll/internal/schedule"
)

// ReportHandler serves portfolio reports.
type ReportHandler struct {
	Deps
	reporter *report.Reporter
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(d Deps, reporter *report.Reporter) *ReportHandler {
	d = d.withDefaults()
	if reporter == nil {
		reporter = report.NewReporter(d.Store, d.Policy, d.Location, d.Logger)
	}
	return &ReportHandler{Deps: d, reporter: reporter}
}

// HandleRentRoll returns the rent roll for one month.
// GET /v1/reports/rent-roll?month=2024-03&as_of=
func (h *ReportHandler) HandleRentRoll(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PARAMS", "month is required")
		return
	}
	month, err := schedule.ParseYearMonth(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_MONTH", err.Error())
		return
	}
	asOf, ok := parseAsOf(w, r, h.Now, h.Location)
	if !ok {
		return
	}

	var roll report.RentRoll
	err = h.cached(r.Context(), cache.RentRollKey(month.String(), h.day(asOf)), &roll,
		func(ctx context.Context) (any, error) {
			return h.reporter.RentRoll(ctx, month, asOf)
		})
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roll)
}
