package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/rentroll/internal/cache"
	"github.com/matthewbaird/rentroll/internal/occupancy"
	"github.com/matthewbaird/rentroll/internal/store"
	"github.com/matthewbaird/rentroll/internal/types"
)

// TenantHandler serves the tenant-facing occupancy view.
type TenantHandler struct {
	Deps
}

// NewTenantHandler creates a new TenantHandler.
func NewTenantHandler(d Deps) *TenantHandler {
	return &TenantHandler{Deps: d.withDefaults()}
}

// HandleOccupancy splits a tenant's units into current and previous and lists
// their lease history.
// GET /v1/tenants/{id}/occupancy?as_of=
func (h *TenantHandler) HandleOccupancy(w http.ResponseWriter, r *http.Request) {
	tenantID := types.ID(chi.URLParam(r, "id"))
	asOf, ok := parseAsOf(w, r, h.Now, h.Location)
	if !ok {
		return
	}
	var result occupancy.Result
	err := h.cached(r.Context(), cache.OccupancyKey(tenantID, h.day(asOf)), &result,
		func(ctx context.Context) (any, error) {
			return h.classify(ctx, tenantID, asOf)
		})
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *TenantHandler) classify(ctx context.Context, tenantID types.ID, asOf time.Time) (*occupancy.Result, error) {
	in, err := h.loadInput(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return h.Classifier.Classify(ctx, tenantID, in, asOf)
}

// loadInput gathers the tenant's leases, the units they hold or held, and the
// payments made against those units.
func (h *TenantHandler) loadInput(ctx context.Context, tenantID types.ID) (occupancy.Input, error) {
	leases, err := h.Store.ListLeases(ctx, store.LeaseFilter{TenantID: tenantID})
	if err != nil {
		return occupancy.Input{}, err
	}
	units, err := h.Store.ListUnits(ctx, store.UnitFilter{TenantID: tenantID})
	if err != nil {
		return occupancy.Input{}, err
	}

	seen := make(map[types.ID]bool, len(units))
	unitIDs := make([]types.ID, 0, len(units))
	for _, u := range units {
		seen[u.ID] = true
		unitIDs = append(unitIDs, u.ID)
	}
	for _, l := range leases {
		if l.Unit == "" || seen[l.Unit] {
			continue
		}
		seen[l.Unit] = true
		unitIDs = append(unitIDs, l.Unit)
		u, err := h.Store.GetUnit(ctx, l.Unit)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return occupancy.Input{}, err
		}
		units = append(units, *u)
	}

	in := occupancy.Input{Leases: leases, Units: units}
	if len(unitIDs) == 0 {
		return in, nil
	}
	in.Payments, err = h.Store.ListPayments(ctx, store.PaymentFilter{UnitIDs: unitIDs})
	if err != nil {
		return occupancy.Input{}, err
	}
	return in, nil
}
