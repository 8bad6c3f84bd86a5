package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/rentroll/internal/store"
	"github.com/matthewbaird/rentroll/internal/types"
)

// PropertyHandler implements the unit and property endpoints.
type PropertyHandler struct {
	Deps
}

// NewPropertyHandler creates a new PropertyHandler.
func NewPropertyHandler(d Deps) *PropertyHandler {
	return &PropertyHandler{Deps: d.withDefaults()}
}

type putUnitRequest struct {
	Property   types.ID         `json:"property" validate:"required"`
	UnitNumber string           `json:"unitNumber"`
	Tenant     types.ID         `json:"tenant"`
	Rent       *decimal.Decimal `json:"rent,omitempty"`
	Status     string           `json:"status"`
}

// HandlePutUnit creates or replaces a unit.
// PUT /v1/units/{id}
func (h *PropertyHandler) HandlePutUnit(w http.ResponseWriter, r *http.Request) {
	var req putUnitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	unit := types.Unit{
		ID:         types.ID(chi.URLParam(r, "id")),
		Property:   req.Property,
		UnitNumber: req.UnitNumber,
		Tenant:     req.Tenant,
		Rent:       req.Rent,
		Status:     req.Status,
	}
	if err := h.Store.UpsertUnit(r.Context(), unit); err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, unit)
}

// HandleGetUnit returns one unit.
// GET /v1/units/{id}
func (h *PropertyHandler) HandleGetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.Store.GetUnit(r.Context(), types.ID(chi.URLParam(r, "id")))
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, unit)
}

// HandleListUnits lists units by assigned tenant and property.
// GET /v1/units?tenant=&property=
func (h *PropertyHandler) HandleListUnits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	units, err := h.Store.ListUnits(r.Context(), store.UnitFilter{
		TenantID:   types.ID(q.Get("tenant")),
		PropertyID: types.ID(q.Get("property")),
	})
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(units, parsePagination(r)))
}

type putPropertyRequest struct {
	Name    string   `json:"name" validate:"required"`
	Address string   `json:"address"`
	Owner   types.ID `json:"owner"`
}

// HandlePutProperty creates or replaces a property. Units are managed through
// the unit endpoints.
// PUT /v1/properties/{id}
func (h *PropertyHandler) HandlePutProperty(w http.ResponseWriter, r *http.Request) {
	var req putPropertyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	prop := types.Property{
		ID:      types.ID(chi.URLParam(r, "id")),
		Name:    req.Name,
		Address: req.Address,
		Owner:   req.Owner,
	}
	if err := h.Store.UpsertProperty(r.Context(), prop); err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, prop)
}

// HandleGetProperty returns a property with its units.
// GET /v1/properties/{id}
func (h *PropertyHandler) HandleGetProperty(w http.ResponseWriter, r *http.Request) {
	prop, err := h.Store.FetchProperty(r.Context(), types.ID(chi.URLParam(r, "id")))
	if err != nil {
		errorToHTTP(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, prop)
}
