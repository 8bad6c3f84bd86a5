// Package handler implements the HTTP handlers of the rent service.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/matthewbaird/rentroll/internal/schedule"
	"github.com/matthewbaird/rentroll/internal/store"
)

var validate = validator.New()

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON encode error", "error", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
			}
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", strings.Join(msgs, "; "))
			return false
		}
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

// Pagination holds offset/limit extracted from query params.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts page_size and offset from the query string.
func parsePagination(r *http.Request) Pagination {
	p := Pagination{Limit: 50, Offset: 0}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.Offset = n
		}
	}
	return p
}

// page returns the slice of items selected by p, never nil.
func page[T any](items []T, p Pagination) []T {
	if p.Offset >= len(items) {
		return []T{}
	}
	end := min(p.Offset+p.Limit, len(items))
	return items[p.Offset:end]
}

// listResponse is the envelope of every list endpoint.
type listResponse[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	Offset     int `json:"offset"`
}

func newListResponse[T any](items []T, p Pagination) listResponse[T] {
	return listResponse[T]{Items: page(items, p), TotalCount: len(items), Offset: p.Offset}
}

// errorToHTTP maps store and schedule errors to HTTP responses.
func errorToHTTP(w http.ResponseWriter, logger *slog.Logger, err error) {
	var dateErr *schedule.InvalidDateError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.As(err, &dateErr):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_DATE", dateErr.Error())
	default:
		logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// parseAsOf reads the as_of query parameter (YYYY-MM-DD). Absent means now.
func parseAsOf(w http.ResponseWriter, r *http.Request, now func() time.Time, loc *time.Location) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return now(), true
	}
	t, err := schedule.ParseDate("as_of", raw, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_AS_OF", err.Error())
		return time.Time{}, false
	}
	return t, true
}

// checkDates rejects a request whose date fields do not parse.
func checkDates(w http.ResponseWriter, loc *time.Location, fields map[string]string) bool {
	for name, v := range fields {
		if v == "" {
			continue
		}
		if _, err := schedule.ParseDate(name, v, loc); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "INVALID_DATE", err.Error())
			return false
		}
	}
	return true
}
