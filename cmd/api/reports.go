package main

import (
	"fmt"
	"net/http"
	"time"
)

func (app *application) reportsHandler(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	to, err := parseTimeParam(r, "to")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	payments, err := app.checkout.ListSettledPayments(r.Context(), from, to)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]any{
		"payments": payments,
		"count":    len(payments),
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// parseTimeParam reads an optional RFC 3339 query parameter. A missing
// parameter yields the zero time, which the store treats as an open bound.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %q parameter: must be RFC 3339", name)
	}

	return t, nil
}
