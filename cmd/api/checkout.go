package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/internal/checkout"
	"storefront/internal/payments"
)

type CheckoutPayload struct {
	Phone string `json:"phone" validate:"omitempty,msisdn"`
}

func (app *application) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	var payload CheckoutPayload
	if err := readJSON(w, r, &payload); err != nil && !errors.Is(err, io.EOF) {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	key := getCartKeyFromContext(r)

	result, err := app.checkout.StartCheckout(r.Context(), key, provider, payload.Phone)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, checkout.ErrIntentAlreadyPending):
			app.conflictResponse(w, r, err)
		case errors.Is(err, payments.ErrUnknownProvider):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, payments.ErrGatewayRejected):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, payments.ErrGatewayUnavailable):
			app.badGatewayResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, result); err != nil {
		app.internalServerError(w, r, err)
	}
}

// paymentCallbackHandler ingests asynchronous notifications from payment
// providers. The response is always 200 so providers stop redelivering;
// rejected callbacks are logged and dropped.
func (app *application) paymentCallbackHandler(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_578))
	if err != nil {
		app.logger.Warnw("unreadable payment callback", "provider", provider, "error", err.Error())
		app.jsonResponse(w, http.StatusOK, map[string]string{"result": "rejected"})
		return
	}

	intent, err := app.checkout.Reconcile(r.Context(), provider, raw)
	if err != nil {
		app.logger.Warnw("payment callback not applied",
			"provider", provider,
			"error", err.Error(),
		)
		app.jsonResponse(w, http.StatusOK, map[string]string{"result": "rejected"})
		return
	}

	app.logger.Infow("payment callback applied",
		"provider", provider,
		"intent_id", intent.ID,
		"status", intent.Status,
	)

	app.jsonResponse(w, http.StatusOK, map[string]string{"result": "accepted"})
}
