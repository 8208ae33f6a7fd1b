package main

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"storefront/internal/cart"
)

type AddToCartPayload struct {
	ID       string          `json:"id" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"required,gt=0"`
}

type UpdateCartItemPayload struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type cartEnvelope struct {
	Items []cart.Line     `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (app *application) addToCartHandler(w http.ResponseWriter, r *http.Request) {
	var payload AddToCartPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	key := getCartKeyFromContext(r)

	lines, err := app.carts.AddItem(r.Context(), key, payload.ID, payload.Name, payload.Price, payload.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrInvalidArgument):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.writeCart(w, r, lines)
}

func (app *application) removeFromCartHandler(w http.ResponseWriter, r *http.Request) {
	key := getCartKeyFromContext(r)
	itemID := chi.URLParam(r, "id")

	lines, err := app.carts.RemoveItem(r.Context(), key, itemID)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrInvalidArgument):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.writeCart(w, r, lines)
}

func (app *application) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	var payload UpdateCartItemPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	key := getCartKeyFromContext(r)
	itemID := chi.URLParam(r, "id")

	lines, err := app.carts.UpdateQuantity(r.Context(), key, itemID, payload.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, cart.ErrInvalidArgument):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.writeCart(w, r, lines)
}

func (app *application) getCartHandler(w http.ResponseWriter, r *http.Request) {
	lines, err := app.carts.Get(r.Context(), getCartKeyFromContext(r))
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.writeCart(w, r, lines)
}

func (app *application) writeCart(w http.ResponseWriter, r *http.Request, lines []cart.Line) {
	if lines == nil {
		lines = []cart.Line{}
	}

	if err := app.jsonResponse(w, http.StatusOK, cartEnvelope{
		Items: lines,
		Total: cart.Total(lines),
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}
