package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartResponse struct {
	Data struct {
		Items []struct {
			ID       string          `json:"id"`
			Name     string          `json:"name"`
			Price    decimal.Decimal `json:"price"`
			Quantity int             `json:"quantity"`
		} `json:"items"`
		Total decimal.Decimal `json:"total"`
	} `json:"data"`
}

func addItem(t *testing.T, mux http.Handler, session, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/cart/add", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Cart-Session", session)
	}
	return executeRequest(req, mux)
}

func TestAddToCart(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := addItem(t, mux, "s1", `{"id":"sku-1","name":"Mug","price":10.5,"quantity":2}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "s1", rr.Header().Get("X-Cart-Session"))

	var resp cartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "sku-1", resp.Data.Items[0].ID)
	assert.Equal(t, 2, resp.Data.Items[0].Quantity)
	assert.Equal(t, "21", resp.Data.Total.String())
}

func TestAddToCartMintsSession(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := addItem(t, mux, "", `{"id":"sku-1","name":"Mug","price":10,"quantity":1}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Cart-Session"))
}

func TestAddToCartValidation(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	tests := []struct {
		name string
		body string
	}{
		{"missing id", `{"name":"Mug","price":10,"quantity":1}`},
		{"missing name", `{"id":"sku-1","price":10,"quantity":1}`},
		{"zero quantity", `{"id":"sku-1","name":"Mug","price":10,"quantity":0}`},
		{"negative quantity", `{"id":"sku-1","name":"Mug","price":10,"quantity":-2}`},
		{"malformed json", `{"id":`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := addItem(t, mux, "s1", tc.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestAddToCartAccumulatesAcrossRequests(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	addItem(t, mux, "s1", `{"id":"sku-1","name":"Mug","price":10,"quantity":1}`)
	rr := addItem(t, mux, "s1", `{"id":"sku-1","name":"Mug","price":10,"quantity":3}`)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp cartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, 4, resp.Data.Items[0].Quantity)
}

func TestCartsAreSessionScoped(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	addItem(t, mux, "s1", `{"id":"sku-1","name":"Mug","price":10,"quantity":1}`)

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("X-Cart-Session", "s2")
	rr := executeRequest(req, mux)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp cartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Empty(t, resp.Data.Items)
}

func TestUserCartUnreachableViaSessionHeader(t *testing.T) {
	app := newTestApplication(t)
	app.store.Users = newStubUsersStore()
	mux := app.mount()

	postJSON(t, mux, "/api/register", `{"email":"jo@example.com","password":"sw0rdfish99"}`)
	login := postJSON(t, mux, "/api/login", `{"email":"jo@example.com","password":"sw0rdfish99"}`)

	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(login.Body).Decode(&loginResp))

	req := httptest.NewRequest(http.MethodPost, "/api/cart/add",
		bytes.NewBufferString(`{"id":"sku-1","name":"Widget","price":10,"quantity":2}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+loginResp.Data.Token)
	rr := executeRequest(req, mux)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "user:1", rr.Header().Get("X-Cart-Session"))

	// anonymous caller presenting the user-scoped key verbatim gets a
	// fresh anonymous cart, never the user's
	forged := httptest.NewRequest(http.MethodGet, "/cart", nil)
	forged.Header.Set("X-Cart-Session", "user:1")
	forgedRR := executeRequest(forged, mux)

	require.Equal(t, http.StatusOK, forgedRR.Code)
	assert.NotEqual(t, "user:1", forgedRR.Header().Get("X-Cart-Session"))

	var resp cartResponse
	require.NoError(t, json.NewDecoder(forgedRR.Body).Decode(&resp))
	assert.Empty(t, resp.Data.Items)

	// the user's cart is untouched
	own := httptest.NewRequest(http.MethodGet, "/cart", nil)
	own.Header.Set("Authorization", "Bearer "+loginResp.Data.Token)
	ownRR := executeRequest(own, mux)

	var ownResp cartResponse
	require.NoError(t, json.NewDecoder(ownRR.Body).Decode(&ownResp))
	require.Len(t, ownResp.Data.Items, 1)
	assert.Equal(t, 2, ownResp.Data.Items[0].Quantity)
}

func TestMintedSessionsAreAnonymousScoped(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := addItem(t, mux, "", `{"id":"sku-1","name":"Mug","price":10,"quantity":1}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Cart-Session"), "anon:"))
}

func TestUpdateCartItem(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	addItem(t, mux, "s1", `{"id":"sku-1","name":"Mug","price":10,"quantity":2}`)

	req := httptest.NewRequest(http.MethodPut, "/api/cart/update/sku-1", bytes.NewBufferString(`{"quantity":7}`))
	req.Header.Set("X-Cart-Session", "s1")
	rr := executeRequest(req, mux)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp cartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, 7, resp.Data.Items[0].Quantity)
}

func TestUpdateAbsentCartItem(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	req := httptest.NewRequest(http.MethodPut, "/api/cart/update/ghost", bytes.NewBufferString(`{"quantity":1}`))
	req.Header.Set("X-Cart-Session", "s1")
	rr := executeRequest(req, mux)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRemoveCartItem(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	addItem(t, mux, "s1", `{"id":"sku-1","name":"Mug","price":10,"quantity":2}`)
	addItem(t, mux, "s1", `{"id":"sku-2","name":"Cap","price":5,"quantity":1}`)

	req := httptest.NewRequest(http.MethodDelete, "/api/cart/remove/sku-1", nil)
	req.Header.Set("X-Cart-Session", "s1")
	rr := executeRequest(req, mux)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp cartResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "sku-2", resp.Data.Items[0].ID)
}

func TestRemoveAbsentCartItemIsNoOp(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	req := httptest.NewRequest(http.MethodDelete, "/api/cart/remove/ghost", nil)
	req.Header.Set("X-Cart-Session", "s1")
	rr := executeRequest(req, mux)

	assert.Equal(t, http.StatusOK, rr.Code)
}
