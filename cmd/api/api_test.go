package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/cart"
	"storefront/internal/checkout"
	"storefront/internal/payments"
	"storefront/internal/ratelimiter"
	"storefront/internal/store"
)

// fakePayGateway stands in for a real provider in handler tests. Its
// callbacks are JSON documents of the normalized shape.
type fakePayGateway struct {
	initiateErr error
}

func (g *fakePayGateway) Name() string { return "fakepay" }

func (g *fakePayGateway) Initiate(ctx context.Context, req payments.InitiateRequest) (payments.InitiateResponse, error) {
	if g.initiateErr != nil {
		return payments.InitiateResponse{}, g.initiateErr
	}
	return payments.InitiateResponse{
		ProviderRef: "fp-" + req.Reference,
		RedirectURL: "https://pay.example/fp-" + req.Reference,
	}, nil
}

func (g *fakePayGateway) ParseCallback(raw []byte) (payments.Callback, error) {
	var cb payments.Callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return payments.Callback{}, payments.ErrInvalidCallback
	}
	if cb.ProviderRef == "" {
		return payments.Callback{}, payments.ErrInvalidCallback
	}
	return cb, nil
}

func newTestApplication(t *testing.T) *application {
	t.Helper()

	logger := zap.NewNop().Sugar()

	carts := cart.NewService(cart.NewMemoryStore())

	gateways := payments.NewManager()
	gateways.Register(&fakePayGateway{})

	orchestrator := checkout.NewOrchestrator(
		checkout.Config{
			Currency:       "USD",
			PendingTimeout: 15 * time.Minute,
			CallbackGrace:  2 * time.Minute,
		},
		carts,
		gateways,
		checkout.NewMemoryIntentStore(),
		checkout.NewReferenceGenerator("test-secret"),
		logger,
	)

	return &application{
		config: config{
			env:  "test",
			auth: authConfig{basic: basicConfig{user: "admin", pass: "admin"}},
		},
		store:         store.Storage{},
		carts:         carts,
		checkout:      orchestrator,
		logger:        logger,
		authenticator: auth.NewJWTAuthenticator("secret", "refresh", "test", "test", time.Hour, time.Hour),
		rateLimiter:   ratelimiter.NewFixedWindowLimiter(100, time.Second),
	}
}

func executeRequest(req *http.Request, mux http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}
