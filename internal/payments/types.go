package payments

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayUnavailable marks transport-level failures. Retryable.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected marks provider-side validation refusals. Terminal.
	ErrGatewayRejected = errors.New("payment rejected by gateway")
	// ErrInvalidCallback marks notifications that fail shape or signature
	// checks. Such callbacks are discarded, never applied to state.
	ErrInvalidCallback = errors.New("invalid gateway callback")
	// ErrUnknownProvider is returned for an unregistered provider tag.
	ErrUnknownProvider = errors.New("gateway not registered")
)

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

type InitiateRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Reference string // our idempotency key, echoed by the provider
	Phone     string // push-style providers only
}

// InitiateResponse carries the provider-specific continuation: a
// redirect URL for hosted-checkout providers, extra fields (push token,
// customer message) in Data for push providers.
type InitiateResponse struct {
	ProviderRef string            `json:"provider_ref"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

// Callback is a normalized asynchronous provider notification.
type Callback struct {
	ProviderRef string
	Outcome     Outcome
	Amount      decimal.Decimal
	Currency    string
}
