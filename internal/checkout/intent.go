package checkout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/cart"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusExpired
}

// Intent is a single attempt to settle a cart with a provider. The
// Snapshot is an immutable copy of the cart lines at creation time;
// later cart mutations never change what is being charged.
type Intent struct {
	ID          string          `json:"intent_id"`
	CartKey     string          `json:"-"`
	Provider    string          `json:"provider"`
	Reference   string          `json:"reference"`
	ProviderRef string          `json:"provider_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      Status          `json:"status"`
	Snapshot    []cart.Line     `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiredAt   *time.Time      `json:"expired_at,omitempty"`
	SettledAt   *time.Time      `json:"settled_at,omitempty"`
}

// SettledPayment is the read-only reporting projection over succeeded
// intents.
type SettledPayment struct {
	IntentID  string          `json:"intent_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Provider  string          `json:"provider"`
	SettledAt time.Time       `json:"settled_at"`
}

// IntentStore persists payment intents. Lookups for absent intents
// return (nil, nil); the orchestrator decides what absence means.
type IntentStore interface {
	Create(ctx context.Context, intent *Intent) error
	GetByID(ctx context.Context, id string) (*Intent, error)
	GetByProviderRef(ctx context.Context, provider, providerRef string) (*Intent, error)
	Update(ctx context.Context, intent *Intent) error
	HasPending(ctx context.Context, cartKey string) (bool, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*Intent, error)
	ListSettled(ctx context.Context, from, to time.Time) ([]SettledPayment, error)
}
