package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/payments"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrIntentAlreadyPending = errors.New("a pending payment already exists for this cart")
	ErrUnknownIntent        = errors.New("no payment intent matches the provider reference")
	ErrConflictingCallback  = errors.New("callback conflicts with a settled payment intent")
)

type Config struct {
	Currency string
	// PendingTimeout is how long an intent may stay pending before
	// ExpireStalePending moves it to expired.
	PendingTimeout time.Duration
	// CallbackGrace lets a legitimate provider callback override an
	// expired intent for this long after expiry. Zero disables the
	// override: any callback after expiry is conflicting.
	CallbackGrace time.Duration
}

// Orchestrator drives a purchase from cart snapshot to settled or
// failed payment. It owns every intent state transition; transitions on
// the same intent are serialized, and gateway calls never run under a
// cart or intent lock.
type Orchestrator struct {
	cfg      Config
	carts    *cart.Service
	gateways *payments.Manager
	intents  IntentStore
	refs     *ReferenceGenerator
	logger   *zap.SugaredLogger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex // intent id -> lock
	inflight map[string]struct{}    // cart keys with an initiate call running
	now      func() time.Time
}

func NewOrchestrator(cfg Config, carts *cart.Service, gateways *payments.Manager, intents IntentStore, refs *ReferenceGenerator, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		carts:    carts,
		gateways: gateways,
		intents:  intents,
		refs:     refs,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
		inflight: make(map[string]struct{}),
		now:      time.Now,
	}
}

func (o *Orchestrator) intentLock(intentID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[intentID]
	if !ok {
		l = &sync.Mutex{}
		o.locks[intentID] = l
	}
	return l
}

// reserveCart marks the cart as having an initiate call in flight, so
// two concurrent StartCheckout calls cannot both pass the pending-intent
// check while neither has committed an intent yet.
func (o *Orchestrator) reserveCart(cartKey string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[cartKey]; busy {
		return false
	}
	o.inflight[cartKey] = struct{}{}
	return true
}

func (o *Orchestrator) releaseCart(cartKey string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, cartKey)
}

// CheckoutResult is returned to the caller so it can continue the
// provider flow: follow the redirect URL or confirm the push.
type CheckoutResult struct {
	Intent       *Intent                   `json:"intent"`
	Continuation payments.InitiateResponse `json:"continuation"`
}

// StartCheckout snapshots the cart, initiates payment with the chosen
// provider, and records a pending intent bound to the snapshot.
func (o *Orchestrator) StartCheckout(ctx context.Context, cartKey, provider, phone string) (*CheckoutResult, error) {
	lines, err := o.carts.Get(ctx, cartKey)
	if err != nil {
		return nil, fmt.Errorf("snapshot cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	total := cart.Total(lines)
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: nothing to charge", ErrEmptyCart)
	}

	pending, err := o.intents.HasPending(ctx, cartKey)
	if err != nil {
		return nil, fmt.Errorf("check pending intent: %w", err)
	}
	if pending {
		return nil, ErrIntentAlreadyPending
	}
	if !o.reserveCart(cartKey) {
		return nil, ErrIntentAlreadyPending
	}
	defer o.releaseCart(cartKey)

	reference := o.refs.Generate(cartKey)

	// Blocking network call; only the in-flight marker is held.
	continuation, err := o.gateways.Initiate(ctx, provider, payments.InitiateRequest{
		Amount:    total,
		Currency:  o.cfg.Currency,
		Reference: reference,
		Phone:     phone,
	})
	if err != nil {
		return nil, err
	}

	intent := &Intent{
		ID:          uuid.NewString(),
		CartKey:     cartKey,
		Provider:    provider,
		Reference:   reference,
		ProviderRef: continuation.ProviderRef,
		Amount:      total,
		Currency:    o.cfg.Currency,
		Status:      StatusPending,
		Snapshot:    lines,
		CreatedAt:   o.now(),
	}
	if err := o.intents.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("record payment intent: %w", err)
	}

	o.logger.Infow("checkout started",
		"intent_id", intent.ID,
		"provider", provider,
		"amount", total.String(),
		"reference", reference,
	)

	return &CheckoutResult{Intent: intent, Continuation: continuation}, nil
}

// Reconcile applies an asynchronous provider callback to the matching
// intent. A success settles the intent and clears the originating cart
// exactly once; a failure leaves the cart intact for retry. Duplicate
// callbacks consistent with the terminal state are no-ops.
func (o *Orchestrator) Reconcile(ctx context.Context, provider string, raw []byte) (*Intent, error) {
	cb, err := o.gateways.ParseCallback(provider, raw)
	if err != nil {
		return nil, err
	}

	matched, err := o.intents.GetByProviderRef(ctx, provider, cb.ProviderRef)
	if err != nil {
		return nil, fmt.Errorf("lookup intent: %w", err)
	}
	if matched == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownIntent, provider, cb.ProviderRef)
	}

	l := o.intentLock(matched.ID)
	l.Lock()
	defer l.Unlock()

	// Re-read under the lock: an expiry sweep may have raced us.
	intent, err := o.intents.GetByID(ctx, matched.ID)
	if err != nil {
		return nil, fmt.Errorf("reload intent: %w", err)
	}
	if intent == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownIntent, provider, cb.ProviderRef)
	}

	switch intent.Status {
	case StatusPending:
		return o.settle(ctx, intent, cb)

	case StatusSucceeded:
		if cb.Outcome == payments.OutcomeSuccess {
			return intent, nil // duplicate, cart already cleared once
		}
		return nil, fmt.Errorf("%w: %s callback for succeeded intent %s", ErrConflictingCallback, cb.Outcome, intent.ID)

	case StatusFailed:
		if cb.Outcome == payments.OutcomeFailure {
			return intent, nil
		}
		return nil, fmt.Errorf("%w: %s callback for failed intent %s", ErrConflictingCallback, cb.Outcome, intent.ID)

	case StatusExpired:
		// Expiry is provisional for a grace window: the provider may
		// have settled before our timeout fired.
		if o.cfg.CallbackGrace > 0 && intent.ExpiredAt != nil &&
			o.now().Sub(*intent.ExpiredAt) <= o.cfg.CallbackGrace {
			o.logger.Warnw("late callback overrides expired intent",
				"intent_id", intent.ID, "outcome", cb.Outcome)
			return o.settle(ctx, intent, cb)
		}
		return nil, fmt.Errorf("%w: callback for expired intent %s", ErrConflictingCallback, intent.ID)

	default:
		return nil, fmt.Errorf("intent %s in unknown status %q", intent.ID, intent.Status)
	}
}

func (o *Orchestrator) settle(ctx context.Context, intent *Intent, cb payments.Callback) (*Intent, error) {
	if cb.Outcome == payments.OutcomeSuccess && !cb.Amount.IsZero() && !cb.Amount.Equal(intent.Amount) {
		return nil, fmt.Errorf("%w: callback amount %s != intent amount %s for %s",
			ErrConflictingCallback, cb.Amount, intent.Amount, intent.ID)
	}

	switch cb.Outcome {
	case payments.OutcomeSuccess:
		settledAt := o.now()
		intent.Status = StatusSucceeded
		intent.SettledAt = &settledAt
		intent.ExpiredAt = nil
		if err := o.intents.Update(ctx, intent); err != nil {
			return nil, fmt.Errorf("settle intent: %w", err)
		}
		if err := o.carts.Clear(ctx, intent.CartKey); err != nil {
			// The payment is settled either way; the cart will be
			// rebuilt or cleared on the next mutation.
			o.logger.Errorw("clear cart after settlement", "intent_id", intent.ID, "err", err)
		}
		o.logger.Infow("payment succeeded", "intent_id", intent.ID, "provider", intent.Provider)

	case payments.OutcomeFailure:
		intent.Status = StatusFailed
		intent.ExpiredAt = nil
		if err := o.intents.Update(ctx, intent); err != nil {
			return nil, fmt.Errorf("fail intent: %w", err)
		}
		o.logger.Infow("payment failed, cart kept for retry", "intent_id", intent.ID, "provider", intent.Provider)
	}

	return intent, nil
}

// ExpireStalePending transitions pending intents older than the
// configured timeout to expired. Returns how many were expired.
func (o *Orchestrator) ExpireStalePending(ctx context.Context, now time.Time) (int, error) {
	stale, err := o.intents.ListPendingBefore(ctx, now.Add(-o.cfg.PendingTimeout))
	if err != nil {
		return 0, fmt.Errorf("list stale intents: %w", err)
	}

	expired := 0
	for _, candidate := range stale {
		l := o.intentLock(candidate.ID)
		l.Lock()

		intent, err := o.intents.GetByID(ctx, candidate.ID)
		if err != nil {
			l.Unlock()
			return expired, fmt.Errorf("reload intent: %w", err)
		}
		// A callback may have settled it between the list and the lock.
		if intent == nil || intent.Status != StatusPending {
			l.Unlock()
			continue
		}

		expiredAt := now
		intent.Status = StatusExpired
		intent.ExpiredAt = &expiredAt
		if err := o.intents.Update(ctx, intent); err != nil {
			l.Unlock()
			return expired, fmt.Errorf("expire intent: %w", err)
		}
		expired++
		o.logger.Infow("payment intent expired", "intent_id", intent.ID, "provider", intent.Provider)
		l.Unlock()
	}

	return expired, nil
}

// ListSettledPayments is the read-only reporting projection. Zero
// bounds mean an open range.
func (o *Orchestrator) ListSettledPayments(ctx context.Context, from, to time.Time) ([]SettledPayment, error) {
	return o.intents.ListSettled(ctx, from, to)
}
