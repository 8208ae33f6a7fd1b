package payments

import "context"

// Gateway defines a common interface for all payment providers. Both
// redirect-style and push-style flows reduce to the same two-phase
// shape: initiate now, reconcile an asynchronous callback later.
type Gateway interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error)
	ParseCallback(raw []byte) (Callback, error)
}
