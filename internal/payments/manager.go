package payments

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// initiateAttempts bounds internal retries of transport failures before
// ErrGatewayUnavailable surfaces to the caller.
const initiateAttempts = 3

type Manager struct {
	gateways map[string]Gateway
	backoff  time.Duration
}

func NewManager() *Manager {
	return &Manager{
		gateways: make(map[string]Gateway),
		backoff:  200 * time.Millisecond,
	}
}

func (m *Manager) Register(gateway Gateway) {
	m.gateways[gateway.Name()] = gateway
}

func (m *Manager) Gateway(provider string) (Gateway, error) {
	gateway, ok := m.gateways[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return gateway, nil
}

// Initiate dispatches to the named provider, retrying transport
// failures with a short backoff. Provider rejections are never retried.
func (m *Manager) Initiate(ctx context.Context, provider string, req InitiateRequest) (InitiateResponse, error) {
	gateway, err := m.Gateway(provider)
	if err != nil {
		return InitiateResponse{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= initiateAttempts; attempt++ {
		resp, err := gateway.Initiate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrGatewayUnavailable) {
			return InitiateResponse{}, err
		}
		lastErr = err

		if attempt < initiateAttempts {
			select {
			case <-ctx.Done():
				return InitiateResponse{}, fmt.Errorf("%w: %w", ErrGatewayUnavailable, ctx.Err())
			case <-time.After(m.backoff * time.Duration(attempt)):
			}
		}
	}

	return InitiateResponse{}, lastErr
}

func (m *Manager) ParseCallback(provider string, raw []byte) (Callback, error) {
	gateway, err := m.Gateway(provider)
	if err != nil {
		return Callback{}, err
	}
	return gateway.ParseCallback(raw)
}
