package checkout

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/cart"
)

// MemoryIntentStore keeps intents in process memory. Used by tests and
// by the server when no database is configured.
type MemoryIntentStore struct {
	mu      sync.RWMutex
	intents map[string]*Intent
	byRef   map[string]string // provider + "/" + providerRef -> intent id
}

func NewMemoryIntentStore() *MemoryIntentStore {
	return &MemoryIntentStore{
		intents: make(map[string]*Intent),
		byRef:   make(map[string]string),
	}
}

func refKey(provider, providerRef string) string {
	return provider + "/" + providerRef
}

func cloneIntent(in *Intent) *Intent {
	if in == nil {
		return nil
	}
	out := *in
	out.Snapshot = make([]cart.Line, len(in.Snapshot))
	copy(out.Snapshot, in.Snapshot)
	if in.ExpiredAt != nil {
		t := *in.ExpiredAt
		out.ExpiredAt = &t
	}
	if in.SettledAt != nil {
		t := *in.SettledAt
		out.SettledAt = &t
	}
	return &out
}

func (m *MemoryIntentStore) Create(_ context.Context, intent *Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.intents[intent.ID] = cloneIntent(intent)
	if intent.ProviderRef != "" {
		m.byRef[refKey(intent.Provider, intent.ProviderRef)] = intent.ID
	}
	return nil
}

func (m *MemoryIntentStore) GetByID(_ context.Context, id string) (*Intent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return cloneIntent(m.intents[id]), nil
}

func (m *MemoryIntentStore) GetByProviderRef(_ context.Context, provider, providerRef string) (*Intent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byRef[refKey(provider, providerRef)]
	if !ok {
		return nil, nil
	}
	return cloneIntent(m.intents[id]), nil
}

func (m *MemoryIntentStore) Update(_ context.Context, intent *Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.intents[intent.ID] = cloneIntent(intent)
	if intent.ProviderRef != "" {
		m.byRef[refKey(intent.Provider, intent.ProviderRef)] = intent.ID
	}
	return nil
}

func (m *MemoryIntentStore) HasPending(_ context.Context, cartKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, intent := range m.intents {
		if intent.CartKey == cartKey && intent.Status == StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryIntentStore) ListPendingBefore(_ context.Context, cutoff time.Time) ([]*Intent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Intent
	for _, intent := range m.intents {
		if intent.Status == StatusPending && intent.CreatedAt.Before(cutoff) {
			out = append(out, cloneIntent(intent))
		}
	}
	return out, nil
}

func (m *MemoryIntentStore) ListSettled(_ context.Context, from, to time.Time) ([]SettledPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []SettledPayment
	for _, intent := range m.intents {
		if intent.Status != StatusSucceeded || intent.SettledAt == nil {
			continue
		}
		settled := *intent.SettledAt
		if !from.IsZero() && settled.Before(from) {
			continue
		}
		if !to.IsZero() && settled.After(to) {
			continue
		}
		out = append(out, SettledPayment{
			IntentID:  intent.ID,
			Amount:    intent.Amount,
			Currency:  intent.Currency,
			Provider:  intent.Provider,
			SettledAt: settled,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SettledAt.After(out[j].SettledAt)
	})
	return out, nil
}
