package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Service is the only writer over a Store. Operations on the same cart
// key are mutually exclusive; different carts proceed independently.
type Service struct {
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) keyLock(cartKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[cartKey]
	if !ok {
		l = &sync.Mutex{}
		s.locks[cartKey] = l
	}
	return l
}

// AddItem creates a line for itemID or accumulates quantity onto an
// existing one, then returns the full updated cart.
func (s *Service) AddItem(ctx context.Context, cartKey, itemID, name string, unitPrice decimal.Decimal, quantity int) ([]Line, error) {
	if itemID == "" {
		return nil, fmt.Errorf("%w: item id is required", ErrInvalidArgument)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrInvalidArgument)
	}
	if unitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrInvalidArgument)
	}

	l := s.keyLock(cartKey)
	l.Lock()
	defer l.Unlock()

	lines, err := s.store.Lines(ctx, cartKey)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	line := Line{ItemID: itemID, Name: name, UnitPrice: unitPrice, Quantity: quantity}
	for _, existing := range lines {
		if existing.ItemID != itemID {
			continue
		}
		if existing.Quantity+quantity > maxLineQuantity {
			return nil, fmt.Errorf("%w: quantity exceeds %d", ErrInvalidArgument, maxLineQuantity)
		}
		line.Quantity = existing.Quantity + quantity
		break
	}

	if err := s.store.UpsertLine(ctx, cartKey, line); err != nil {
		return nil, fmt.Errorf("save cart line: %w", err)
	}

	return s.store.Lines(ctx, cartKey)
}

// RemoveItem deletes the line if present. A missing item is not an
// error; the unchanged cart is returned.
func (s *Service) RemoveItem(ctx context.Context, cartKey, itemID string) ([]Line, error) {
	l := s.keyLock(cartKey)
	l.Lock()
	defer l.Unlock()

	if _, err := s.store.DeleteLine(ctx, cartKey, itemID); err != nil {
		return nil, fmt.Errorf("remove cart line: %w", err)
	}

	return s.store.Lines(ctx, cartKey)
}

// UpdateQuantity replaces (not accumulates) the quantity of an existing
// line. Absent items fail with ErrNotFound, never a nil cart.
func (s *Service) UpdateQuantity(ctx context.Context, cartKey, itemID string, quantity int) ([]Line, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrInvalidArgument)
	}

	l := s.keyLock(cartKey)
	l.Lock()
	defer l.Unlock()

	lines, err := s.store.Lines(ctx, cartKey)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var line *Line
	for i := range lines {
		if lines[i].ItemID == itemID {
			line = &lines[i]
			break
		}
	}
	if line == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, itemID)
	}

	line.Quantity = quantity
	if err := s.store.UpsertLine(ctx, cartKey, *line); err != nil {
		return nil, fmt.Errorf("save cart line: %w", err)
	}

	return s.store.Lines(ctx, cartKey)
}

// Get returns the cart in insertion order. Read-only.
func (s *Service) Get(ctx context.Context, cartKey string) ([]Line, error) {
	return s.store.Lines(ctx, cartKey)
}

// Clear removes every line of the cart.
func (s *Service) Clear(ctx context.Context, cartKey string) error {
	l := s.keyLock(cartKey)
	l.Lock()
	defer l.Unlock()

	return s.store.Clear(ctx, cartKey)
}
