package cart

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidArgument = errors.New("invalid cart argument")
	ErrNotFound        = errors.New("cart item not found")
)

// maxLineQuantity caps accumulated quantities so repeated adds cannot
// run away (and stay far from integer overflow).
const maxLineQuantity = 1_000_000

type Line struct {
	ItemID    string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns UnitPrice * Quantity for the line.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums line subtotals.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Store is the durable mapping from item id to cart line, keyed by cart.
// It is the single source of truth; the Service never keeps a shadow copy.
// Implementations must preserve insertion order in Lines.
type Store interface {
	Lines(ctx context.Context, cartKey string) ([]Line, error)
	UpsertLine(ctx context.Context, cartKey string, line Line) error
	// DeleteLine reports whether a line existed.
	DeleteLine(ctx context.Context, cartKey, itemID string) (bool, error)
	Clear(ctx context.Context, cartKey string) error
}
