package cart

import (
	"context"
	"fmt"

	"storefront/internal/db"
)

// Repository is the Postgres-backed Store. Insertion order is the
// serial id of the first insert; ON CONFLICT updates keep it stable.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Lines(ctx context.Context, cartKey string) ([]Line, error) {
	rows, err := r.db.Query(ctx, `
SELECT item_id, name, unit_price, quantity
FROM cart_lines
WHERE cart_key = $1
ORDER BY id ASC
`, cartKey)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ItemID, &l.Name, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart lines rows error: %w", err)
	}

	return out, nil
}

func (r *Repository) UpsertLine(ctx context.Context, cartKey string, line Line) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO cart_lines (cart_key, item_id, name, unit_price, quantity)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (cart_key, item_id)
DO UPDATE SET
  name       = EXCLUDED.name,
  unit_price = EXCLUDED.unit_price,
  quantity   = EXCLUDED.quantity,
  updated_at = now()
`, cartKey, line.ItemID, line.Name, line.UnitPrice, line.Quantity)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (r *Repository) DeleteLine(ctx context.Context, cartKey, itemID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
DELETE FROM cart_lines
WHERE cart_key = $1 AND item_id = $2
`, cartKey, itemID)
	if err != nil {
		return false, fmt.Errorf("delete cart line: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) Clear(ctx context.Context, cartKey string) error {
	_, err := r.db.Exec(ctx, `
DELETE FROM cart_lines
WHERE cart_key = $1
`, cartKey)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
