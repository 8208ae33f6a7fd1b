package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"storefront/internal/db"
)

// IntentRepository is the Postgres-backed IntentStore. The cart
// snapshot is stored as jsonb on the intent row.
type IntentRepository struct {
	db db.Querier
}

func NewIntentRepository(q db.Querier) *IntentRepository {
	return &IntentRepository{db: q}
}

func (r *IntentRepository) Create(ctx context.Context, intent *Intent) error {
	snapshot, err := json.Marshal(intent.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = r.db.Exec(ctx, `
INSERT INTO payment_intents
  (id, cart_key, provider, reference, provider_ref, amount, currency, status, snapshot, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`, intent.ID, intent.CartKey, intent.Provider, intent.Reference, intent.ProviderRef,
		intent.Amount, intent.Currency, intent.Status, snapshot, intent.CreatedAt)
	if err != nil {
		return fmt.Errorf("create payment intent: %w", err)
	}
	return nil
}

const intentColumns = `
id, cart_key, provider, reference, provider_ref, amount, currency, status,
snapshot, created_at, expired_at, settled_at`

func (r *IntentRepository) scanIntent(row pgx.Row) (*Intent, error) {
	var (
		intent   Intent
		snapshot []byte
		status   string
	)
	err := row.Scan(
		&intent.ID, &intent.CartKey, &intent.Provider, &intent.Reference,
		&intent.ProviderRef, &intent.Amount, &intent.Currency, &status,
		&snapshot, &intent.CreatedAt, &intent.ExpiredAt, &intent.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment intent: %w", err)
	}
	intent.Status = Status(status)
	if err := json.Unmarshal(snapshot, &intent.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &intent, nil
}

func (r *IntentRepository) GetByID(ctx context.Context, id string) (*Intent, error) {
	return r.scanIntent(r.db.QueryRow(ctx, `
SELECT `+intentColumns+`
FROM payment_intents
WHERE id = $1
`, id))
}

func (r *IntentRepository) GetByProviderRef(ctx context.Context, provider, providerRef string) (*Intent, error) {
	return r.scanIntent(r.db.QueryRow(ctx, `
SELECT `+intentColumns+`
FROM payment_intents
WHERE provider = $1 AND provider_ref = $2
LIMIT 1
`, provider, providerRef))
}

func (r *IntentRepository) Update(ctx context.Context, intent *Intent) error {
	_, err := r.db.Exec(ctx, `
UPDATE payment_intents
SET provider_ref = $2,
    status       = $3,
    expired_at   = $4,
    settled_at   = $5,
    updated_at   = now()
WHERE id = $1
`, intent.ID, intent.ProviderRef, intent.Status, intent.ExpiredAt, intent.SettledAt)
	if err != nil {
		return fmt.Errorf("update payment intent: %w", err)
	}
	return nil
}

func (r *IntentRepository) HasPending(ctx context.Context, cartKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM payment_intents
  WHERE cart_key = $1 AND status = 'pending'
)
`, cartKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending intent: %w", err)
	}
	return exists, nil
}

func (r *IntentRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*Intent, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+intentColumns+`
FROM payment_intents
WHERE status = 'pending' AND created_at < $1
ORDER BY created_at ASC
`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending intents: %w", err)
	}
	defer rows.Close()

	var out []*Intent
	for rows.Next() {
		intent, err := r.scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending intents rows error: %w", err)
	}
	return out, nil
}

func (r *IntentRepository) ListSettled(ctx context.Context, from, to time.Time) ([]SettledPayment, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, amount, currency, provider, settled_at
FROM payment_intents
WHERE status = 'succeeded'
  AND ($1::timestamptz IS NULL OR settled_at >= $1::timestamptz)
  AND ($2::timestamptz IS NULL OR settled_at <= $2::timestamptz)
ORDER BY settled_at DESC, id DESC
`, nullableTime(from), nullableTime(to))
	if err != nil {
		return nil, fmt.Errorf("list settled payments: %w", err)
	}
	defer rows.Close()

	var out []SettledPayment
	for rows.Next() {
		var p SettledPayment
		if err := rows.Scan(&p.IntentID, &p.Amount, &p.Currency, &p.Provider, &p.SettledAt); err != nil {
			return nil, fmt.Errorf("scan settled payment: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settled payments rows error: %w", err)
	}
	return out, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
