package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAddItem_NewLine(t *testing.T) {
	svc := NewService(NewMemoryStore())

	lines, err := svc.AddItem(context.Background(), "c1", "A", "Widget", price("10.00"), 2)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "A", lines[0].ItemID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(price("10.00")))
}

func TestAddItem_AccumulatesQuantity(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), 2)
	require.NoError(t, err)

	lines, err := svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), 3)
	require.NoError(t, err)
	require.Len(t, lines, 1, "repeat add must merge, not duplicate")
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestAddItem_Validation(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.AddItem(ctx, "c1", "A", "Widget", price("-1.00"), 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.AddItem(ctx, "c1", "", "Widget", price("10.00"), 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAddItem_QuantityCap(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), maxLineQuantity)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	lines, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, maxLineQuantity, lines[0].Quantity, "failed add must not change the line")
}

func TestUpdateQuantity_Replaces(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), 2)
	require.NoError(t, err)

	lines, err := svc.UpdateQuantity(ctx, "c1", "A", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, lines[0].Quantity)
}

func TestUpdateQuantity_AbsentIsNotFound(t *testing.T) {
	svc := NewService(NewMemoryStore())

	_, err := svc.UpdateQuantity(context.Background(), "c1", "missing", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateQuantity_ZeroIsInvalid(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), 2)
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(ctx, "c1", "A", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	lines, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, lines[0].Quantity, "cart must be unchanged after rejected update")
}

func TestRemoveItem_AbsentIsNoOp(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), 2)
	require.NoError(t, err)

	lines, err := svc.RemoveItem(ctx, "c1", "missing")
	require.NoError(t, err)
	require.Len(t, lines, 1)

	lines, err = svc.RemoveItem(ctx, "c1", "A")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestGet_DoesNotMutate(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), 2)
	require.NoError(t, err)

	first, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	first[0].Quantity = 99

	second, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, second[0].Quantity)
}

func TestInsertionOrderPreserved(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	for i, id := range []string{"C", "A", "B"} {
		_, err := svc.AddItem(ctx, "c1", id, "Item "+id, price("1.00"), i+1)
		require.NoError(t, err)
	}
	// Re-adding the first item must not move it.
	_, err := svc.AddItem(ctx, "c1", "C", "Item C", price("1.00"), 1)
	require.NoError(t, err)

	lines, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "C", lines[0].ItemID)
	assert.Equal(t, "A", lines[1].ItemID)
	assert.Equal(t, "B", lines[2].ItemID)
}

func TestConcurrentAddsOnSameKey(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	const workers = 20
	const addsEach = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < addsEach; i++ {
				_, err := svc.AddItem(ctx, "c1", "A", "Widget", price("10.00"), 1)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	lines, err := svc.Get(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, workers*addsEach, lines[0].Quantity)
}

func TestConcurrentCartsAreIndependent(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("cart-%d", n)
			_, err := svc.AddItem(ctx, key, "A", "Widget", price("2.50"), n+1)
			assert.NoError(t, err)
		}(w)
	}
	wg.Wait()

	for w := 0; w < 10; w++ {
		lines, err := svc.Get(ctx, fmt.Sprintf("cart-%d", w))
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, w+1, lines[0].Quantity)
	}
}

func TestTotal(t *testing.T) {
	lines := []Line{
		{ItemID: "A", UnitPrice: price("10.00"), Quantity: 2},
		{ItemID: "B", UnitPrice: price("5.00"), Quantity: 1},
	}
	assert.True(t, Total(lines).Equal(price("25.00")))
	assert.True(t, Total(nil).Equal(decimal.Zero))
}
