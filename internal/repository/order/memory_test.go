package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/entity"
)

func draftFor(customerID int64, number string) *entity.Order {
	return &entity.Order{
		Number:     number,
		CustomerID: customerID,
		Status:     entity.StatusDraft,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestMemoryRejectsSecondDraftForCustomer(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, draftFor(1, "Order No 1")))
	assert.ErrorIs(t, store.Create(ctx, draftFor(1, "Order No 2")), ErrConflict)
	require.NoError(t, store.Create(ctx, draftFor(2, "Order No 3")))
}

func TestMemoryRejectsDuplicateNumber(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, draftFor(1, "Order No 1")))
	assert.ErrorIs(t, store.Create(ctx, draftFor(2, "Order No 1")), ErrConflict)
}

func TestMemorySaveDetectsStaleVersion(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	order := draftFor(1, "Order No 1")
	require.NoError(t, store.Create(ctx, order))

	fresh, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)
	stale, err := store.GetByID(ctx, order.ID)
	require.NoError(t, err)

	fresh.Total = 10
	require.NoError(t, store.Save(ctx, fresh))

	stale.Total = 20
	assert.ErrorIs(t, store.Save(ctx, stale), ErrVersionMismatch)
}

func TestMemoryListOrdering(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	older := draftFor(1, "Order No 1")
	older.Status = entity.StatusPending
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, older))

	newer := draftFor(1, "Order No 2")
	require.NoError(t, store.Create(ctx, newer))

	orders, err := store.ListByCustomer(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer.ID, orders[0].ID)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryDelete(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	order := draftFor(1, "Order No 1")
	require.NoError(t, store.Create(ctx, order))
	require.NoError(t, store.Delete(ctx, order.ID))

	assert.ErrorIs(t, store.Delete(ctx, order.ID), ErrNotFound)
	_, err := store.GetByID(ctx, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySequence(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	first, err := store.NextOrderNumber(ctx)
	require.NoError(t, err)
	second, err := store.NextOrderNumber(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Order No 1", first)
	assert.Equal(t, "Order No 2", second)
}
