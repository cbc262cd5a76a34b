package staging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minhvodev/storefront-backend/internal/orders"
	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
)

func tempOrder(key string, now time.Time, ttl time.Duration) *TempOrder {
	return &TempOrder{
		Key:     key,
		BuyerID: uuid.New(),
		Checkout: orders.CheckoutInput{
			Subtotal:  150000,
			Total:     150000,
			AmountDue: 150000,
		},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestMemoryStoreStageAndGet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithNow(func() time.Time { return base })

	temp := tempOrder("key1", base, 30*time.Minute)
	require.NoError(t, store.Stage(ctx, temp))

	got, err := store.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, temp.BuyerID, got.BuyerID)
	assert.Equal(t, int64(150000), got.Checkout.AmountDue)

	// The stored entry must not alias the caller's struct.
	got.Checkout.AmountDue = 1
	again, err := store.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, int64(150000), again.Checkout.AmountDue)
}

func TestMemoryStoreStageRequiresKey(t *testing.T) {
	store := NewMemoryStore()
	err := store.Stage(context.Background(), &TempOrder{})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	now := base
	store := NewMemoryStore().WithNow(func() time.Time { return now })

	require.NoError(t, store.Stage(ctx, tempOrder("key1", base, 30*time.Minute)))

	now = base.Add(29 * time.Minute)
	_, err := store.Get(ctx, "key1")
	assert.NoError(t, err)

	// Expiry must hold even though no sweep has run.
	now = base.Add(30 * time.Minute)
	_, err = store.Get(ctx, "key1")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	assert.Equal(t, 0, store.Len(), "expired entry removed on read")
}

func TestMemoryStoreDiscardIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Stage(ctx, tempOrder("key1", time.Now(), time.Minute)))
	require.NoError(t, store.Discard(ctx, "key1"))
	require.NoError(t, store.Discard(ctx, "key1"), "second discard is a no-op")
	require.NoError(t, store.Discard(ctx, "never-staged"))
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithNow(func() time.Time { return base })

	require.NoError(t, store.Stage(ctx, tempOrder("old1", base, 10*time.Minute)))
	require.NoError(t, store.Stage(ctx, tempOrder("old2", base, 20*time.Minute)))
	require.NoError(t, store.Stage(ctx, tempOrder("live", base, 40*time.Minute)))

	removed, err := store.Sweep(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Len())

	_, err = store.Get(ctx, "live")
	assert.NoError(t, err)
}

func TestNewKeyIsRandom(t *testing.T) {
	a := NewKey()
	b := NewKey()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
