package staging

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/minhvodev/storefront-backend/internal/orders"
)

// TempOrder holds a checkout that has been handed to the payment gateway but
// not yet paid. Nothing here is durable: if the buyer abandons the redirect
// the entry simply expires and no order row ever exists.
type TempOrder struct {
	Key       string               `json:"key"`
	BuyerID   uuid.UUID            `json:"buyer_id"`
	Checkout  orders.CheckoutInput `json:"checkout"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// Store is the staging area shared by payment creation and both callback
// channels. Get must not return expired entries. Discard is idempotent:
// Return and IPN race to remove the same entry and the loser must not fail.
type Store interface {
	Stage(ctx context.Context, temp *TempOrder) error
	Get(ctx context.Context, key string) (*TempOrder, error)
	Discard(ctx context.Context, key string) error
	// Sweep drops entries expired as of now and reports how many went.
	// Backends with native expiry may report zero.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// NewKey returns a random v4 UUID string. The key rides through the gateway
// as the transaction reference, so it must be unguessable; a predictable key
// would let an attacker probe other buyers' callbacks.
func NewKey() string {
	return uuid.NewString()
}
