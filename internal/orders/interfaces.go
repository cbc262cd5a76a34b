package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhvodev/storefront-backend/pkg/db/models"
	"github.com/minhvodev/storefront-backend/pkg/enums"
)

// ListFilters narrows admin order listings.
type ListFilters struct {
	Status *enums.OrderStatus
}

// Repository manages persistence for orders and their detail rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderDetails(ctx context.Context, details []models.OrderDetail) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindByGatewayTxnID returns (nil, nil) when no order carries the
	// transaction id; callers treat presence as "already processed".
	FindByGatewayTxnID(ctx context.Context, txnID string) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, filters ListFilters) ([]models.Order, error)
}
