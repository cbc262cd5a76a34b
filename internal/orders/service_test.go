package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/minhvodev/storefront-backend/internal/catalog"
	"github.com/minhvodev/storefront-backend/pkg/db/models"
	"github.com/minhvodev/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
)

type stubRepo struct {
	orders  map[uuid.UUID]*models.Order
	details []models.OrderDetail
	updates map[uuid.UUID]map[string]any
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		orders:  map[uuid.UUID]*models.Order{},
		updates: map[uuid.UUID]map[string]any{},
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubRepo) CreateOrderDetails(ctx context.Context, details []models.OrderDetail) error {
	s.details = append(s.details, details...)
	if len(details) > 0 {
		if order, ok := s.orders[details[0].OrderID]; ok {
			order.Details = append(order.Details, details...)
		}
	}
	return nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *stubRepo) FindByGatewayTxnID(ctx context.Context, txnID string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.GatewayTxnID != nil && *order.GatewayTxnID == txnID {
			return order, nil
		}
	}
	return nil, nil
}

func (s *stubRepo) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates[id] = updates
	order := s.orders[id]
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	if status, ok := updates["payment_status"].(enums.PaymentStatus); ok {
		order.PaymentStatus = status
	}
	return nil
}

func (s *stubRepo) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	for _, order := range s.orders {
		if order.BuyerID == buyerID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (s *stubRepo) List(ctx context.Context, filters ListFilters) ([]models.Order, error) {
	var out []models.Order
	for _, order := range s.orders {
		if filters.Status != nil && order.Status != *filters.Status {
			continue
		}
		out = append(out, *order)
	}
	return out, nil
}

type stockChange struct {
	variantID uuid.UUID
	delta     int
}

type stubInventory struct {
	changes   []stockChange
	adjustErr error
}

func (s *stubInventory) WithTx(tx *gorm.DB) catalog.Repository { return s }

func (s *stubInventory) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	panic("not implemented")
}

func (s *stubInventory) AdjustStock(ctx context.Context, productID, variantID uuid.UUID, delta int) error {
	if s.adjustErr != nil {
		return s.adjustErr
	}
	s.changes = append(s.changes, stockChange{variantID: variantID, delta: delta})
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T) (Service, *stubRepo, *stubInventory) {
	t.Helper()
	repo := newStubRepo()
	inventory := &stubInventory{}
	svc, err := NewService(repo, inventory, stubTx{})
	require.NoError(t, err)
	return svc, repo, inventory
}

func codCheckout() CheckoutInput {
	return CheckoutInput{
		Lines: []CartLine{
			{
				ProductID: uuid.New(),
				VariantID: uuid.New(),
				Name:      "Basic Tee",
				Size:      "M",
				Color:     "black",
				UnitPrice: 75000,
				LinePrice: 150000,
				Qty:       2,
			},
			{
				ProductID: uuid.New(),
				VariantID: uuid.New(),
				Name:      "Canvas Tote",
				Size:      "one-size",
				Color:     "natural",
				UnitPrice: 40000,
				LinePrice: 40000,
				Qty:       1,
			},
		},
		ShippingName:  "Nguyen Van A",
		ShippingPhone: "0900000001",
		ShippingAddr:  "1 Le Loi, District 1",
		Subtotal:      190000,
		Total:         190000,
		AmountDue:     190000,
	}
}

func TestCreateCODOrder(t *testing.T) {
	svc, repo, inventory := newTestService(t)
	buyerID := uuid.New()

	order, err := svc.CreateCODOrder(context.Background(), buyerID, codCheckout())
	require.NoError(t, err)

	assert.Equal(t, enums.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, order.Status)
	assert.Equal(t, buyerID, order.BuyerID)

	require.Len(t, repo.details, 2)
	require.Len(t, inventory.changes, 2)
	assert.Equal(t, -2, inventory.changes[0].delta)
	assert.Equal(t, -1, inventory.changes[1].delta)
}

func TestCreateCODOrderValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.CreateCODOrder(context.Background(), uuid.Nil, codCheckout())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))

	t.Run("line price mismatch", func(t *testing.T) {
		bad := codCheckout()
		bad.Lines[0].LinePrice = 1
		_, err := svc.CreateCODOrder(context.Background(), uuid.New(), bad)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	})

	t.Run("total does not cover discount", func(t *testing.T) {
		bad := codCheckout()
		bad.DiscountAmount = 10000
		_, err := svc.CreateCODOrder(context.Background(), uuid.New(), bad)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	})
}

func TestCancelRestoresStock(t *testing.T) {
	svc, _, inventory := newTestService(t)
	buyerID := uuid.New()

	order, err := svc.CreateCODOrder(context.Background(), buyerID, codCheckout())
	require.NoError(t, err)
	inventory.changes = nil

	cancelled, err := svc.Cancel(context.Background(), buyerID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)

	require.Len(t, inventory.changes, 2)
	assert.Equal(t, 2, inventory.changes[0].delta)
	assert.Equal(t, 1, inventory.changes[1].delta)
}

func TestCancelGuards(t *testing.T) {
	t.Run("not owner", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		order, err := svc.CreateCODOrder(context.Background(), uuid.New(), codCheckout())
		require.NoError(t, err)

		// An ownership miss must be indistinguishable from a missing order.
		_, err = svc.Cancel(context.Background(), uuid.New(), order.ID)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

		_, err = svc.GetForBuyer(context.Background(), uuid.New(), order.ID)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	})

	t.Run("unknown order", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.Cancel(context.Background(), uuid.New(), uuid.New())
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
	})

	t.Run("past processing", func(t *testing.T) {
		svc, repo, inventory := newTestService(t)
		buyerID := uuid.New()
		order, err := svc.CreateCODOrder(context.Background(), buyerID, codCheckout())
		require.NoError(t, err)
		repo.orders[order.ID].Status = enums.OrderStatusShipping
		inventory.changes = nil

		_, err = svc.Cancel(context.Background(), buyerID, order.ID)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
		assert.Empty(t, inventory.changes, "no stock mutation on rejected cancel")
	})
}

func TestUpdateStatusTransitions(t *testing.T) {
	cases := []struct {
		from    enums.OrderStatus
		to      enums.OrderStatus
		allowed bool
	}{
		{enums.OrderStatusProcessing, enums.OrderStatusPackaging, true},
		{enums.OrderStatusPackaging, enums.OrderStatusShipping, true},
		{enums.OrderStatusShipping, enums.OrderStatusCompleted, true},
		{enums.OrderStatusProcessing, enums.OrderStatusShipping, false},
		{enums.OrderStatusPackaging, enums.OrderStatusProcessing, false},
		{enums.OrderStatusShipping, enums.OrderStatusProcessing, false},
		{enums.OrderStatusCompleted, enums.OrderStatusShipping, false},
		{enums.OrderStatusCancelled, enums.OrderStatusPackaging, false},
		{enums.OrderStatusProcessing, enums.OrderStatusCancelled, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			svc, repo, _ := newTestService(t)
			order, err := svc.CreateCODOrder(context.Background(), uuid.New(), codCheckout())
			require.NoError(t, err)
			repo.orders[order.ID].Status = tc.from

			updated, err := svc.UpdateStatus(context.Background(), order.ID, tc.to)
			if tc.allowed {
				require.NoError(t, err)
				assert.Equal(t, tc.to, updated.Status)
			} else {
				assert.True(t, pkgerrors.Is(err, pkgerrors.CodeStateConflict))
			}
		})
	}
}

func TestUpdateStatusSettlesCODPayment(t *testing.T) {
	svc, repo, _ := newTestService(t)
	order, err := svc.CreateCODOrder(context.Background(), uuid.New(), codCheckout())
	require.NoError(t, err)
	repo.orders[order.ID].Status = enums.OrderStatusShipping

	updated, err := svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, updated.Status)
	assert.Equal(t, enums.PaymentStatusCompleted, updated.PaymentStatus, "courier collected at the door")
}

func TestUpdateStatusIdempotentSameStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	order, err := svc.CreateCODOrder(context.Background(), uuid.New(), codCheckout())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, enums.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, updated.Status)
}
