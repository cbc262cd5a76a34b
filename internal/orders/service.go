package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhvodev/storefront-backend/internal/catalog"
	"github.com/minhvodev/storefront-backend/pkg/db/models"
	"github.com/minhvodev/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers the order lifecycle after payment routing: cash-on-delivery
// checkout, buyer reads, buyer cancellation and the back-office status flow.
type Service interface {
	CreateCODOrder(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*models.Order, error)
	GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
	ListAll(ctx context.Context, filters ListFilters) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
}

type service struct {
	repo      Repository
	inventory catalog.Repository
	tx        txRunner
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, inventory catalog.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, inventory: inventory, tx: tx}, nil
}

// CreateCODOrder commits a cash-on-delivery order directly: no staging, no
// gateway round trip. The order, its detail rows and every stock decrement
// land in one transaction, so an out-of-stock line aborts the whole checkout.
func (s *service) CreateCODOrder(ctx context.Context, buyerID uuid.UUID, input CheckoutInput) (*models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	order := &models.Order{
		BuyerID:        buyerID,
		VoucherID:      input.VoucherID,
		DiscountAmount: input.DiscountAmount,
		Subtotal:       input.Subtotal,
		Total:          input.Total,
		AmountDue:      input.AmountDue,
		ShippingName:   input.ShippingName,
		ShippingPhone:  input.ShippingPhone,
		ShippingAddr:   input.ShippingAddr,
		Note:           input.Note,
		PaymentMethod:  enums.PaymentMethodCOD,
		PaymentStatus:  enums.PaymentStatusPending,
		Status:         enums.OrderStatusProcessing,
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var commitErr error
		created, commitErr = CommitOrder(ctx, s.repo.WithTx(tx), s.inventory.WithTx(tx), order, input.Lines)
		return commitErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) GetForBuyer(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		// Answering not-found keeps other buyers' order ids unguessable.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return s.repo.ListByBuyer(ctx, buyerID)
}

// Cancel voids a buyer's order and returns every line's quantity to stock in
// the same transaction. Only orders still in processing can be cancelled:
// anything further along has left the warehouse, and gateway-paid orders are
// created past processing so captured money never detaches from a live order.
func (s *service) Cancel(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inventory := s.inventory.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusProcessing {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status.String()})
		}

		for _, detail := range order.Details {
			if err := inventory.AdjustStock(ctx, detail.ProductID, detail.VariantID, detail.Qty); err != nil {
				return err
			}
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status": enums.OrderStatusCancelled,
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusCancelled
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *service) ListAll(ctx context.Context, filters ListFilters) ([]models.Order, error) {
	return s.repo.List(ctx, filters)
}

// UpdateStatus advances an order along the fulfillment flow. Transitions move
// forward only; a shipped order never returns to processing, and completion
// of a cash-on-delivery order settles its payment since the courier collected
// it at the door.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == status {
			updated = order
			return nil
		}
		if !canTransition(order.Status, status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]any{
					"from": order.Status.String(),
					"to":   status.String(),
				})
		}

		updates := map[string]any{"status": status}
		if status == enums.OrderStatusCompleted &&
			order.PaymentMethod == enums.PaymentMethodCOD &&
			order.PaymentStatus != enums.PaymentStatusCompleted {
			updates["payment_status"] = enums.PaymentStatusCompleted
			order.PaymentStatus = enums.PaymentStatusCompleted
		}

		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return err
		}
		order.Status = status
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// canTransition encodes the forward-only fulfillment flow. Cancellation is
// reserved for the buyer path, which also restores stock.
func canTransition(from, to enums.OrderStatus) bool {
	switch from {
	case enums.OrderStatusProcessing:
		return to == enums.OrderStatusPackaging
	case enums.OrderStatusPackaging:
		return to == enums.OrderStatusShipping
	case enums.OrderStatusShipping:
		return to == enums.OrderStatusCompleted
	default:
		return false
	}
}
