package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minhvodev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
)

// Repository is the inventory surface the order subsystem consumes. Catalog
// CRUD lives in the back-office; orders only read variant snapshots and move
// stock by signed deltas.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
	// AdjustStock applies delta (negative on commit, positive on
	// cancellation) as a single atomic UPDATE. It never reads then writes,
	// so concurrent materialization and cancellation of different orders
	// touching the same variant cannot lose updates.
	AdjustStock(ctx context.Context, productID, variantID uuid.UUID, delta int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", variantID, productID).
		First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, err
	}
	return &variant, nil
}

func (r *repository) AdjustStock(ctx context.Context, productID, variantID uuid.UUID, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND product_id = ? AND stock_qty + ? >= 0", variantID, productID, delta).
		Update("stock_qty", gorm.Expr("stock_qty + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindVariant(ctx, productID, variantID); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").WithDetails(map[string]any{
			"variant_id": variantID,
			"delta":      delta,
		})
	}
	return nil
}
