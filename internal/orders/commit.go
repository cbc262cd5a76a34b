package orders

import (
	"context"

	"github.com/minhvodev/storefront-backend/internal/catalog"
	"github.com/minhvodev/storefront-backend/pkg/db/models"
)

// CommitOrder persists the order, one detail row per cart line, and the
// matching stock decrement for every line. Detail creation and decrement are
// deliberately interleaved per line so neither can exist without the other
// once the surrounding transaction commits. Callers MUST invoke this with
// repositories already bound to an open transaction; a failure on any line
// rolls back the order, every prior detail row, and every prior decrement.
func CommitOrder(ctx context.Context, repo Repository, inventory catalog.Repository, order *models.Order, lines []CartLine) (*models.Order, error) {
	created, err := repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		detail := models.OrderDetail{
			OrderID:   created.ID,
			ProductID: line.ProductID,
			VariantID: line.VariantID,
			Name:      line.Name,
			Size:      line.Size,
			Color:     line.Color,
			UnitPrice: line.UnitPrice,
			LinePrice: line.LinePrice,
			Qty:       line.Qty,
		}
		if err := repo.CreateOrderDetails(ctx, []models.OrderDetail{detail}); err != nil {
			return nil, err
		}
		if err := inventory.AdjustStock(ctx, line.ProductID, line.VariantID, -line.Qty); err != nil {
			return nil, err
		}
	}

	return created, nil
}
