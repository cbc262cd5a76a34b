package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant carries the per-size/color stock counter. StockQty is only
// ever mutated through signed-delta updates so concurrent order
// materialization and cancellation cannot lose writes.
type ProductVariant struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Size      string    `gorm:"column:size;not null"`
	Color     string    `gorm:"column:color;not null"`
	Price     int64     `gorm:"column:price;not null"`
	StockQty  int       `gorm:"column:stock_qty;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
