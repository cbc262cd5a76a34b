package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderDetail snapshots one cart line at the moment the order was committed.
// Each detail row is created in the same transaction as its stock decrement.
type OrderDetail struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	VariantID uuid.UUID `gorm:"column:variant_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	Size      string    `gorm:"column:size;not null"`
	Color     string    `gorm:"column:color;not null"`
	UnitPrice int64     `gorm:"column:unit_price;not null"`
	LinePrice int64     `gorm:"column:line_price;not null"`
	Qty       int       `gorm:"column:qty;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
