package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/minhvodev/storefront-backend/pkg/enums"
)

// Order is the durable record produced by checkout. Gateway-paid orders are
// created completed/packaging in the same transaction that decrements stock;
// COD orders start pending/processing. GatewayTxnID carries a unique index:
// it is the idempotency key that makes duplicate callbacks harmless.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID        uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	VoucherID      *uuid.UUID          `gorm:"column:voucher_id;type:uuid"`
	DiscountAmount int64               `gorm:"column:discount_amount;not null;default:0"`
	Subtotal       int64               `gorm:"column:subtotal;not null"`
	Total          int64               `gorm:"column:total;not null"`
	AmountDue      int64               `gorm:"column:amount_due;not null"`
	ShippingName   string              `gorm:"column:shipping_name;not null"`
	ShippingPhone  string              `gorm:"column:shipping_phone;not null"`
	ShippingAddr   string              `gorm:"column:shipping_addr;not null"`
	Note           *string             `gorm:"column:note"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status         enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'processing'"`
	GatewayTxnID   *string             `gorm:"column:gateway_txn_id;uniqueIndex:uq_orders_gateway_txn_id"`
	GatewayRaw     json.RawMessage     `gorm:"column:gateway_raw;type:jsonb"`
	Details        []OrderDetail       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
