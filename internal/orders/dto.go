package orders

import (
	"github.com/google/uuid"

	pkgerrors "github.com/minhvodev/storefront-backend/pkg/errors"
)

// CartLine is one immutable cart entry submitted at checkout. Name, size and
// color are snapshots; the catalog may change after the order is placed.
type CartLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Size      string    `json:"size" validate:"required"`
	Color     string    `json:"color" validate:"required"`
	UnitPrice int64     `json:"unit_price" validate:"gt=0"`
	LinePrice int64     `json:"line_price" validate:"gt=0"`
	Qty       int       `json:"qty" validate:"gt=0"`
}

// CheckoutInput carries everything needed to turn a cart into an order. The
// voucher id and discount arrive pre-validated by the voucher service.
type CheckoutInput struct {
	Lines          []CartLine `json:"lines" validate:"required,min=1,dive"`
	ShippingName   string     `json:"shipping_name" validate:"required"`
	ShippingPhone  string     `json:"shipping_phone" validate:"required"`
	ShippingAddr   string     `json:"shipping_addr" validate:"required"`
	Note           *string    `json:"note,omitempty"`
	VoucherID      *uuid.UUID `json:"voucher_id,omitempty"`
	DiscountAmount int64      `json:"discount_amount" validate:"gte=0"`
	Subtotal       int64      `json:"subtotal" validate:"gt=0"`
	Total          int64      `json:"total" validate:"gt=0"`
	AmountDue      int64      `json:"amount_due" validate:"gt=0"`
}

// Validate cross-checks the client-submitted totals against the lines so a
// tampered payload cannot stage an order for less than its cart is worth.
func (in CheckoutInput) Validate() error {
	var subtotal int64
	for i, line := range in.Lines {
		if line.LinePrice != line.UnitPrice*int64(line.Qty) {
			return pkgerrors.New(pkgerrors.CodeValidation, "line price does not match unit price and quantity").
				WithDetails(map[string]any{"line": i})
		}
		subtotal += line.LinePrice
	}
	if subtotal != in.Subtotal {
		return pkgerrors.New(pkgerrors.CodeValidation, "subtotal does not match cart lines")
	}
	if in.Total != in.Subtotal-in.DiscountAmount {
		return pkgerrors.New(pkgerrors.CodeValidation, "total does not match subtotal and discount")
	}
	if in.AmountDue != in.Total {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount due does not match total")
	}
	return nil
}
