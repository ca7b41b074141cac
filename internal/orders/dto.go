package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineRequest is one requested product position. A nil VATRate means the
// rate is absent and the default applies; a zero value is a zero-rated
// line and is preserved as such.
type LineRequest struct {
	ProductID int64 `validate:"required"`
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	VATRate   *decimal.Decimal
	LineOrder int
}

// CreateOrderRequest creates a client order or supplier purchase. The kind
// follows the owning party's kind and is not part of the request.
type CreateOrderRequest struct {
	PartyID      int64 `validate:"required"`
	OrderDate    time.Time
	IncludeVAT   bool
	DeliveryCost *decimal.Decimal
	Lines        []LineRequest `validate:"required,min=1,dive"`
}

// UpdateOrderRequest rewrites the document's lines and delivery settings.
// Nil fields keep their current value; a non-nil Lines slice replaces the
// whole line set.
type UpdateOrderRequest struct {
	OrderDate         *time.Time
	IncludeVAT        *bool
	DeliveryCost      *decimal.Decimal
	ClearDeliveryCost bool
	Lines             *[]LineRequest `validate:"omitempty,min=1,dive"`
}
