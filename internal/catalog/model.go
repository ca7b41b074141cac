package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/money"
)

// Product is the catalog's read model. The rest of the engine only ever
// consults the VAT rate and the selling price; product CRUD lives outside
// the core.
type Product struct {
	ID           int64
	Reference    string
	Name         string
	SellingPrice decimal.Decimal
	// VATRate is tri-state: a product configured at 0% is zero-rated,
	// a product with no configured rate falls back to the default.
	VATRate   money.VATRate
	CreatedAt time.Time
	UpdatedAt time.Time
}
