package creditnotes

import "github.com/shopspring/decimal"

// ItemRequest is one requested return quantity. UnitPrice and VATRate are
// optional; absent values fall back to the order line, then the catalog.
// An explicit zero VAT rate is honored as zero-rated.
type ItemRequest struct {
	ProductID int64 `validate:"required"`
	Quantity  decimal.Decimal
	UnitPrice *decimal.Decimal
	VATRate   *decimal.Decimal
}

// CreateCreditNoteRequest creates a credit note. With an order reference
// (OrderID, or OrderNumber as legacy fallback) the note is a return and
// its amount is computed from Items; without one it is a cancellation and
// ManualAmount is required.
type CreateCreditNoteRequest struct {
	PartyID      int64 `validate:"required"`
	OrderID      *int64
	OrderNumber  string
	Items        []ItemRequest `validate:"dive"`
	ManualAmount *decimal.Decimal
}

// UpdateCreditNoteRequest rewrites a note's items (returns) or amount
// (cancellations). The note's party, order reference and type are fixed.
type UpdateCreditNoteRequest struct {
	Items        []ItemRequest `validate:"dive"`
	ManualAmount *decimal.Decimal
}
