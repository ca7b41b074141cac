package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/money"
	"github.com/entrepot-erp/entrepot-erp/internal/returns"
)

// Kind tells a client order from a supplier purchase. Both carry the same
// line math and both debit their party's balance.
type Kind string

const (
	KindSale     Kind = "SALE"
	KindPurchase Kind = "PURCHASE"
)

// Status enumerates document statuses.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDispatched Status = "DISPATCHED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// Order is a client order or supplier purchase document. Total is derived:
// only the service's write path sets it, always from the current lines
// through the money calculator; readers that cannot trust a stored value
// recompute it from Lines.
type Order struct {
	ID           int64
	Number       string
	PartyID      int64
	Kind         Kind
	Status       Status
	IncludeVAT   bool
	DeliveryCost *decimal.Decimal
	Total        decimal.Decimal
	OrderDate    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Lines        []Line
}

// Line is one product position on a document.
type Line struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	// VATRate is tri-state; an absent rate falls back to the catalog
	// default at calculation time, an explicit zero stays zero.
	VATRate   money.VATRate
	LineOrder int
}

// CalcLines adapts the document's lines for the money calculator.
func (o *Order) CalcLines() []money.Line {
	out := make([]money.Line, 0, len(o.Lines))
	for _, l := range o.Lines {
		out = append(out, money.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice, VAT: l.VATRate})
	}
	return out
}

// ComputedTotal recomputes the grand total from the current lines.
func (o *Order) ComputedTotal() decimal.Decimal {
	var delivery decimal.Decimal
	if o.DeliveryCost != nil {
		delivery = *o.DeliveryCost
	}
	return money.OrderTotal(o.CalcLines(), delivery, o.DeliveryCost != nil, o.IncludeVAT)
}

// Snapshot adapts the document for the return quantity tracker.
func (o *Order) Snapshot() returns.OrderSnapshot {
	snap := returns.OrderSnapshot{ID: o.ID, Number: o.Number}
	for _, l := range o.Lines {
		snap.Lines = append(snap.Lines, returns.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return snap
}

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

var nextStatuses = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusDispatched, StatusDelivered, StatusCancelled},
	StatusInProgress: {StatusDispatched, StatusDelivered, StatusCancelled},
	StatusDispatched: {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range nextStatuses[from] {
		if s == to {
			return true
		}
	}
	return false
}
