// Package returns computes, per product line of an order, how much
// quantity remains eligible for return given the credit notes already
// issued. The fold is pure and commutative: the result does not depend on
// the iteration order of the notes.
package returns

import "github.com/shopspring/decimal"

// OrderSnapshot is the tracker's read-only view of an order.
type OrderSnapshot struct {
	ID     int64
	Number string
	Lines  []OrderLine
}

// OrderLine carries the originally ordered quantity for one product.
type OrderLine struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// NoteSnapshot is the tracker's read-only view of a credit note.
type NoteSnapshot struct {
	ID          int64
	Return      bool
	Deleted     bool
	OrderID     *int64
	OrderNumber string
	Items       []Item
}

// Item is a returned quantity for one product.
type Item struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// Matches reports whether the note counts against the given order: an
// explicit order reference wins; a note without one falls back to the
// human-readable order number.
func (n NoteSnapshot) Matches(order OrderSnapshot) bool {
	if n.OrderID != nil {
		return *n.OrderID == order.ID
	}
	return n.OrderNumber != "" && n.OrderNumber == order.Number
}

// OrderedQuantities sums the ordered quantity per product. A product may
// appear on several lines; its return ceiling is the sum.
func OrderedQuantities(order OrderSnapshot) map[int64]decimal.Decimal {
	ordered := make(map[int64]decimal.Decimal, len(order.Lines))
	for _, line := range order.Lines {
		ordered[line.ProductID] = ordered[line.ProductID].Add(line.Quantity)
	}
	return ordered
}

// ReturnedQuantities sums, per product, the quantities of every non-deleted
// return note counted against the order. Unlike Remaining it is not clamped
// against the ordered quantities, so callers can detect an overdrawn order.
func ReturnedQuantities(order OrderSnapshot, notes []NoteSnapshot) map[int64]decimal.Decimal {
	return returnedExcluding(order, notes, 0)
}

func returnedExcluding(order OrderSnapshot, notes []NoteSnapshot, excludeNoteID int64) map[int64]decimal.Decimal {
	returned := make(map[int64]decimal.Decimal)
	for _, n := range notes {
		if !n.Return || n.Deleted || n.ID == excludeNoteID {
			continue
		}
		if !n.Matches(order) {
			continue
		}
		for _, item := range n.Items {
			returned[item.ProductID] = returned[item.ProductID].Add(item.Quantity)
		}
	}
	return returned
}

// Remaining computes the remaining returnable quantity per product for the
// order, considering every non-deleted return note that matches it.
func Remaining(order OrderSnapshot, notes []NoteSnapshot) map[int64]decimal.Decimal {
	return RemainingExcluding(order, notes, 0)
}

// RemainingExcluding is Remaining with one note left out of the
// returned-so-far sum. Used when editing a note, which must not count its
// own prior quantities against its new ceiling.
func RemainingExcluding(order OrderSnapshot, notes []NoteSnapshot, excludeNoteID int64) map[int64]decimal.Decimal {
	returned := returnedExcluding(order, notes, excludeNoteID)
	ordered := OrderedQuantities(order)

	remaining := make(map[int64]decimal.Decimal, len(ordered))
	for productID, qty := range ordered {
		left := qty.Sub(returned[productID])
		if left.IsNegative() {
			left = decimal.Zero
		}
		remaining[productID] = left
	}
	return remaining
}
