package creditnotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/money"
	"github.com/entrepot-erp/entrepot-erp/internal/returns"
)

// Type enumerates credit note types.
type Type string

const (
	// TypeCancellation credits an amount against the party without
	// touching return quantities.
	TypeCancellation Type = "CANCELLATION"
	// TypeReturn credits specific line quantities of an order and is
	// counted by the return quantity tracker.
	TypeReturn Type = "RETURN"
)

// CreditNote reduces its party's balance. Lifecycle is
// Draft -> Committed -> Updated* -> Deleted (soft); a deleted note is never
// resurrected, a replacement note is created instead.
type CreditNote struct {
	ID       int64
	PublicID uuid.UUID
	PartyID  int64
	Type     Type
	// OrderID links a return to its order. Legacy notes may carry only
	// the human-readable order number instead.
	OrderID     *int64
	OrderNumber string
	Items       []ReturnItem
	TotalAmount decimal.Decimal
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReturnItem is one returned product quantity on a return note.
type ReturnItem struct {
	ID           int64
	CreditNoteID int64
	ProductID    int64
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	// VATRate as priced on the note; absent means the order line's rate,
	// then the catalog's, then the default applied at pricing time.
	VATRate money.VATRate
}

// TrackerSnapshot adapts the note for the return quantity tracker.
func (n *CreditNote) TrackerSnapshot() returns.NoteSnapshot {
	snap := returns.NoteSnapshot{
		ID:          n.ID,
		Return:      n.Type == TypeReturn,
		Deleted:     n.IsDeleted,
		OrderID:     n.OrderID,
		OrderNumber: n.OrderNumber,
	}
	for _, item := range n.Items {
		snap.Items = append(snap.Items, returns.Item{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return snap
}

// TrackerSnapshots adapts a batch of notes.
func TrackerSnapshots(notes []CreditNote) []returns.NoteSnapshot {
	out := make([]returns.NoteSnapshot, 0, len(notes))
	for i := range notes {
		out = append(out, notes[i].TrackerSnapshot())
	}
	return out
}

// SnapshotSource exposes an order's notes as tracker snapshots, for other
// domains that must respect the quantities already returned.
type SnapshotSource struct {
	Repo Repository
}

func (s SnapshotSource) ListByOrder(ctx context.Context, orderID int64, orderNumber string) ([]returns.NoteSnapshot, error) {
	notes, err := s.Repo.ListByOrder(ctx, orderID, orderNumber)
	if err != nil {
		return nil, err
	}
	return TrackerSnapshots(notes), nil
}
