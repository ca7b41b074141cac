package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a statement line.
type EntryKind string

const (
	EntryOrder      EntryKind = "ORDER"
	EntryPurchase   EntryKind = "PURCHASE"
	EntryPayment    EntryKind = "PAYMENT"
	EntryCreditNote EntryKind = "CREDIT_NOTE"
)

// StatementLine is one signed movement on a party's account: debits
// positive, credits negative. The engine only enumerates; rendering and
// export live outside the core.
type StatementLine struct {
	Date      time.Time
	Kind      EntryKind
	Reference string
	Amount    decimal.Decimal
}

// StatementFilter narrows a statement. Zero time bounds are open; an
// empty kind set keeps every kind.
type StatementFilter struct {
	From  time.Time
	To    time.Time
	Kinds []EntryKind
}

func (f StatementFilter) keeps(line StatementLine) bool {
	if !f.From.IsZero() && line.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && line.Date.After(f.To) {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == line.Kind {
			return true
		}
	}
	return false
}
