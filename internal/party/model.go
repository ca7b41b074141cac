package party

import "time"

// Kind distinguishes the two account sides. The ledger math is identical
// for both: documents debit, payments and credit notes credit.
type Kind string

const (
	KindClient   Kind = "CLIENT"
	KindSupplier Kind = "SUPPLIER"
)

// Party is a client or supplier account. It owns its stream of orders or
// purchases, payments and credit notes; the ledger engine folds over that
// history, it is never stored as a running total.
type Party struct {
	ID        int64
	Kind      Kind
	Name      string
	Email     string
	Phone     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
