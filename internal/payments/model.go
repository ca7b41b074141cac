package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// Method enumerates payment methods.
type Method string

const (
	MethodCash     Method = "CASH"
	MethodCard     Method = "CARD"
	MethodCheque   Method = "CHEQUE"
	MethodTransfer Method = "TRANSFER"
)

// Payment always credits its party's balance: it reduces a client's dues
// and reduces what is owed to a supplier.
type Payment struct {
	ID        int64
	PartyID   int64
	Amount    decimal.Decimal
	Method    Method
	PaidAt    time.Time
	Note      string
	CreatedAt time.Time
}
