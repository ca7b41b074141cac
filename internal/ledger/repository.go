package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entrepot-erp/entrepot-erp/internal/creditnotes"
	"github.com/entrepot-erp/entrepot-erp/internal/orders"
	"github.com/entrepot-erp/entrepot-erp/internal/payments"
	"github.com/entrepot-erp/entrepot-erp/internal/platform/db"
)

var _ HistorySource = (*pgHistorySource)(nil)

type pgHistorySource struct {
	pool *pgxpool.Pool
}

// NewHistorySource builds the pgx-backed history loader. It reads all three
// streams in one RepeatableRead transaction, so the fold sees a single
// point-in-time snapshot of the party's movements. The reads are sequential
// because a pgx transaction is bound to one connection.
func NewHistorySource(pool *pgxpool.Pool) HistorySource {
	return &pgHistorySource{pool: pool}
}

func (s *pgHistorySource) History(ctx context.Context, partyID int64) (*History, error) {
	var h History
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		if h.Orders, err = orders.ListByPartyTx(ctx, tx, partyID); err != nil {
			return err
		}
		if h.Payments, err = payments.ListByPartyTx(ctx, tx, partyID); err != nil {
			return err
		}
		h.Notes, err = creditnotes.ListByPartyTx(ctx, tx, partyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}
