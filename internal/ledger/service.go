// Package ledger derives party balances by folding the full history of
// orders, purchases, payments and credit notes on every call. Nothing is
// cached and no running counter exists, so the reported balance can always
// be recomputed from scratch and can never drift.
package ledger

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/creditnotes"
	"github.com/entrepot-erp/entrepot-erp/internal/money"
	"github.com/entrepot-erp/entrepot-erp/internal/orders"
	"github.com/entrepot-erp/entrepot-erp/internal/party"
	"github.com/entrepot-erp/entrepot-erp/internal/payments"
	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// History is everything the fold consumes for one party. All three streams
// must come from one consistent snapshot: a payment visible without its
// credit note, or an order without its lines, folds into a wrong balance.
type History struct {
	Orders   []orders.Order
	Payments []payments.Payment
	Notes    []creditnotes.CreditNote
}

// HistorySource loads a party's complete movement history atomically.
type HistorySource interface {
	History(ctx context.Context, partyID int64) (*History, error)
}

// Service is the ledger engine. It is a read-only consumer of the history
// and needs no locking of its own, only a consistent read.
type Service struct {
	source    HistorySource
	partyRepo party.Repository
	logger    *slog.Logger
}

// NewService creates a new ledger service.
func NewService(source HistorySource, partyRepo party.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		source:    source,
		partyRepo: partyRepo,
		logger:    logger,
	}
}

func (s *Service) load(ctx context.Context, partyID int64) (*History, error) {
	if _, err := s.partyRepo.Get(ctx, partyID); err != nil {
		return nil, err
	}
	h, err := s.source.History(ctx, partyID)
	if err != nil {
		return nil, fmt.Errorf("load party %d history: %w", partyID, err)
	}
	return h, nil
}

// orderDebit recomputes the document total from its lines and cross-checks
// the stored value: a divergence means a second write path set the total
// and the ledger cannot be trusted until it is repaired. The comparison is
// on the 2-place rounding the write path stores, since the raw accumulated
// sum carries more precision than the column keeps.
func (s *Service) orderDebit(o *orders.Order) (decimal.Decimal, error) {
	computed := money.Round2(o.ComputedTotal())
	if !computed.Equal(o.Total) {
		s.logger.Error("stored order total diverges from computed total",
			"order", o.Number, "stored", o.Total.String(), "computed", computed.String())
		return decimal.Zero, shared.Consistencyf("order %s: stored total %s != computed %s", o.Number, o.Total, computed)
	}
	return computed, nil
}

func (s *Service) fold(h *History) ([]StatementLine, error) {
	var lines []StatementLine

	for i := range h.Orders {
		o := &h.Orders[i]
		if o.Status == orders.StatusCancelled {
			continue
		}
		debit, err := s.orderDebit(o)
		if err != nil {
			return nil, err
		}
		kind := EntryOrder
		if o.Kind == orders.KindPurchase {
			kind = EntryPurchase
		}
		lines = append(lines, StatementLine{Date: o.OrderDate, Kind: kind, Reference: o.Number, Amount: debit})
	}

	for _, p := range h.Payments {
		if !p.Amount.IsPositive() {
			s.logger.Error("non-positive payment amount in history", "payment", p.ID, "amount", p.Amount.String())
			return nil, shared.Consistencyf("payment %d: non-positive amount %s", p.ID, p.Amount)
		}
		lines = append(lines, StatementLine{Date: p.PaidAt, Kind: EntryPayment, Reference: string(p.Method), Amount: p.Amount.Neg()})
	}

	for i := range h.Notes {
		n := &h.Notes[i]
		if n.IsDeleted {
			continue
		}
		if n.TotalAmount.IsNegative() {
			s.logger.Error("negative credit note amount in history", "note", n.ID, "amount", n.TotalAmount.String())
			return nil, shared.Consistencyf("credit note %d: negative amount %s", n.ID, n.TotalAmount)
		}
		lines = append(lines, StatementLine{Date: n.CreatedAt, Kind: EntryCreditNote, Reference: n.PublicID.String(), Amount: n.TotalAmount.Neg()})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.Before(lines[j].Date)
		}
		return lines[i].Reference < lines[j].Reference
	})
	return lines, nil
}

// Balance reports the party's outstanding amount: what the party owes us
// (clients) or what we owe them (suppliers). Positive means open dues.
func (s *Service) Balance(ctx context.Context, partyID int64) (decimal.Decimal, error) {
	h, err := s.load(ctx, partyID)
	if err != nil {
		return decimal.Zero, err
	}
	lines, err := s.fold(h)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, line := range lines {
		balance = balance.Add(line.Amount)
	}
	return balance, nil
}

// Statement enumerates the party's signed movements, oldest first, as a
// rewindable sequence over one consistent snapshot. The filter applies
// lazily during iteration; re-ranging the sequence replays it unchanged.
func (s *Service) Statement(ctx context.Context, partyID int64, filter StatementFilter) (iter.Seq[StatementLine], error) {
	h, err := s.load(ctx, partyID)
	if err != nil {
		return nil, err
	}
	lines, err := s.fold(h)
	if err != nil {
		return nil, err
	}
	return func(yield func(StatementLine) bool) {
		for _, line := range lines {
			if !filter.keeps(line) {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}, nil
}
