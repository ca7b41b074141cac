package orders

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/money"
	"github.com/entrepot-erp/entrepot-erp/internal/party"
	"github.com/entrepot-erp/entrepot-erp/internal/returns"
	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// NoteSource lists the return snapshots already counted against an order.
// Line edits must not pull an ordered quantity below what those notes have
// already returned.
type NoteSource interface {
	ListByOrder(ctx context.Context, orderID int64, orderNumber string) ([]returns.NoteSnapshot, error)
}

// Service owns the only write path that sets a document's total, so the
// stored value can never diverge from the calculator's output for the
// current lines.
type Service struct {
	repo      Repository
	partyRepo party.Repository
	notes     NoteSource
	validator *validator.Validate
}

// NewService creates a new order service.
func NewService(repo Repository, partyRepo party.Repository, noteSrc NoteSource) *Service {
	return &Service{
		repo:      repo,
		partyRepo: partyRepo,
		notes:     noteSrc,
		validator: validator.New(),
	}
}

func buildLines(orderID int64, reqs []LineRequest) ([]Line, error) {
	lines := make([]Line, 0, len(reqs))
	for i, lr := range reqs {
		if !lr.Quantity.IsPositive() {
			return nil, shared.Validationf("line %d: quantity must be positive", i+1)
		}
		if lr.UnitPrice.IsNegative() {
			return nil, shared.Validationf("line %d: unit price cannot be negative", i+1)
		}
		line := Line{
			OrderID:   orderID,
			ProductID: lr.ProductID,
			Quantity:  lr.Quantity,
			UnitPrice: lr.UnitPrice,
			LineOrder: lr.LineOrder,
		}
		if lr.VATRate != nil {
			line.VATRate = money.RateOf(*lr.VATRate)
		}
		if line.LineOrder == 0 {
			line.LineOrder = i + 1
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func validateDelivery(cost *decimal.Decimal) error {
	if cost != nil && cost.IsNegative() {
		return shared.Validationf("delivery cost cannot be negative")
	}
	return nil
}

// Create records a new order or purchase. The document kind follows the
// owning party's kind.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, shared.Validationf("invalid order request: %v", err)
	}
	if err := validateDelivery(req.DeliveryCost); err != nil {
		return nil, err
	}

	owner, err := s.partyRepo.Get(ctx, req.PartyID)
	if err != nil {
		return nil, fmt.Errorf("verify party: %w", err)
	}
	kind := KindSale
	if owner.Kind == party.KindSupplier {
		kind = KindPurchase
	}

	lines, err := buildLines(0, req.Lines)
	if err != nil {
		return nil, err
	}

	order := Order{
		PartyID:      req.PartyID,
		Kind:         kind,
		Status:       StatusPending,
		IncludeVAT:   req.IncludeVAT,
		DeliveryCost: req.DeliveryCost,
		OrderDate:    req.OrderDate,
		Lines:        lines,
	}
	order.Total = money.Round2(order.ComputedTotal())

	var orderID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.GenerateNumber(ctx, kind, req.OrderDate)
		if err != nil {
			return err
		}
		order.Number = number

		id, err := tx.Create(ctx, order)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		orderID = id

		for _, line := range lines {
			line.OrderID = id
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, orderID)
}

// Update rewrites the document's lines or delivery settings and recomputes
// the stored total in the same transaction. Terminal documents are frozen.
func (s *Service) Update(ctx context.Context, id int64, req UpdateOrderRequest) (*Order, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, shared.Validationf("invalid order update: %v", err)
	}
	if err := validateDelivery(req.DeliveryCost); err != nil {
		return nil, err
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		// Taken before any read: credit note writers hold the same lock,
		// so the returned-quantity fold below cannot race a return.
		if err := tx.LockOrder(ctx, id); err != nil {
			return err
		}
		existing, err := tx.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if existing.Status.Terminal() {
			return shared.Conflictf("order %s is %s and cannot be modified", existing.Number, existing.Status)
		}

		if req.OrderDate != nil {
			existing.OrderDate = *req.OrderDate
		}
		if req.IncludeVAT != nil {
			existing.IncludeVAT = *req.IncludeVAT
		}
		if req.ClearDeliveryCost {
			existing.DeliveryCost = nil
		} else if req.DeliveryCost != nil {
			existing.DeliveryCost = req.DeliveryCost
		}

		if req.Lines != nil {
			lines, err := buildLines(id, *req.Lines)
			if err != nil {
				return err
			}
			existing.Lines = lines
			if err := s.checkReturnedCeiling(ctx, existing); err != nil {
				return err
			}
			if err := tx.DeleteLines(ctx, id); err != nil {
				return err
			}
			for _, line := range lines {
				if _, err := tx.InsertLine(ctx, line); err != nil {
					return err
				}
			}
		}

		existing.Total = money.Round2(existing.ComputedTotal())
		return tx.Update(ctx, *existing)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, id)
}

// checkReturnedCeiling rejects a line set that drops an ordered quantity
// below what non-deleted return notes have already credited back.
func (s *Service) checkReturnedCeiling(ctx context.Context, o *Order) error {
	notes, err := s.notes.ListByOrder(ctx, o.ID, o.Number)
	if err != nil {
		return fmt.Errorf("list return notes for order %s: %w", o.Number, err)
	}
	snap := o.Snapshot()
	ordered := returns.OrderedQuantities(snap)
	for productID, qty := range returns.ReturnedQuantities(snap, notes) {
		if qty.GreaterThan(ordered[productID]) {
			return shared.Conflictf(
				"product %d on order %s: %s already returned, ordered quantity cannot drop below that",
				productID, o.Number, qty)
		}
	}
	return nil
}

// UpdateStatus advances the document through its lifecycle. Cancelled
// documents drop out of the ledger's debit fold; their lines stay, credit
// notes may still reference them.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status) (*Order, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if !CanTransition(existing.Status, to) {
			return shared.Conflictf("order %s cannot move from %s to %s", existing.Number, existing.Status, to)
		}
		return tx.UpdateStatus(ctx, id, to)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Get returns one document with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.repo.Get(ctx, id)
}

// ComputeTotal recomputes a document's grand total from its lines without
// touching storage. Exposed for callers that render totals.
func (s *Service) ComputeTotal(o *Order) decimal.Decimal {
	return o.ComputedTotal()
}

// ListByParty returns a party's documents with lines, oldest first.
func (s *Service) ListByParty(ctx context.Context, partyID int64) ([]Order, error) {
	return s.repo.ListByParty(ctx, partyID)
}
