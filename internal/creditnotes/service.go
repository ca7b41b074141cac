package creditnotes

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/catalog"
	"github.com/entrepot-erp/entrepot-erp/internal/money"
	"github.com/entrepot-erp/entrepot-erp/internal/party"
	"github.com/entrepot-erp/entrepot-erp/internal/returns"
	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// Service is the credit note authority: the only writer of credit notes
// and of the quantity-reconciliation state they carry. Every write against
// an order's return quantities happens under that order's lock, with the
// remaining ceiling recomputed inside the same transaction, so two
// concurrent returns can never oversell the remaining quantity.
type Service struct {
	repo      Repository
	catalog   catalog.Repository
	partyRepo party.Repository
	validator *validator.Validate
}

// NewService creates a new credit note service.
func NewService(repo Repository, catalogRepo catalog.Repository, partyRepo party.Repository) *Service {
	return &Service{
		repo:      repo,
		catalog:   catalogRepo,
		partyRepo: partyRepo,
		validator: validator.New(),
	}
}

func trackerOrder(ref *OrderRef) returns.OrderSnapshot {
	snap := returns.OrderSnapshot{ID: ref.ID, Number: ref.Number}
	for _, l := range ref.Lines {
		snap.Lines = append(snap.Lines, returns.OrderLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return snap
}

func hasPositiveItem(items []ItemRequest) bool {
	for _, item := range items {
		if item.Quantity.IsPositive() {
			return true
		}
	}
	return false
}

// resolveOrder finds the order a return references: the explicit id wins;
// a bare order number is a legacy fallback that must match exactly one of
// the party's orders, anything else demands an explicit id.
func resolveOrder(ctx context.Context, tx TxRepository, partyID int64, orderID *int64, orderNumber string) (*OrderRef, error) {
	if orderID != nil {
		ref, err := tx.GetOrderRef(ctx, *orderID)
		if err != nil {
			return nil, fmt.Errorf("get order %d: %w", *orderID, err)
		}
		if ref.PartyID != partyID {
			return nil, shared.Validationf("order %s does not belong to party %d", ref.Number, partyID)
		}
		return ref, nil
	}

	refs, err := tx.FindOrderRefsByNumber(ctx, partyID, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("resolve order number %q: %w", orderNumber, err)
	}
	switch len(refs) {
	case 0:
		return nil, shared.ErrNotFound
	case 1:
		return &refs[0], nil
	default:
		return nil, shared.Conflictf("order number %q matches %d orders, an explicit order id is required", orderNumber, len(refs))
	}
}

// priceItems validates requested quantities against the remaining ceiling
// and prices each item: unit price falls back from the item to the order
// line to the catalog selling price; the VAT rate falls back from the item
// to the order line to the catalog rate, an explicit zero staying zero.
func (s *Service) priceItems(ctx context.Context, ref *OrderRef, remaining map[int64]decimal.Decimal, reqs []ItemRequest) ([]ReturnItem, decimal.Decimal, error) {
	lineByProduct := make(map[int64]OrderRefLine, len(ref.Lines))
	for _, l := range ref.Lines {
		if _, ok := lineByProduct[l.ProductID]; !ok {
			lineByProduct[l.ProductID] = l
		}
	}

	var (
		items     []ReturnItem
		calcLines []money.Line
	)
	requested := make(map[int64]decimal.Decimal)
	for i, req := range reqs {
		if req.Quantity.IsNegative() {
			return nil, decimal.Zero, shared.Validationf("item %d: quantity cannot be negative", i+1)
		}
		if req.Quantity.IsZero() {
			continue
		}
		line, onOrder := lineByProduct[req.ProductID]
		if !onOrder {
			return nil, decimal.Zero, shared.Validationf("product %d is not on order %s", req.ProductID, ref.Number)
		}

		requested[req.ProductID] = requested[req.ProductID].Add(req.Quantity)
		if requested[req.ProductID].GreaterThan(remaining[req.ProductID]) {
			return nil, decimal.Zero, shared.Conflictf(
				"product %d on order %s: requested %s exceeds remaining returnable %s",
				req.ProductID, ref.Number, requested[req.ProductID], remaining[req.ProductID])
		}

		unitPrice := line.UnitPrice
		if req.UnitPrice != nil {
			unitPrice = *req.UnitPrice
		} else if unitPrice.IsZero() {
			price, err := s.catalog.GetSellingPrice(ctx, req.ProductID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("price product %d: %w", req.ProductID, err)
			}
			unitPrice = price
		}

		rate := money.NoRate()
		if req.VATRate != nil {
			rate = money.RateOf(*req.VATRate)
		}
		rate = rate.Or(line.VATRate)
		if !rate.Set() {
			catalogRate, err := s.catalog.GetVATRate(ctx, req.ProductID)
			if err != nil {
				return nil, decimal.Zero, fmt.Errorf("vat rate for product %d: %w", req.ProductID, err)
			}
			rate = catalogRate
		}

		items = append(items, ReturnItem{
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			UnitPrice: unitPrice,
			VATRate:   rate,
		})
		calcLines = append(calcLines, money.Line{Quantity: req.Quantity, UnitPrice: unitPrice, VAT: rate})
	}

	// Accumulate at full precision, round the stored total once.
	total := money.Round2(money.OrderTotal(calcLines, decimal.Zero, false, ref.IncludeVAT))
	return items, total, nil
}

// Create validates and commits a new credit note.
func (s *Service) Create(ctx context.Context, req CreateCreditNoteRequest) (*CreditNote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, shared.Validationf("invalid credit note request: %v", err)
	}
	if _, err := s.partyRepo.Get(ctx, req.PartyID); err != nil {
		return nil, fmt.Errorf("verify party: %w", err)
	}

	hasOrderRef := req.OrderID != nil || req.OrderNumber != ""
	if hasOrderRef {
		if !hasPositiveItem(req.Items) {
			return nil, shared.Validationf("a return requires at least one item with positive quantity")
		}
	} else {
		if req.ManualAmount == nil || !req.ManualAmount.IsPositive() {
			return nil, shared.Validationf("a credit note without an order requires a positive manual amount")
		}
	}

	note := CreditNote{
		PublicID: uuid.New(),
		PartyID:  req.PartyID,
	}

	var noteID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if !hasOrderRef {
			note.Type = TypeCancellation
			note.TotalAmount = *req.ManualAmount
			id, err := tx.Insert(ctx, note)
			if err != nil {
				return err
			}
			noteID = id
			return nil
		}

		ref, err := resolveOrder(ctx, tx, req.PartyID, req.OrderID, req.OrderNumber)
		if err != nil {
			return err
		}
		orderID := ref.ID
		if err := tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		// Reload the order now that the lock is held. The resolve above ran
		// before the lock was granted and may predate the previous holder's
		// commit.
		ref, err = tx.GetOrderRef(ctx, orderID)
		if err != nil {
			return fmt.Errorf("reload order %d: %w", orderID, err)
		}

		existing, err := tx.ListByOrder(ctx, ref.ID, ref.Number)
		if err != nil {
			return fmt.Errorf("list notes for order %s: %w", ref.Number, err)
		}
		remaining := returns.Remaining(trackerOrder(ref), TrackerSnapshots(existing))

		items, total, err := s.priceItems(ctx, ref, remaining, req.Items)
		if err != nil {
			return err
		}

		note.Type = TypeReturn
		note.OrderID = &ref.ID
		note.OrderNumber = ref.Number
		note.Items = items
		note.TotalAmount = total

		id, err := tx.Insert(ctx, note)
		if err != nil {
			return err
		}
		noteID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, noteID)
}

// Update revalidates and rewrites a committed note. The remaining ceiling
// is recomputed excluding the note itself, otherwise its own prior
// quantities would permanently shrink its ceiling.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCreditNoteRequest) (*CreditNote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, shared.Validationf("invalid credit note update: %v", err)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		note, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if note.IsDeleted {
			return shared.Conflictf("credit note %d is deleted and cannot be modified", id)
		}

		if note.Type == TypeCancellation {
			if req.ManualAmount == nil || !req.ManualAmount.IsPositive() {
				return shared.Validationf("a cancellation note requires a positive manual amount")
			}
			note.TotalAmount = *req.ManualAmount
			note.Items = nil
			return tx.Update(ctx, *note)
		}

		if !hasPositiveItem(req.Items) {
			return shared.Validationf("a return requires at least one item with positive quantity")
		}

		ref, err := resolveOrder(ctx, tx, note.PartyID, note.OrderID, note.OrderNumber)
		if err != nil {
			return err
		}
		orderID := ref.ID
		if err := tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		ref, err = tx.GetOrderRef(ctx, orderID)
		if err != nil {
			return fmt.Errorf("reload order %d: %w", orderID, err)
		}

		existing, err := tx.ListByOrder(ctx, ref.ID, ref.Number)
		if err != nil {
			return fmt.Errorf("list notes for order %s: %w", ref.Number, err)
		}
		remaining := returns.RemainingExcluding(trackerOrder(ref), TrackerSnapshots(existing), note.ID)

		items, total, err := s.priceItems(ctx, ref, remaining, req.Items)
		if err != nil {
			return err
		}

		note.Items = items
		note.TotalAmount = total
		return tx.Update(ctx, *note)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.Get(ctx, id)
}

// Delete soft-deletes a note. The tracker filters on the flag, so the
// note's quantities become returnable again the moment the transaction
// commits. Deleting an already deleted note is a no-op.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		note, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if note.IsDeleted {
			return nil
		}
		if note.OrderID != nil {
			if err := tx.LockOrder(ctx, *note.OrderID); err != nil {
				return err
			}
		}
		return tx.SoftDelete(ctx, id)
	})
}

// Get returns one credit note with its items.
func (s *Service) Get(ctx context.Context, id int64) (*CreditNote, error) {
	return s.repo.Get(ctx, id)
}

// ListByParty returns a party's credit notes, soft-deleted ones included.
func (s *Service) ListByParty(ctx context.Context, partyID int64) ([]CreditNote, error) {
	return s.repo.ListByParty(ctx, partyID)
}

// RemainingReturnable reports, per product, how much of the order can
// still be returned. Pure read; two calls with no intervening writes
// return identical results.
func (s *Service) RemainingReturnable(ctx context.Context, orderID int64) (map[int64]decimal.Decimal, error) {
	ref, err := s.repo.GetOrderRef(ctx, orderID)
	if err != nil {
		return nil, err
	}
	notes, err := s.repo.ListByOrder(ctx, ref.ID, ref.Number)
	if err != nil {
		return nil, err
	}
	order := trackerOrder(ref)
	snaps := TrackerSnapshots(notes)

	// An order can only be overdrawn if the invariant was broken outside
	// this authority. Surface it instead of silently clamping to zero.
	ordered := returns.OrderedQuantities(order)
	for productID, qty := range returns.ReturnedQuantities(order, snaps) {
		if qty.GreaterThan(ordered[productID]) {
			return nil, shared.Consistencyf("order %s: %s of product %d returned against %s ordered", ref.Number, qty, productID, ordered[productID])
		}
	}
	return returns.Remaining(order, snaps), nil
}
