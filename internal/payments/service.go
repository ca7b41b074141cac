package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/party"
	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// Service handles payment business logic.
type Service struct {
	repo      Repository
	partyRepo party.Repository
}

// NewService creates a new payment service.
func NewService(repo Repository, partyRepo party.Repository) *Service {
	return &Service{repo: repo, partyRepo: partyRepo}
}

var validMethods = map[Method]bool{
	MethodCash:     true,
	MethodCard:     true,
	MethodCheque:   true,
	MethodTransfer: true,
}

// Create records a payment against a party's balance.
func (s *Service) Create(ctx context.Context, partyID int64, amount decimal.Decimal, method Method, paidAt time.Time, note string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.Validationf("payment amount must be positive")
	}
	if !validMethods[method] {
		return nil, shared.Validationf("unknown payment method %q", method)
	}
	if _, err := s.partyRepo.Get(ctx, partyID); err != nil {
		return nil, fmt.Errorf("verify party: %w", err)
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	id, err := s.repo.Create(ctx, Payment{
		PartyID: partyID,
		Amount:  amount,
		Method:  method,
		PaidAt:  paidAt,
		Note:    note,
	})
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a payment. The ledger recomputes balances from scratch,
// so no counter needs unwinding.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Get returns one payment.
func (s *Service) Get(ctx context.Context, id int64) (*Payment, error) {
	return s.repo.Get(ctx, id)
}

// ListByParty returns a party's payments, oldest first.
func (s *Service) ListByParty(ctx context.Context, partyID int64) ([]Payment, error) {
	return s.repo.ListByParty(ctx, partyID)
}
