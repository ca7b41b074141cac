package party

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// Service handles party account business logic.
type Service struct {
	repo Repository
}

// NewService creates a new party service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) validate(p Party) error {
	if strings.TrimSpace(p.Name) == "" {
		return shared.Validationf("party name is required")
	}
	if p.Kind != KindClient && p.Kind != KindSupplier {
		return shared.Validationf("party kind must be CLIENT or SUPPLIER")
	}
	return nil
}

// Create registers a new client or supplier account.
func (s *Service) Create(ctx context.Context, p Party) (*Party, error) {
	if err := s.validate(p); err != nil {
		return nil, err
	}
	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create party: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Update edits contact details. The kind of an account never changes.
func (s *Service) Update(ctx context.Context, p Party) (*Party, error) {
	existing, err := s.repo.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Kind = existing.Kind
	if err := s.validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update party: %w", err)
	}
	return s.repo.Get(ctx, p.ID)
}

// Delete removes a party. Deletion is rejected while any order, payment or
// credit note references the account; there is no cascade, the history is
// the ledger's source of truth.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return err
	}
	active, err := s.repo.HasActivity(ctx, id)
	if err != nil {
		return fmt.Errorf("check party activity: %w", err)
	}
	if active {
		return shared.Conflictf("party %d has ledger activity and cannot be deleted", id)
	}
	return s.repo.Delete(ctx, id)
}

// Get returns one party.
func (s *Service) Get(ctx context.Context, id int64) (*Party, error) {
	return s.repo.Get(ctx, id)
}

// List returns all parties of a kind, ordered by name.
func (s *Service) List(ctx context.Context, kind Kind) ([]Party, error) {
	return s.repo.List(ctx, kind)
}
