package payments

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrepot-erp/entrepot-erp/internal/party"
	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

type mockRepository struct {
	payments map[int64]*Payment
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{payments: make(map[int64]*Payment), nextID: 1}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepository) ListByParty(ctx context.Context, partyID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range m.payments {
		if p.PartyID == partyID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepository) Create(ctx context.Context, p Payment) (int64, error) {
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now()
	m.payments[p.ID] = &p
	return p.ID, nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.payments[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.payments, id)
	return nil
}

type mockPartyRepo struct{}

func (m *mockPartyRepo) Get(ctx context.Context, id int64) (*party.Party, error) {
	if id != 1 {
		return nil, shared.ErrNotFound
	}
	return &party.Party{ID: 1, Kind: party.KindClient, Name: "Acme Retail"}, nil
}

func (m *mockPartyRepo) List(ctx context.Context, kind party.Kind) ([]party.Party, error) {
	return nil, nil
}
func (m *mockPartyRepo) Create(ctx context.Context, p party.Party) (int64, error) { return 0, nil }
func (m *mockPartyRepo) Update(ctx context.Context, p party.Party) error          { return nil }
func (m *mockPartyRepo) Delete(ctx context.Context, id int64) error               { return nil }
func (m *mockPartyRepo) HasActivity(ctx context.Context, id int64) (bool, error)  { return false, nil }

func TestCreatePayment(t *testing.T) {
	svc := NewService(newMockRepository(), &mockPartyRepo{})

	p, err := svc.Create(context.Background(), 1, decimal.NewFromInt(40), MethodTransfer, time.Time{}, "deposit")
	require.NoError(t, err)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(40)))
	assert.False(t, p.PaidAt.IsZero())
}

func TestCreatePaymentRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(newMockRepository(), &mockPartyRepo{})

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
		_, err := svc.Create(context.Background(), 1, amount, MethodCash, time.Now(), "")
		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
	}
}

func TestCreatePaymentRejectsUnknownMethod(t *testing.T) {
	svc := NewService(newMockRepository(), &mockPartyRepo{})

	_, err := svc.Create(context.Background(), 1, decimal.NewFromInt(10), Method("IOU"), time.Now(), "")
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestCreatePaymentUnknownParty(t *testing.T) {
	svc := NewService(newMockRepository(), &mockPartyRepo{})

	_, err := svc.Create(context.Background(), 99, decimal.NewFromInt(10), MethodCash, time.Now(), "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeletePayment(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, &mockPartyRepo{})
	p, err := svc.Create(context.Background(), 1, decimal.NewFromInt(10), MethodCash, time.Now(), "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), p.ID))
	assert.ErrorIs(t, svc.Delete(context.Background(), p.ID), shared.ErrNotFound)
}
