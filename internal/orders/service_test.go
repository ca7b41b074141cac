package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrepot-erp/entrepot-erp/internal/party"
	"github.com/entrepot-erp/entrepot-erp/internal/returns"
	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// ============================================================================
// MOCK REPOSITORIES
// ============================================================================

type mockRepository struct {
	orders     map[int64]*Order
	orderLines map[int64][]Line
	nextID     int64
	nextSeq    int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orders:     make(map[int64]*Order),
		orderLines: make(map[int64][]Line),
		nextID:     1,
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &mockTxRepo{mock: m})
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *o
	cp.Lines = append([]Line(nil), m.orderLines[id]...)
	return &cp, nil
}

func (m *mockRepository) ListByParty(ctx context.Context, partyID int64) ([]Order, error) {
	var out []Order
	for id, o := range m.orders {
		if o.PartyID == partyID {
			cp := *o
			cp.Lines = append([]Line(nil), m.orderLines[id]...)
			out = append(out, cp)
		}
	}
	return out, nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) LockOrder(ctx context.Context, orderID int64) error { return nil }

func (t *mockTxRepo) Get(ctx context.Context, id int64) (*Order, error) {
	return t.mock.Get(ctx, id)
}

func (t *mockTxRepo) Create(ctx context.Context, o Order) (int64, error) {
	o.ID = t.mock.nextID
	t.mock.nextID++
	o.Lines = nil
	t.mock.orders[o.ID] = &o
	return o.ID, nil
}

func (t *mockTxRepo) Update(ctx context.Context, o Order) error {
	existing, ok := t.mock.orders[o.ID]
	if !ok {
		return shared.ErrNotFound
	}
	o.Lines = nil
	o.Status = existing.Status
	t.mock.orders[o.ID] = &o
	return nil
}

func (t *mockTxRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	o, ok := t.mock.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	o.Status = status
	return nil
}

func (t *mockTxRepo) InsertLine(ctx context.Context, line Line) (int64, error) {
	line.ID = t.mock.nextID
	t.mock.nextID++
	t.mock.orderLines[line.OrderID] = append(t.mock.orderLines[line.OrderID], line)
	return line.ID, nil
}

func (t *mockTxRepo) DeleteLines(ctx context.Context, orderID int64) error {
	delete(t.mock.orderLines, orderID)
	return nil
}

func (t *mockTxRepo) GenerateNumber(ctx context.Context, kind Kind, date time.Time) (string, error) {
	t.mock.nextSeq++
	prefix := "ORD"
	if kind == KindPurchase {
		prefix = "PUR"
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, date.Format("2006"), t.mock.nextSeq), nil
}

type mockPartyRepo struct {
	parties map[int64]*party.Party
}

func (m *mockPartyRepo) Get(ctx context.Context, id int64) (*party.Party, error) {
	p, ok := m.parties[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockPartyRepo) List(ctx context.Context, kind party.Kind) ([]party.Party, error) {
	return nil, nil
}
func (m *mockPartyRepo) Create(ctx context.Context, p party.Party) (int64, error) { return 0, nil }
func (m *mockPartyRepo) Update(ctx context.Context, p party.Party) error          { return nil }
func (m *mockPartyRepo) Delete(ctx context.Context, id int64) error               { return nil }
func (m *mockPartyRepo) HasActivity(ctx context.Context, id int64) (bool, error)  { return false, nil }

type mockNoteSource struct {
	notes []returns.NoteSnapshot
}

func (m *mockNoteSource) ListByOrder(ctx context.Context, orderID int64, orderNumber string) ([]returns.NoteSnapshot, error) {
	return m.notes, nil
}

func newTestService() (*Service, *mockRepository, *mockNoteSource) {
	repo := newMockRepository()
	parties := &mockPartyRepo{parties: map[int64]*party.Party{
		1: {ID: 1, Kind: party.KindClient, Name: "Acme Retail"},
		2: {ID: 2, Kind: party.KindSupplier, Name: "Grossiste Nord"},
	}}
	notes := &mockNoteSource{}
	return NewService(repo, parties, notes), repo, notes
}

func d(v string) decimal.Decimal {
	out, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return out
}

func dp(v string) *decimal.Decimal {
	out := d(v)
	return &out
}

// ============================================================================
// TESTS
// ============================================================================

func TestCreateOrderComputesTotal(t *testing.T) {
	svc, _, _ := newTestService()

	o, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:    1,
		OrderDate:  time.Now(),
		IncludeVAT: true,
		Lines: []LineRequest{
			{ProductID: 7, Quantity: d("10"), UnitPrice: d("5"), VATRate: dp("20")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, KindSale, o.Kind)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, d("60").Equal(o.Total), "got %s", o.Total)
	assert.True(t, o.Total.Equal(o.ComputedTotal()))
}

func TestCreatePurchaseForSupplier(t *testing.T) {
	svc, _, _ := newTestService()

	o, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:   2,
		OrderDate: time.Now(),
		Lines: []LineRequest{
			{ProductID: 7, Quantity: d("4"), UnitPrice: d("25")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, KindPurchase, o.Kind)
	assert.Contains(t, o.Number, "PUR-")
	assert.True(t, d("100").Equal(o.Total), "got %s", o.Total)
}

func TestCreateOrderZeroRatedLine(t *testing.T) {
	svc, _, _ := newTestService()

	o, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:    1,
		OrderDate:  time.Now(),
		IncludeVAT: true,
		Lines: []LineRequest{
			{ProductID: 7, Quantity: d("10"), UnitPrice: d("5"), VATRate: dp("0")},
		},
	})
	require.NoError(t, err)
	assert.True(t, d("50").Equal(o.Total), "explicit zero rate must not default to 20, got %s", o.Total)
}

func TestCreateOrderDeliveryCostUntaxed(t *testing.T) {
	svc, _, _ := newTestService()

	o, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:      1,
		OrderDate:    time.Now(),
		IncludeVAT:   true,
		DeliveryCost: dp("9.90"),
		Lines: []LineRequest{
			{ProductID: 7, Quantity: d("1"), UnitPrice: d("100"), VATRate: dp("20")},
		},
	})
	require.NoError(t, err)
	assert.True(t, d("129.90").Equal(o.Total), "got %s", o.Total)
}

func TestCreateOrderRejectsBadLines(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:   1,
		OrderDate: time.Now(),
		Lines: []LineRequest{
			{ProductID: 7, Quantity: d("0"), UnitPrice: d("5")},
		},
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))

	_, err = svc.Create(context.Background(), CreateOrderRequest{
		PartyID:   1,
		OrderDate: time.Now(),
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestUpdateOrderRecomputesTotalInSameWritePath(t *testing.T) {
	svc, _, _ := newTestService()
	o, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:    1,
		OrderDate:  time.Now(),
		IncludeVAT: true,
		Lines: []LineRequest{
			{ProductID: 7, Quantity: d("10"), UnitPrice: d("5"), VATRate: dp("20")},
		},
	})
	require.NoError(t, err)

	newLines := []LineRequest{
		{ProductID: 7, Quantity: d("2"), UnitPrice: d("5"), VATRate: dp("20")},
		{ProductID: 8, Quantity: d("1"), UnitPrice: d("40"), VATRate: dp("0")},
	}
	updated, err := svc.Update(context.Background(), o.ID, UpdateOrderRequest{Lines: &newLines})
	require.NoError(t, err)
	assert.True(t, d("52").Equal(updated.Total), "got %s", updated.Total)
	assert.True(t, updated.Total.Equal(updated.ComputedTotal()))
	assert.Len(t, updated.Lines, 2)
}

func TestUpdateTerminalOrderRejected(t *testing.T) {
	svc, _, _ := newTestService()
	o, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:   1,
		OrderDate: time.Now(),
		Lines:     []LineRequest{{ProductID: 7, Quantity: d("1"), UnitPrice: d("5")}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), o.ID, StatusCancelled)
	require.NoError(t, err)

	lines := []LineRequest{{ProductID: 7, Quantity: d("2"), UnitPrice: d("5")}}
	_, err = svc.Update(context.Background(), o.ID, UpdateOrderRequest{Lines: &lines})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))
}

func TestStatusTransitions(t *testing.T) {
	svc, _, _ := newTestService()
	o, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:   1,
		OrderDate: time.Now(),
		Lines:     []LineRequest{{ProductID: 7, Quantity: d("1"), UnitPrice: d("5")}},
	})
	require.NoError(t, err)

	o, err = svc.UpdateStatus(context.Background(), o.ID, StatusInProgress)
	require.NoError(t, err)
	o, err = svc.UpdateStatus(context.Background(), o.ID, StatusDispatched)
	require.NoError(t, err)
	o, err = svc.UpdateStatus(context.Background(), o.ID, StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)

	_, err = svc.UpdateStatus(context.Background(), o.ID, StatusCancelled)
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))
}

func TestCreateOrderRoundsTotalOnce(t *testing.T) {
	svc, _, _ := newTestService()

	// 1.5 * 9.99 = 14.985, * 1.055 = 15.809175. The stored total must be
	// the 2-place rounding of the full-precision sum, not the raw value.
	o, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:    1,
		OrderDate:  time.Now(),
		IncludeVAT: true,
		Lines: []LineRequest{
			{ProductID: 7, Quantity: d("1.5"), UnitPrice: d("9.99"), VATRate: dp("5.5")},
		},
	})
	require.NoError(t, err)
	assert.True(t, d("15.81").Equal(o.Total), "got %s", o.Total)
}

func TestUpdateLinesCannotDropBelowReturned(t *testing.T) {
	svc, _, notes := newTestService()
	o, err := svc.Create(context.Background(), CreateOrderRequest{
		PartyID:    1,
		OrderDate:  time.Now(),
		IncludeVAT: true,
		Lines: []LineRequest{
			{ProductID: 7, Quantity: d("10"), UnitPrice: d("5"), VATRate: dp("20")},
		},
	})
	require.NoError(t, err)

	oid := o.ID
	notes.notes = []returns.NoteSnapshot{
		{ID: 1, Return: true, OrderID: &oid, Items: []returns.Item{
			{ProductID: 7, Quantity: d("5")},
		}},
	}

	below := []LineRequest{{ProductID: 7, Quantity: d("3"), UnitPrice: d("5"), VATRate: dp("20")}}
	_, err = svc.Update(context.Background(), o.ID, UpdateOrderRequest{Lines: &below})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	enough := []LineRequest{{ProductID: 7, Quantity: d("6"), UnitPrice: d("5"), VATRate: dp("20")}}
	updated, err := svc.Update(context.Background(), o.ID, UpdateOrderRequest{Lines: &enough})
	require.NoError(t, err)
	assert.True(t, d("36").Equal(updated.Total), "got %s", updated.Total)
}
