package party

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

type mockRepository struct {
	parties  map[int64]*Party
	nextID   int64
	activity map[int64]bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		parties:  make(map[int64]*Party),
		activity: make(map[int64]bool),
		nextID:   1,
	}
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Party, error) {
	p, ok := m.parties[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepository) List(ctx context.Context, kind Kind) ([]Party, error) {
	var out []Party
	for _, p := range m.parties {
		if p.Kind == kind {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepository) Create(ctx context.Context, p Party) (int64, error) {
	p.ID = m.nextID
	m.nextID++
	m.parties[p.ID] = &p
	return p.ID, nil
}

func (m *mockRepository) Update(ctx context.Context, p Party) error {
	if _, ok := m.parties[p.ID]; !ok {
		return shared.ErrNotFound
	}
	m.parties[p.ID] = &p
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.parties[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.parties, id)
	return nil
}

func (m *mockRepository) HasActivity(ctx context.Context, id int64) (bool, error) {
	return m.activity[id], nil
}

func TestCreateParty(t *testing.T) {
	svc := NewService(newMockRepository())

	p, err := svc.Create(context.Background(), Party{Kind: KindClient, Name: "Acme Retail"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Retail", p.Name)
	assert.Equal(t, KindClient, p.Kind)
}

func TestCreatePartyRejectsBlankName(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.Create(context.Background(), Party{Kind: KindSupplier, Name: "   "})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestUpdatePartyKeepsKind(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	created, err := svc.Create(context.Background(), Party{Kind: KindSupplier, Name: "Grossiste Nord"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), Party{ID: created.ID, Kind: KindClient, Name: "Grossiste Nord SARL"})
	require.NoError(t, err)
	assert.Equal(t, KindSupplier, updated.Kind)
	assert.Equal(t, "Grossiste Nord SARL", updated.Name)
}

func TestDeletePartyWithActivityRejected(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	created, err := svc.Create(context.Background(), Party{Kind: KindClient, Name: "Acme Retail"})
	require.NoError(t, err)
	repo.activity[created.ID] = true

	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	repo.activity[created.ID] = false
	require.NoError(t, svc.Delete(context.Background(), created.ID))
}

func TestDeleteMissingParty(t *testing.T) {
	svc := NewService(newMockRepository())
	err := svc.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
