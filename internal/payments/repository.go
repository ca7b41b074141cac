package payments

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// Repository defines payment data access.
type Repository interface {
	Get(ctx context.Context, id int64) (*Payment, error)
	ListByParty(ctx context.Context, partyID int64) ([]Payment, error)
	Create(ctx context.Context, p Payment) (int64, error)
	Delete(ctx context.Context, id int64) error
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed payment store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) Get(ctx context.Context, id int64) (*Payment, error) {
	var p Payment
	err := r.pool.QueryRow(ctx, `
		SELECT id, party_id, amount, method, paid_at, note, created_at
		FROM payments
		WHERE id = $1
	`, id).Scan(&p.ID, &p.PartyID, &p.Amount, &p.Method, &p.PaidAt, &p.Note, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *pgRepository) ListByParty(ctx context.Context, partyID int64) ([]Payment, error) {
	return listByParty(ctx, r.pool, partyID)
}

// ListByPartyTx lists a party's payments inside an existing transaction, for
// readers that need the payment stream on the same snapshot as the order and
// credit note streams.
func ListByPartyTx(ctx context.Context, tx pgx.Tx, partyID int64) ([]Payment, error) {
	return listByParty(ctx, tx, partyID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listByParty(ctx context.Context, q querier, partyID int64) ([]Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, party_id, amount, method, paid_at, note, created_at
		FROM payments
		WHERE party_id = $1
		ORDER BY paid_at, id
	`, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.PartyID, &p.Amount, &p.Method, &p.PaidAt, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) Create(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payments (party_id, amount, method, paid_at, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, p.PartyID, p.Amount, p.Method, p.PaidAt, p.Note, time.Now()).Scan(&id)
	return id, err
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
