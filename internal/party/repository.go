package party

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// Repository defines party data access.
type Repository interface {
	Get(ctx context.Context, id int64) (*Party, error)
	List(ctx context.Context, kind Kind) ([]Party, error)
	Create(ctx context.Context, p Party) (int64, error)
	Update(ctx context.Context, p Party) error
	Delete(ctx context.Context, id int64) error
	// HasActivity reports whether any order, payment or credit note
	// references the party.
	HasActivity(ctx context.Context, id int64) (bool, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed party store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) Get(ctx context.Context, id int64) (*Party, error) {
	var p Party
	err := r.pool.QueryRow(ctx, `
		SELECT id, kind, name, email, phone, address, created_at, updated_at
		FROM parties
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Kind, &p.Name, &p.Email, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *pgRepository) List(ctx context.Context, kind Kind) ([]Party, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, name, email, phone, address, created_at, updated_at
		FROM parties
		WHERE kind = $1
		ORDER BY name, id
	`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Party
	for rows.Next() {
		var p Party
		if err := rows.Scan(&p.ID, &p.Kind, &p.Name, &p.Email, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) Create(ctx context.Context, p Party) (int64, error) {
	now := time.Now()
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO parties (kind, name, email, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, p.Kind, p.Name, p.Email, p.Phone, p.Address, now).Scan(&id)
	return id, err
}

func (r *pgRepository) Update(ctx context.Context, p Party) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE parties
		SET name = $2, email = $3, phone = $4, address = $5, updated_at = $6
		WHERE id = $1
	`, p.ID, p.Name, p.Email, p.Phone, p.Address, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM parties WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgRepository) HasActivity(ctx context.Context, id int64) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE party_id = $1)
		    OR EXISTS (SELECT 1 FROM payments WHERE party_id = $1)
		    OR EXISTS (SELECT 1 FROM credit_notes WHERE party_id = $1)
	`, id).Scan(&active)
	return active, err
}
