package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/money"
	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// Repository is the read-only product lookup used by the credit-note
// authority when an item carries no usable rate or price of its own.
type Repository interface {
	Get(ctx context.Context, id int64) (*Product, error)
	GetVATRate(ctx context.Context, id int64) (money.VATRate, error)
	GetSellingPrice(ctx context.Context, id int64) (decimal.Decimal, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed catalog lookup.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) Get(ctx context.Context, id int64) (*Product, error) {
	var (
		p       Product
		vatRate *decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, reference, name, selling_price, vat_rate, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Reference, &p.Name, &p.SellingPrice, &vatRate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if vatRate != nil {
		p.VATRate = money.RateOf(*vatRate)
	}
	return &p, nil
}

func (r *pgRepository) GetVATRate(ctx context.Context, id int64) (money.VATRate, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return money.NoRate(), err
	}
	return p.VATRate, nil
}

func (r *pgRepository) GetSellingPrice(ctx context.Context, id int64) (decimal.Decimal, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.SellingPrice, nil
}
