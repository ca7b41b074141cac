package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/money"
	"github.com/entrepot-erp/entrepot-erp/internal/platform/db"
	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// Repository defines order/purchase data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Order, error)
	ListByParty(ctx context.Context, partyID int64) ([]Order, error)
}

// TxRepository defines the write operations, all within one transaction.
type TxRepository interface {
	LockOrder(ctx context.Context, orderID int64) error
	Create(ctx context.Context, o Order) (int64, error)
	Update(ctx context.Context, o Order) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	InsertLine(ctx context.Context, line Line) (int64, error)
	DeleteLines(ctx context.Context, orderID int64) error
	GenerateNumber(ctx context.Context, kind Kind, date time.Time) (string, error)
	Get(ctx context.Context, id int64) (*Order, error)
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed order store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderColumns = `id, number, party_id, kind, status, include_vat, delivery_cost, total, order_date, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o            Order
		deliveryCost *decimal.Decimal
	)
	err := row.Scan(&o.ID, &o.Number, &o.PartyID, &o.Kind, &o.Status, &o.IncludeVAT,
		&deliveryCost, &o.Total, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	o.DeliveryCost = deliveryCost
	return &o, nil
}

func loadLines(ctx context.Context, q querier, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, vat_rate, line_order
		FROM order_lines
		WHERE order_id = $1
		ORDER BY line_order, id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var (
			l       Line
			vatRate *decimal.Decimal
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice, &vatRate, &l.LineOrder); err != nil {
			return nil, err
		}
		if vatRate != nil {
			l.VATRate = money.RateOf(*vatRate)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	o.Lines, err = loadLines(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *pgRepository) ListByParty(ctx context.Context, partyID int64) ([]Order, error) {
	return listByParty(ctx, r.pool, partyID)
}

// ListByPartyTx lists a party's documents inside the caller's transaction,
// for readers that need the orders stream on the same snapshot as the
// payment and credit note streams.
func ListByPartyTx(ctx context.Context, tx pgx.Tx, partyID int64) ([]Order, error) {
	return listByParty(ctx, tx, partyID)
}

func listByParty(ctx context.Context, q querier, partyID int64) ([]Order, error) {
	rows, err := q.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE party_id = $1 ORDER BY order_date, id`, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Lines, err = loadLines(ctx, q, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) LockOrder(ctx context.Context, orderID int64) error {
	return db.LockOrder(ctx, r.tx, orderID)
}

func (r *pgTxRepository) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	o.Lines, err = loadLines(ctx, r.tx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *pgTxRepository) Create(ctx context.Context, o Order) (int64, error) {
	now := time.Now()
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO orders (number, party_id, kind, status, include_vat, delivery_cost, total, order_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id
	`, o.Number, o.PartyID, o.Kind, o.Status, o.IncludeVAT, o.DeliveryCost, o.Total, o.OrderDate, now).Scan(&id)
	return id, err
}

func (r *pgTxRepository) Update(ctx context.Context, o Order) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE orders
		SET include_vat = $2, delivery_cost = $3, total = $4, order_date = $5, updated_at = $6
		WHERE id = $1
	`, o.ID, o.IncludeVAT, o.DeliveryCost, o.Total, o.OrderDate, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *pgTxRepository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var vatRate *decimal.Decimal
	if line.VATRate.Set() {
		v := line.VATRate.Percent()
		vatRate = &v
	}
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO order_lines (order_id, product_id, quantity, unit_price, vat_rate, line_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice, vatRate, line.LineOrder).Scan(&id)
	return id, err
}

func (r *pgTxRepository) DeleteLines(ctx context.Context, orderID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, orderID)
	return err
}

func (r *pgTxRepository) GenerateNumber(ctx context.Context, kind Kind, date time.Time) (string, error) {
	prefix := "ORD"
	if kind == KindPurchase {
		prefix = "PUR"
	}
	var seq int64
	if err := r.tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, date.Format("2006"), seq), nil
}
