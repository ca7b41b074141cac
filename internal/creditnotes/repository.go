package creditnotes

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/entrepot-erp/entrepot-erp/internal/money"
	"github.com/entrepot-erp/entrepot-erp/internal/platform/db"
	"github.com/entrepot-erp/entrepot-erp/internal/shared"
)

// OrderRef is the authority's in-transaction view of an order: enough to
// price a return and feed the tracker.
type OrderRef struct {
	ID         int64
	Number     string
	PartyID    int64
	IncludeVAT bool
	Lines      []OrderRefLine
}

// OrderRefLine mirrors one order line.
type OrderRefLine struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	VATRate   money.VATRate
}

// Repository defines credit note data access. The write surface is only
// reachable through WithTx so the ceiling check and the commit share one
// snapshot.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*CreditNote, error)
	ListByParty(ctx context.Context, partyID int64) ([]CreditNote, error)
	// ListByOrder returns every note referencing the order, by id or by
	// number fallback, soft-deleted ones included (the tracker filters).
	ListByOrder(ctx context.Context, orderID int64, orderNumber string) ([]CreditNote, error)
	GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error)
	FindOrderRefsByNumber(ctx context.Context, partyID int64, number string) ([]OrderRef, error)
}

// TxRepository is the transactional surface used by the authority.
type TxRepository interface {
	LockOrder(ctx context.Context, orderID int64) error
	GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error)
	FindOrderRefsByNumber(ctx context.Context, partyID int64, number string) ([]OrderRef, error)
	ListByOrder(ctx context.Context, orderID int64, orderNumber string) ([]CreditNote, error)
	Get(ctx context.Context, id int64) (*CreditNote, error)
	Insert(ctx context.Context, n CreditNote) (int64, error)
	Update(ctx context.Context, n CreditNote) error
	SoftDelete(ctx context.Context, id int64) error
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the pgx-backed credit note store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithWriteTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const noteColumns = `id, public_id, party_id, type, order_id, order_number, total_amount, is_deleted, created_at, updated_at`

func scanNote(row pgx.Row) (*CreditNote, error) {
	var n CreditNote
	err := row.Scan(&n.ID, &n.PublicID, &n.PartyID, &n.Type, &n.OrderID, &n.OrderNumber,
		&n.TotalAmount, &n.IsDeleted, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func loadItems(ctx context.Context, q rowQuerier, notes []*CreditNote) error {
	for _, n := range notes {
		rows, err := q.Query(ctx, `
			SELECT id, credit_note_id, product_id, quantity, unit_price, vat_rate
			FROM credit_note_items
			WHERE credit_note_id = $1
			ORDER BY id
		`, n.ID)
		if err != nil {
			return err
		}
		items, err := collectItems(rows)
		if err != nil {
			return err
		}
		n.Items = items
	}
	return nil
}

func collectItems(rows pgx.Rows) ([]ReturnItem, error) {
	defer rows.Close()
	var items []ReturnItem
	for rows.Next() {
		var (
			item    ReturnItem
			vatRate *decimal.Decimal
		)
		if err := rows.Scan(&item.ID, &item.CreditNoteID, &item.ProductID, &item.Quantity, &item.UnitPrice, &vatRate); err != nil {
			return nil, err
		}
		if vatRate != nil {
			item.VATRate = money.RateOf(*vatRate)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func getNote(ctx context.Context, q rowQuerier, id int64) (*CreditNote, error) {
	n, err := scanNote(q.QueryRow(ctx, `SELECT `+noteColumns+` FROM credit_notes WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, q, []*CreditNote{n}); err != nil {
		return nil, err
	}
	return n, nil
}

func listNotes(ctx context.Context, q rowQuerier, query string, args ...any) ([]CreditNote, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CreditNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadItems(ctx, q, out); err != nil {
		return nil, err
	}

	notes := make([]CreditNote, 0, len(out))
	for _, n := range out {
		notes = append(notes, *n)
	}
	return notes, nil
}

func getOrderRef(ctx context.Context, q rowQuerier, orderID int64) (*OrderRef, error) {
	var ref OrderRef
	err := q.QueryRow(ctx, `
		SELECT id, number, party_id, include_vat
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&ref.ID, &ref.Number, &ref.PartyID, &ref.IncludeVAT)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if err := loadOrderRefLines(ctx, q, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

func loadOrderRefLines(ctx context.Context, q rowQuerier, ref *OrderRef) error {
	rows, err := q.Query(ctx, `
		SELECT product_id, quantity, unit_price, vat_rate
		FROM order_lines
		WHERE order_id = $1
		ORDER BY line_order, id
	`, ref.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line    OrderRefLine
			vatRate *decimal.Decimal
		)
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitPrice, &vatRate); err != nil {
			return err
		}
		if vatRate != nil {
			line.VATRate = money.RateOf(*vatRate)
		}
		ref.Lines = append(ref.Lines, line)
	}
	return rows.Err()
}

func findOrderRefsByNumber(ctx context.Context, q rowQuerier, partyID int64, number string) ([]OrderRef, error) {
	rows, err := q.Query(ctx, `
		SELECT id, number, party_id, include_vat
		FROM orders
		WHERE party_id = $1 AND number = $2
		ORDER BY id
	`, partyID, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []OrderRef
	for rows.Next() {
		var ref OrderRef
		if err := rows.Scan(&ref.ID, &ref.Number, &ref.PartyID, &ref.IncludeVAT); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range refs {
		if err := loadOrderRefLines(ctx, q, &refs[i]); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

const listByOrderQuery = `
	SELECT ` + noteColumns + `
	FROM credit_notes
	WHERE order_id = $1 OR (order_id IS NULL AND order_number = $2)
	ORDER BY id`

const listByPartyQuery = `
	SELECT ` + noteColumns + `
	FROM credit_notes
	WHERE party_id = $1
	ORDER BY id`

// ListByPartyTx lists a party's credit notes inside an existing transaction,
// for readers that need the note stream on the same snapshot as the order
// and payment streams.
func ListByPartyTx(ctx context.Context, tx pgx.Tx, partyID int64) ([]CreditNote, error) {
	return listNotes(ctx, tx, listByPartyQuery, partyID)
}

func (r *pgRepository) Get(ctx context.Context, id int64) (*CreditNote, error) {
	return getNote(ctx, r.pool, id)
}

func (r *pgRepository) ListByParty(ctx context.Context, partyID int64) ([]CreditNote, error) {
	return listNotes(ctx, r.pool, listByPartyQuery, partyID)
}

func (r *pgRepository) ListByOrder(ctx context.Context, orderID int64, orderNumber string) ([]CreditNote, error) {
	return listNotes(ctx, r.pool, listByOrderQuery, orderID, orderNumber)
}

func (r *pgRepository) GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error) {
	return getOrderRef(ctx, r.pool, orderID)
}

func (r *pgRepository) FindOrderRefsByNumber(ctx context.Context, partyID int64, number string) ([]OrderRef, error) {
	return findOrderRefsByNumber(ctx, r.pool, partyID, number)
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (r *pgTxRepository) LockOrder(ctx context.Context, orderID int64) error {
	return db.LockOrder(ctx, r.tx, orderID)
}

func (r *pgTxRepository) GetOrderRef(ctx context.Context, orderID int64) (*OrderRef, error) {
	return getOrderRef(ctx, r.tx, orderID)
}

func (r *pgTxRepository) FindOrderRefsByNumber(ctx context.Context, partyID int64, number string) ([]OrderRef, error) {
	return findOrderRefsByNumber(ctx, r.tx, partyID, number)
}

func (r *pgTxRepository) ListByOrder(ctx context.Context, orderID int64, orderNumber string) ([]CreditNote, error) {
	return listNotes(ctx, r.tx, listByOrderQuery, orderID, orderNumber)
}

func (r *pgTxRepository) Get(ctx context.Context, id int64) (*CreditNote, error) {
	return getNote(ctx, r.tx, id)
}

func (r *pgTxRepository) Insert(ctx context.Context, n CreditNote) (int64, error) {
	now := time.Now()
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO credit_notes (public_id, party_id, type, order_id, order_number, total_amount, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7, $7)
		RETURNING id
	`, n.PublicID, n.PartyID, n.Type, n.OrderID, n.OrderNumber, n.TotalAmount, now).Scan(&id)
	if err != nil {
		return 0, translateConflict(err)
	}
	for _, item := range n.Items {
		if err := insertItem(ctx, r.tx, id, item); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (r *pgTxRepository) Update(ctx context.Context, n CreditNote) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE credit_notes
		SET total_amount = $2, updated_at = $3
		WHERE id = $1 AND is_deleted = false
	`, n.ID, n.TotalAmount, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM credit_note_items WHERE credit_note_id = $1`, n.ID); err != nil {
		return err
	}
	for _, item := range n.Items {
		if err := insertItem(ctx, r.tx, n.ID, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgTxRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE credit_notes SET is_deleted = true, updated_at = $2 WHERE id = $1
	`, id, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func insertItem(ctx context.Context, tx pgx.Tx, noteID int64, item ReturnItem) error {
	var vatRate *decimal.Decimal
	if item.VATRate.Set() {
		v := item.VATRate.Percent()
		vatRate = &v
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO credit_note_items (credit_note_id, product_id, quantity, unit_price, vat_rate)
		VALUES ($1, $2, $3, $4, $5)
	`, noteID, item.ProductID, item.Quantity, item.UnitPrice, vatRate)
	return err
}

// translateConflict maps unique violations (duplicate public id) onto the
// engine's conflict taxonomy.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.Conflictf("credit note already exists: %s", pgErr.ConstraintName)
	}
	return err
}
