package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/outbox"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/jackc/pgx/v5"
)

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) GetProduct(ctx context.Context, id string) (inventory.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if isNoRows(err) {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return p, err
}

// DecrementStock only touches tracked stock that still covers qty. The
// WHERE clause is re-evaluated against the latest committed row when a
// concurrent transaction updated it first.
func (t *txStore) DecrementStock(ctx context.Context, id string, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products
		SET stock_qty = stock_qty - $2, updated_at = now()
		WHERE id = $1 AND stock_policy = 'tracked' AND stock_qty >= $2`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	var policy string
	err = t.tx.QueryRow(ctx, `SELECT stock_policy FROM products WHERE id = $1`, id).Scan(&policy)
	if isNoRows(err) {
		return inventory.ErrProductNotFound
	}
	if err != nil {
		return err
	}
	if inventory.StockKind(policy) == inventory.StockTracked {
		return inventory.ErrInsufficientStock
	}
	return nil
}

func (t *txStore) lockTable(ctx context.Context, where string, arg any) (tables.Table, error) {
	tbl, err := scanTable(t.tx.QueryRow(ctx, `SELECT `+tableColumns+` FROM dining_tables WHERE `+where+` FOR UPDATE`, arg))
	if isNoRows(err) {
		return tables.Table{}, tables.ErrTableNotFound
	}
	return tbl, err
}

func (t *txStore) TableByID(ctx context.Context, id string) (tables.Table, error) {
	return t.lockTable(ctx, `id = $1`, id)
}

func (t *txStore) TableByNumber(ctx context.Context, number int) (tables.Table, error) {
	return t.lockTable(ctx, `number = $1`, number)
}

// TableByToken does not lock: placement already holds the requested table
// and only needs to know who owns a foreign token.
func (t *txStore) TableByToken(ctx context.Context, token string) (tables.Table, error) {
	if token == "" {
		return tables.Table{}, tables.ErrTableNotFound
	}
	tbl, err := scanTable(t.tx.QueryRow(ctx, `SELECT `+tableColumns+` FROM dining_tables WHERE token = $1`, token))
	if isNoRows(err) {
		return tables.Table{}, tables.ErrTableNotFound
	}
	return tbl, err
}

func (t *txStore) SetTableStatus(ctx context.Context, id string, status tables.Status) error {
	ct, err := t.tx.Exec(ctx, `UPDATE dining_tables SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return tables.ErrTableNotFound
	}
	return nil
}

func (t *txStore) ClaimTable(ctx context.Context, id string) (bool, error) {
	ct, err := t.tx.Exec(ctx, `
		UPDATE dining_tables SET status = 'OCCUPIED', updated_at = now()
		WHERE id = $1 AND status = 'AVAILABLE'`, id)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dining_tables WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, tables.ErrTableNotFound
	}
	return false, nil
}

func (t *txStore) SetTableToken(ctx context.Context, id, token string) error {
	ct, err := t.tx.Exec(ctx, `UPDATE dining_tables SET token = $2, updated_at = now() WHERE id = $1`, id, token)
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return tables.ErrTableNotFound
	}
	return nil
}

func (t *txStore) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, table_id, table_number, total, status, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5::numeric, $6, $7)`,
		o.ID, o.UserID, o.TableID, o.TableNumber, o.Total.String(), string(o.Status), o.CreatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, li := range o.Items {
		batch.Queue(`
			INSERT INTO order_items (id, order_id, product_id, product_name, unit_price, quantity, position)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)`,
			li.ID, o.ID, li.ProductID, li.ProductName, li.UnitPrice.String(), li.Quantity, i)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txStore) OrderForUpdate(ctx context.Context, id string) (orders.Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *txStore) UpdateOrderStatus(ctx context.Context, id string, status orders.Status, at time.Time) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (t *txStore) CountTableOrders(ctx context.Context, tableNumber int, statuses ...orders.Status) (int, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE table_number = $1 AND status = ANY($2)`, tableNumber, names).Scan(&n)
	return n, err
}

func (t *txStore) AppendEvent(ctx context.Context, ev outbox.Event) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox (topic, aggregate_id, type, payload, traceparent, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)`,
		ev.Topic, ev.AggregateID, ev.Type, ev.Payload, ev.TraceParent, ev.CreatedAt)
	return err
}
