package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	productColumns = `id, name, price::text, stock_policy, stock_qty, created_at, updated_at`
	tableColumns   = `id, number, status, COALESCE(token, ''), COALESCE(qr_code, ''), created_at, updated_at`
	orderColumns   = `id, COALESCE(user_id, ''), table_id, table_number, total::text, status, created_at, updated_at`
	itemColumns    = `id, order_id, product_id, product_name, unit_price::text, quantity`
)

func scanProduct(row pgx.Row) (inventory.Product, error) {
	var (
		p      inventory.Product
		price  string
		policy string
		qty    int64
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &policy, &qty, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return inventory.Product{}, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return inventory.Product{}, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}
	if p.Stock, err = stockFromColumns(policy, qty); err != nil {
		return inventory.Product{}, fmt.Errorf("product %s: %w", p.ID, err)
	}
	return p, nil
}

func stockFromColumns(policy string, qty int64) (inventory.StockPolicy, error) {
	switch inventory.StockKind(policy) {
	case inventory.StockUntracked:
		return inventory.Untracked(), nil
	case inventory.StockUnlimited:
		return inventory.Unlimited(), nil
	case inventory.StockTracked:
		if qty < 0 {
			return inventory.StockPolicy{}, fmt.Errorf("negative tracked stock %d", qty)
		}
		return inventory.Tracked(uint64(qty)), nil
	default:
		return inventory.StockPolicy{}, fmt.Errorf("unknown stock policy %q", policy)
	}
}

func scanTable(row pgx.Row) (tables.Table, error) {
	var (
		t      tables.Table
		status string
	)
	if err := row.Scan(&t.ID, &t.Number, &status, &t.Token, &t.QRCode, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return tables.Table{}, err
	}
	t.Status = tables.Status(status)
	return t, nil
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.TableID, &o.TableNumber, &total, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return orders.Order{}, err
	}
	var err error
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return orders.Order{}, fmt.Errorf("order %s total %q: %w", o.ID, total, err)
	}
	o.Status = orders.Status(status)
	return o, nil
}

func scanItem(row pgx.Row) (orders.LineItem, error) {
	var (
		li    orders.LineItem
		price string
	)
	if err := row.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.ProductName, &price, &li.Quantity); err != nil {
		return orders.LineItem{}, err
	}
	var err error
	if li.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return orders.LineItem{}, fmt.Errorf("line item %s price %q: %w", li.ID, price, err)
	}
	return li, nil
}

func loadItems(ctx context.Context, q querier, orderIDs ...string) (map[string][]orders.LineItem, error) {
	out := make(map[string][]orders.LineItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		li, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[li.OrderID] = append(out[li.OrderID], li)
	}
	return out, rows.Err()
}

func getOrder(ctx context.Context, q querier, id string, lock bool) (orders.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	if isNoRows(err) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if err != nil {
		return orders.Order{}, err
	}
	items, err := loadItems(ctx, q, o.ID)
	if err != nil {
		return orders.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}
