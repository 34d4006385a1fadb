// Package postgres implements the order store on PostgreSQL. Placement and
// status changes run in READ COMMITTED transactions: table rows are locked
// with FOR UPDATE and stock is only taken through conditional updates, so a
// concurrent writer can never drive stock negative or occupy a table twice.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Store struct {
	log  *zap.Logger
	pool *pgxpool.Pool
}

func NewStore(log *zap.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	return getOrder(ctx, s.pool, id, false)
}

func (s *Store) ListOrders(ctx context.Context, filter orders.ListFilter) ([]orders.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = 0 OR table_number = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at, id`, filter.TableNumber, string(filter.Status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out []orders.Order
		ids []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := loadItems(ctx, s.pool, ids...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []inventory.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) EnsureProduct(ctx context.Context, p inventory.Product) error {
	if err := p.Stock.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, price, stock_policy, stock_qty, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $6)
		ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Name, p.Price.String(), string(p.Stock.Kind), int64(p.Stock.Quantity), p.CreatedAt)
	return err
}

func (s *Store) EnsureTable(ctx context.Context, t tables.Table) error {
	status := t.Status
	if status == "" {
		status = tables.StatusAvailable
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dining_tables (id, number, status, token, qr_code, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $6)
		ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Number, string(status), t.Token, t.QRCode, t.CreatedAt)
	return err
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
