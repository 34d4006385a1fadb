package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/outbox"
	"github.com/ariefcatur/tableorder/internal/tables"
)

type tx struct {
	st     *state
	now    func() time.Time
	events []outbox.Event
}

func (t *tx) GetProduct(_ context.Context, id string) (inventory.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return p, nil
}

func (t *tx) DecrementStock(_ context.Context, id string, qty int) error {
	p, ok := t.st.products[id]
	if !ok {
		return inventory.ErrProductNotFound
	}
	next, err := p.Stock.Take(qty)
	if err != nil {
		return err
	}
	if p.Stock.IsTracked() {
		p.Stock = next
		p.UpdatedAt = t.now().UTC()
		t.st.products[id] = p
	}
	return nil
}

func (t *tx) TableByID(_ context.Context, id string) (tables.Table, error) {
	tbl, ok := t.st.tables[id]
	if !ok {
		return tables.Table{}, tables.ErrTableNotFound
	}
	return tbl, nil
}

func (t *tx) TableByNumber(_ context.Context, number int) (tables.Table, error) {
	for _, tbl := range t.st.tables {
		if tbl.Number == number {
			return tbl, nil
		}
	}
	return tables.Table{}, tables.ErrTableNotFound
}

func (t *tx) TableByToken(_ context.Context, token string) (tables.Table, error) {
	if token == "" {
		return tables.Table{}, tables.ErrTableNotFound
	}
	for _, tbl := range t.st.tables {
		if tbl.Token == token {
			return tbl, nil
		}
	}
	return tables.Table{}, tables.ErrTableNotFound
}

func (t *tx) SetTableStatus(_ context.Context, id string, status tables.Status) error {
	tbl, ok := t.st.tables[id]
	if !ok {
		return tables.ErrTableNotFound
	}
	tbl.Status = status
	tbl.UpdatedAt = t.now().UTC()
	t.st.tables[id] = tbl
	return nil
}

func (t *tx) ClaimTable(_ context.Context, id string) (bool, error) {
	tbl, ok := t.st.tables[id]
	if !ok {
		return false, tables.ErrTableNotFound
	}
	if tbl.Status != tables.StatusAvailable {
		return false, nil
	}
	tbl.Status = tables.StatusOccupied
	tbl.UpdatedAt = t.now().UTC()
	t.st.tables[id] = tbl
	return true, nil
}

func (t *tx) SetTableToken(_ context.Context, id, token string) error {
	tbl, ok := t.st.tables[id]
	if !ok {
		return tables.ErrTableNotFound
	}
	for otherID, other := range t.st.tables {
		if otherID != id && token != "" && other.Token == token {
			return fmt.Errorf("token already bound to table %d", other.Number)
		}
	}
	tbl.Token = token
	tbl.UpdatedAt = t.now().UTC()
	t.st.tables[id] = tbl
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	if _, ok := t.st.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	t.st.orders[o.ID] = copyOrder(o)
	t.st.seq = append(t.st.seq, o.ID)
	return nil
}

func (t *tx) OrderForUpdate(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (t *tx) UpdateOrderStatus(_ context.Context, id string, status orders.Status, at time.Time) error {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = &at
	t.st.orders[id] = o
	return nil
}

func (t *tx) CountTableOrders(_ context.Context, tableNumber int, statuses ...orders.Status) (int, error) {
	n := 0
	for _, o := range t.st.orders {
		if o.TableNumber != tableNumber {
			continue
		}
		for _, st := range statuses {
			if o.Status == st {
				n++
				break
			}
		}
	}
	return n, nil
}

func (t *tx) AppendEvent(_ context.Context, ev outbox.Event) error {
	ev.Status = outbox.StatusPending
	t.events = append(t.events, ev)
	return nil
}
