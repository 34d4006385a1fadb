// Package memstore is an in-process implementation of the order store.
// Transactions run one at a time against a private copy of the data and
// replace it on commit, so readers never observe a half-applied unit of work.
//
// Outbox events are kept for the life of the process and are not part of the
// copied state: a transaction stages its events and they are appended on
// commit. Meant for tests and demos; production runs on postgres.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/outbox"
	"github.com/ariefcatur/tableorder/internal/tables"
)

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time

	outbox    []outbox.Event
	nextEvent int64
}

type state struct {
	products map[string]inventory.Product
	tables   map[string]tables.Table
	orders   map[string]orders.Order
	seq      []string
}

func New() *Store {
	return &Store{
		st: &state{
			products: map[string]inventory.Product{},
			tables:   map[string]tables.Table{},
			orders:   map[string]orders.Order{},
		},
		now: time.Now,
	}
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[string]inventory.Product, len(s.products)),
		tables:   make(map[string]tables.Table, len(s.tables)),
		orders:   make(map[string]orders.Order, len(s.orders)),
		seq:      slices.Clone(s.seq),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

func copyOrder(o orders.Order) orders.Order {
	o.Items = slices.Clone(o.Items)
	if o.UpdatedAt != nil {
		at := *o.UpdatedAt
		o.UpdatedAt = &at
	}
	return o
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := &tx{st: s.st.clone(), now: s.now}
	if err := fn(ctx, work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work.st
	for _, ev := range work.events {
		s.nextEvent++
		ev.ID = s.nextEvent
		s.outbox = append(s.outbox, ev)
	}
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) ListOrders(_ context.Context, filter orders.ListFilter) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Order, 0)
	for _, id := range s.st.seq {
		o := s.st.orders[id]
		if filter.TableNumber > 0 && o.TableNumber != filter.TableNumber {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, copyOrder(o))
	}
	return out, nil
}

func (s *Store) ListProducts(_ context.Context) ([]inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inventory.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Table returns the committed state of a table.
func (s *Store) Table(id string) (tables.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.st.tables[id]
	return t, ok
}

// Product returns the committed state of a product.
func (s *Store) Product(id string) (inventory.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

func (s *Store) EnsureProduct(_ context.Context, p inventory.Product) error {
	if err := p.Stock.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.products[p.ID]; !ok {
		s.st.products[p.ID] = p
	}
	return nil
}

func (s *Store) EnsureTable(_ context.Context, t tables.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.tables[t.ID]; ok {
		return nil
	}
	for _, other := range s.st.tables {
		if other.Number == t.Number {
			return fmt.Errorf("table number %d already used by %s", t.Number, other.ID)
		}
	}
	if t.Status == "" {
		t.Status = tables.StatusAvailable
	}
	s.st.tables[t.ID] = t
	return nil
}
