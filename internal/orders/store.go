package orders

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/outbox"
	"github.com/ariefcatur/tableorder/internal/tables"
)

var ErrOrderNotFound = errors.New("order not found")

// Tx is everything a unit of work may touch. Implementations guarantee that
// all writes made through one Tx become visible together or not at all.
type Tx interface {
	inventory.Store
	tables.Store

	InsertOrder(ctx context.Context, o Order) error
	// OrderForUpdate loads the order and holds it until the tx ends.
	OrderForUpdate(ctx context.Context, id string) (Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status Status, at time.Time) error
	CountTableOrders(ctx context.Context, tableNumber int, statuses ...Status) (int, error)
	AppendEvent(ctx context.Context, ev outbox.Event) error
}

type ListFilter struct {
	TableNumber int
	Status      Status
}

type Store interface {
	// InTx runs fn in a transaction and commits when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
	ListProducts(ctx context.Context) ([]inventory.Product, error)
}

// Catalog is the write side owned by catalog and floor management. The
// engine only uses it for demo data. Ensure* inserts rows whose id is absent
// and leaves existing rows untouched.
type Catalog interface {
	EnsureProduct(ctx context.Context, p inventory.Product) error
	EnsureTable(ctx context.Context, t tables.Table) error
}
