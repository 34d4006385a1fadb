// Package inventory owns product stock and the one sanctioned way of
// mutating it.
package inventory

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Store is the persistence port for product stock. DecrementStock must be a
// conditional update: a tracked quantity is only reduced when it still
// covers qty at write time, otherwise ErrInsufficientStock is returned and
// nothing changes.
type Store interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	DecrementStock(ctx context.Context, id string, qty int) error
}

type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Product(ctx context.Context, id string) (Product, error) {
	return l.store.GetProduct(ctx, id)
}

func (l *Ledger) Price(ctx context.Context, id string) (decimal.Decimal, error) {
	p, err := l.store.GetProduct(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Price, nil
}

// CheckAvailable is a read: it never reserves anything.
func (l *Ledger) CheckAvailable(ctx context.Context, id string, qty int) (bool, error) {
	p, err := l.store.GetProduct(ctx, id)
	if err != nil {
		return false, err
	}
	return p.Stock.Covers(qty), nil
}

func (l *Ledger) Decrement(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return ErrInsufficientStock
	}
	return l.store.DecrementStock(ctx, id, qty)
}
