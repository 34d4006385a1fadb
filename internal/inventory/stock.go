package inventory

import (
	"encoding/json"
	"fmt"
)

type StockKind string

const (
	StockUntracked StockKind = "untracked"
	StockUnlimited StockKind = "unlimited"
	StockTracked   StockKind = "tracked"
)

// StockPolicy is the stock state of a product. Quantity is only meaningful
// for StockTracked.
type StockPolicy struct {
	Kind     StockKind `json:"kind"`
	Quantity uint64    `json:"quantity,omitempty"`
}

func Untracked() StockPolicy { return StockPolicy{Kind: StockUntracked} }

func Unlimited() StockPolicy { return StockPolicy{Kind: StockUnlimited} }

func Tracked(n uint64) StockPolicy { return StockPolicy{Kind: StockTracked, Quantity: n} }

func (p StockPolicy) IsTracked() bool { return p.Kind == StockTracked }

// Covers reports whether qty units can be taken from this stock.
func (p StockPolicy) Covers(qty int) bool {
	if qty <= 0 {
		return false
	}
	switch p.Kind {
	case StockUntracked, StockUnlimited:
		return true
	case StockTracked:
		return p.Quantity >= uint64(qty)
	default:
		return false
	}
}

// Take returns the policy after removing qty units.
func (p StockPolicy) Take(qty int) (StockPolicy, error) {
	if !p.IsTracked() {
		return p, nil
	}
	if !p.Covers(qty) {
		return p, ErrInsufficientStock
	}
	return Tracked(p.Quantity - uint64(qty)), nil
}

func (p StockPolicy) Validate() error {
	switch p.Kind {
	case StockUntracked, StockUnlimited:
		if p.Quantity != 0 {
			return fmt.Errorf("stock policy %s carries a quantity", p.Kind)
		}
		return nil
	case StockTracked:
		return nil
	default:
		return fmt.Errorf("unknown stock policy %q", p.Kind)
	}
}

func (p StockPolicy) String() string {
	if p.IsTracked() {
		return fmt.Sprintf("tracked(%d)", p.Quantity)
	}
	return string(p.Kind)
}

func (p *StockPolicy) UnmarshalJSON(b []byte) error {
	type raw StockPolicy
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	sp := StockPolicy(r)
	if err := sp.Validate(); err != nil {
		return err
	}
	*p = sp
	return nil
}
