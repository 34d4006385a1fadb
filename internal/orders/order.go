package orders

import (
	"time"

	"github.com/ariefcatur/tableorder/internal/apperr"
	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id,omitempty"`
	TableID     string          `json:"table_id"`
	TableNumber int             `json:"table_number"`
	Total       decimal.Decimal `json:"total"`
	Status      Status          `json:"status"`
	Items       []LineItem      `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// LineItem keeps the product name and unit price as they were when the
// order was placed.
type LineItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PricedItem struct {
	Product  inventory.Product
	Quantity int
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return apperr.BadRequest("order must contain at least one product")
	}
	for _, it := range items {
		if it.ProductID == "" {
			return apperr.BadRequest("product id is required")
		}
		if it.Quantity <= 0 {
			return apperr.BadRequest("quantity for product %s must be positive", it.ProductID)
		}
	}
	return nil
}

// NewOrder builds a PENDING order for table, pricing every line with the
// product price it was handed.
func NewOrder(newID func() string, userID string, table tables.Table, items []PricedItem, now time.Time) (Order, error) {
	if len(items) == 0 {
		return Order{}, apperr.BadRequest("order must contain at least one product")
	}
	o := Order{
		ID:          newID(),
		UserID:      userID,
		TableID:     table.ID,
		TableNumber: table.Number,
		Total:       decimal.Zero,
		Status:      StatusPending,
		Items:       make([]LineItem, 0, len(items)),
		CreatedAt:   now,
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return Order{}, apperr.BadRequest("quantity for product %s must be positive", it.Product.ID)
		}
		li := LineItem{
			ID:          newID(),
			OrderID:     o.ID,
			ProductID:   it.Product.ID,
			ProductName: it.Product.Name,
			UnitPrice:   it.Product.Price,
			Quantity:    it.Quantity,
		}
		o.Total = o.Total.Add(li.Subtotal())
		o.Items = append(o.Items, li)
	}
	return o, nil
}
