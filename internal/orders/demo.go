package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/shopspring/decimal"
)

const demoTableCount = 10

func DemoProducts(now time.Time) []inventory.Product {
	mk := func(id, name, price string, stock inventory.StockPolicy) inventory.Product {
		return inventory.Product{
			ID:        id,
			Name:      name,
			Price:     decimal.RequireFromString(price),
			Stock:     stock,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return []inventory.Product{
		mk("prod-espresso", "Espresso", "2.50", inventory.Unlimited()),
		mk("prod-latte", "Latte", "3.80", inventory.Tracked(40)),
		mk("prod-croissant", "Croissant", "2.20", inventory.Tracked(12)),
		mk("prod-cheesecake", "Cheesecake", "5.50", inventory.Tracked(6)),
		mk("prod-water", "Still water", "1.00", inventory.Untracked()),
	}
}

func DemoTables(now time.Time) []tables.Table {
	out := make([]tables.Table, 0, demoTableCount)
	for n := 1; n <= demoTableCount; n++ {
		out = append(out, tables.Table{
			ID:        fmt.Sprintf("table-%02d", n),
			Number:    n,
			Status:    tables.StatusAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return out
}

// SeedDemo inserts the demo menu and tables that do not exist yet. IDs are
// fixed, so restarts keep stock and occupancy.
func SeedDemo(ctx context.Context, c Catalog, now time.Time) error {
	for _, p := range DemoProducts(now) {
		if err := c.EnsureProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	for _, t := range DemoTables(now) {
		if err := c.EnsureTable(ctx, t); err != nil {
			return fmt.Errorf("seed table %d: %w", t.Number, err)
		}
	}
	return nil
}
