package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/tableorder/internal/apperr"
	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/ariefcatur/tableorder/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type PlaceOrderRequest struct {
	UserID      string
	TableNumber int
	TableToken  string
	Items       []ItemInput
}

// PlaceOrder validates the table and the requested items, creates a PENDING
// order, takes the stock and marks the table OCCUPIED in one transaction.
// Any failure leaves no trace of the attempt.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.PlaceOrder", trace.WithAttributes(
		attribute.Int("table.number", req.TableNumber),
		attribute.Bool("table.token", req.TableToken != ""),
		attribute.Int("order.items", len(req.Items)),
	))
	defer span.End()

	fields := []zap.Field{zap.Int("table_number", req.TableNumber)}
	if err := validateItems(req.Items); err != nil {
		return Order{}, s.fail(span, "place order", err, fields...)
	}

	var placed Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		registry := tables.NewRegistry(tx)
		ledger := inventory.NewLedger(tx)

		tbl, err := s.authorizeTable(ctx, tx, registry, req)
		if err != nil {
			return err
		}

		priced, err := priceItems(ctx, ledger, req.Items)
		if err != nil {
			return err
		}

		o, err := NewOrder(s.newID, req.UserID, tbl, priced, s.now().UTC())
		if err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for _, li := range o.Items {
			if err := ledger.Decrement(ctx, li.ProductID, li.Quantity); err != nil {
				if errors.Is(err, inventory.ErrInsufficientStock) {
					return apperr.BadRequest("insufficient stock for %s", li.ProductName)
				}
				return fmt.Errorf("decrement stock of %s: %w", li.ProductID, err)
			}
		}

		if err := s.occupy(ctx, registry, tbl, req.TableToken != ""); err != nil {
			return err
		}

		if err := s.appendPlacedEvents(ctx, tx, o, tbl, req.TableToken != ""); err != nil {
			return err
		}
		placed = o
		return nil
	})
	if err != nil {
		return Order{}, s.fail(span, "place order", err, fields...)
	}

	span.SetAttributes(attribute.String("order.id", placed.ID))
	s.log.Info("order placed",
		zap.String("order_id", placed.ID),
		zap.Int("table_number", placed.TableNumber),
		zap.String("total", placed.Total.String()),
		zap.Int("items", len(placed.Items)),
	)
	return placed, nil
}

// authorizeTable resolves the requested table and decides whether an order
// may be placed on it. A matching check-in token overrides the occupancy
// state; without one the table has to be free.
func (s *Service) authorizeTable(ctx context.Context, tx Tx, registry *tables.Registry, req PlaceOrderRequest) (tables.Table, error) {
	tbl, err := registry.FindByNumber(ctx, req.TableNumber)
	if tableNotFound(err) {
		return tables.Table{}, apperr.BadRequest("table not found")
	}
	if err != nil {
		return tables.Table{}, fmt.Errorf("find table %d: %w", req.TableNumber, err)
	}

	if req.TableToken != "" {
		if tbl.Token == req.TableToken {
			return tbl, nil
		}
		// Only the requested table row is locked; the owner of a foreign
		// token is read without a lock so crossed requests cannot deadlock.
		byToken, err := registry.FindByToken(ctx, req.TableToken)
		if tableNotFound(err) {
			return tables.Table{}, apperr.BadRequest("invalid table token")
		}
		if err != nil {
			return tables.Table{}, fmt.Errorf("find table by token: %w", err)
		}
		if byToken.Number != tbl.Number {
			return tables.Table{}, apperr.BadRequest("token does not match table")
		}
		return tbl, nil
	}

	if !tbl.Orderable() {
		return tables.Table{}, apperr.BadRequest("table not available")
	}
	pending, err := tx.CountTableOrders(ctx, tbl.Number, StatusPending)
	if err != nil {
		return tables.Table{}, fmt.Errorf("count pending orders of table %d: %w", tbl.Number, err)
	}
	if pending > 0 {
		return tables.Table{}, apperr.BadRequest("table occupied with pending orders")
	}
	return tbl, nil
}

// priceItems loads every referenced product once and checks that its stock
// covers the total quantity requested across all lines.
func priceItems(ctx context.Context, ledger *inventory.Ledger, items []ItemInput) ([]PricedItem, error) {
	wanted := make(map[string]int, len(items))
	for _, it := range items {
		wanted[it.ProductID] += it.Quantity
	}

	products := make(map[string]inventory.Product, len(wanted))
	priced := make([]PricedItem, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			var err error
			p, err = ledger.Product(ctx, it.ProductID)
			if errors.Is(err, inventory.ErrProductNotFound) {
				return nil, apperr.Internal(err, "line item references unknown product %s", it.ProductID)
			}
			if err != nil {
				return nil, fmt.Errorf("load product %s: %w", it.ProductID, err)
			}
			if !p.Stock.Covers(wanted[it.ProductID]) {
				return nil, apperr.BadRequest("insufficient stock for %s", p.Name)
			}
			products[it.ProductID] = p
		}
		priced = append(priced, PricedItem{Product: p, Quantity: it.Quantity})
	}
	return priced, nil
}

func (s *Service) occupy(ctx context.Context, registry *tables.Registry, tbl tables.Table, checkedIn bool) error {
	if checkedIn {
		if err := registry.SetStatus(ctx, tbl.ID, tables.StatusOccupied); err != nil {
			return fmt.Errorf("occupy table %d: %w", tbl.Number, err)
		}
		return nil
	}
	claimed, err := registry.Claim(ctx, tbl.ID)
	if err != nil {
		return fmt.Errorf("claim table %d: %w", tbl.Number, err)
	}
	if !claimed {
		return apperr.BadRequest("table not available")
	}
	return nil
}

func (s *Service) appendPlacedEvents(ctx context.Context, tx Tx, o Order, tbl tables.Table, checkedIn bool) error {
	traceParent := tracing.TraceParent(ctx)

	items := make([]ItemPrice, 0, len(o.Items))
	for _, li := range o.Items {
		items = append(items, ItemPrice{ProductID: li.ProductID, Quantity: li.Quantity, UnitPrice: li.UnitPrice})
	}
	ev, err := s.outboxEvent(TopicOrderPlaced, o.ID, EventOrderPlaced, traceParent, OrderPlacedPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		TableID:     o.TableID,
		TableNumber: o.TableNumber,
		Items:       items,
		Total:       o.Total,
		CheckedIn:   checkedIn,
	})
	if err != nil {
		return err
	}
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("append %s: %w", EventOrderPlaced, err)
	}

	if tbl.Status == tables.StatusOccupied {
		return nil
	}
	return s.appendTableEvent(ctx, tx, tbl, tables.StatusOccupied, "order placed", traceParent)
}

func (s *Service) appendTableEvent(ctx context.Context, tx Tx, tbl tables.Table, to tables.Status, reason, traceParent string) error {
	ev, err := s.outboxEvent(TopicTableStatus, tbl.ID, EventTableStatusChanged, traceParent, TableStatusChangedPayload{
		TableID:     tbl.ID,
		TableNumber: tbl.Number,
		From:        tbl.Status,
		To:          to,
		Reason:      reason,
	})
	if err != nil {
		return err
	}
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("append %s: %w", EventTableStatusChanged, err)
	}
	return nil
}
