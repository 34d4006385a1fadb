package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/tableorder/internal/apperr"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/ariefcatur/tableorder/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TransitionStatus sets the status of an order. Every status may follow
// every other one. Moving an order to COMPLETED or CANCELLED frees its table
// once no PENDING or PROCESSING order is left on it; that check and the
// table write share the transaction of the status change.
func (s *Service) TransitionStatus(ctx context.Context, orderID string, status Status) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.TransitionStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	fields := []zap.Field{zap.String("order_id", orderID), zap.String("status", string(status))}
	if _, err := ParseStatus(string(status)); err != nil {
		return Order{}, s.fail(span, "transition order", apperr.BadRequest("unknown order status %q", status), fields...)
	}

	var (
		updated  Order
		released bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, orderID)
		if errors.Is(err, ErrOrderNotFound) {
			return apperr.NotFound("order not found")
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		from := o.Status
		now := s.now().UTC()
		if err := tx.UpdateOrderStatus(ctx, o.ID, status, now); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		o.Status = status
		o.UpdatedAt = &now

		traceParent := tracing.TraceParent(ctx)
		ev, err := s.outboxEvent(TopicOrderStatus, o.ID, EventOrderStatusChanged, traceParent, OrderStatusChangedPayload{
			OrderID:     o.ID,
			TableNumber: o.TableNumber,
			From:        from,
			To:          status,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return fmt.Errorf("append %s: %w", EventOrderStatusChanged, err)
		}

		if status.Closed() {
			released, err = s.releaseTable(ctx, tx, o, traceParent)
			if err != nil {
				return err
			}
		}
		updated = o
		return nil
	})
	if err != nil {
		return Order{}, s.fail(span, "transition order", err, fields...)
	}

	s.log.Info("order status changed",
		zap.String("order_id", updated.ID),
		zap.String("status", string(updated.Status)),
		zap.Int("table_number", updated.TableNumber),
		zap.Bool("table_released", released),
	)
	return updated, nil
}

// releaseTable makes the order's table AVAILABLE when it has no active
// orders left. The table row is locked before counting so that a placement
// racing on the same table is ordered around this check.
func (s *Service) releaseTable(ctx context.Context, tx Tx, o Order, traceParent string) (bool, error) {
	registry := tables.NewRegistry(tx)
	tbl, err := registry.FindByID(ctx, o.TableID)
	if tableNotFound(err) {
		s.log.Warn("order table no longer exists", zap.String("order_id", o.ID), zap.String("table_id", o.TableID))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load table %s: %w", o.TableID, err)
	}

	active, err := tx.CountTableOrders(ctx, o.TableNumber, StatusPending, StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("count active orders of table %d: %w", o.TableNumber, err)
	}
	if active > 0 {
		return false, nil
	}

	if err := registry.SetStatus(ctx, tbl.ID, tables.StatusAvailable); err != nil {
		return false, fmt.Errorf("release table %d: %w", tbl.Number, err)
	}
	if tbl.Status == tables.StatusAvailable {
		return true, nil
	}
	return true, s.appendTableEvent(ctx, tx, tbl, tables.StatusAvailable, "orders closed", traceParent)
}
