// Package orders places orders against tables and stock, and drives the
// order status lifecycle together with table occupancy.
package orders

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/tableorder/internal/apperr"
	"github.com/ariefcatur/tableorder/internal/inventory"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Service struct {
	store    Store
	log      *zap.Logger
	tracer   trace.Tracer
	producer string
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(store Store, log *zap.Logger, producer string, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:    store,
		log:      log,
		tracer:   otel.Tracer("github.com/ariefcatur/tableorder/internal/orders"),
		producer: producer,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, ErrOrderNotFound) {
		return Order{}, apperr.NotFound("order not found")
	}
	if err != nil {
		return Order{}, apperr.Internal(err, "get order")
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	out, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err, "list orders")
	}
	return out, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]inventory.Product, error) {
	out, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "list products")
	}
	return out, nil
}

func (s *Service) CheckAvailability(ctx context.Context, productID string, qty int) (bool, error) {
	if qty <= 0 {
		return false, apperr.BadRequest("quantity must be positive")
	}
	var ok bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		ok, err = inventory.NewLedger(tx).CheckAvailable(ctx, productID, qty)
		return err
	})
	if errors.Is(err, inventory.ErrProductNotFound) {
		return false, apperr.NotFound("product not found")
	}
	if err != nil {
		return false, apperr.Internal(err, "check availability")
	}
	return ok, nil
}

// fail records err on span and converts anything that is not already an
// *apperr.Error into an internal error.
func (s *Service) fail(span trace.Span, op string, err error, fields ...zap.Field) error {
	span.RecordError(err)
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		ae = apperr.Internal(err, "%s", op)
	}
	fields = append(fields, zap.String("kind", string(ae.Kind)), zap.Error(err))
	if ae.Kind == apperr.KindInternal {
		span.SetStatus(codes.Error, op)
		s.log.Error(op+" failed", fields...)
	} else {
		s.log.Warn(op+" rejected", fields...)
	}
	return ae
}

func tableNotFound(err error) bool { return errors.Is(err, tables.ErrTableNotFound) }
