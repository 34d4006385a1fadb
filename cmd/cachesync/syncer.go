package main

import (
	"context"

	kafkax "github.com/ariefcatur/tableorder/internal/kafka"
	"github.com/ariefcatur/tableorder/internal/orders"
	"github.com/ariefcatur/tableorder/internal/redisx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type statusCache interface {
	Set(ctx context.Context, orderID string, cs redisx.CachedStatus) error
}

type dedup interface {
	Seen(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

// statusSyncer writes the status carried by OrderStatusChanged events into
// the order-status cache read by the API.
type statusSyncer struct {
	log   *zap.Logger
	cache statusCache
	dedup dedup
}

func (s *statusSyncer) handle(ctx context.Context, m kafka.Message) error {
	if t, ok := kafkax.Header(m, "x-event-type"); ok && t != orders.EventOrderStatusChanged {
		return nil
	}

	var env orders.Envelope
	if err := kafkax.UnmarshalEnvelope(m.Value, &env); err != nil {
		// poison message: commit and move on
		s.log.Error("skip undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderStatusChanged {
		return nil
	}

	seen, err := s.dedup.Seen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	p, err := orders.DecodePayload[orders.OrderStatusChangedPayload](env)
	if err != nil {
		s.log.Error("skip undecodable payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	at := p.UpdatedAt
	if err := s.cache.Set(ctx, p.OrderID, redisx.CachedStatus{Status: string(p.To), UpdatedAt: &at}); err != nil {
		if ferr := s.dedup.Forget(ctx, env.EventID); ferr != nil {
			s.log.Warn("dedup forget failed", zap.String("event_id", env.EventID), zap.Error(ferr))
		}
		return err
	}
	s.log.Debug("order status cached", zap.String("order_id", p.OrderID), zap.String("status", string(p.To)))
	return nil
}
