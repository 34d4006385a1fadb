package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/tableorder/internal/outbox"
	"github.com/ariefcatur/tableorder/internal/tables"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventTableStatusChanged = "TableStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceParent   string          `json:"traceparent,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderPlacedPayload struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id,omitempty"`
	TableID     string          `json:"table_id"`
	TableNumber int             `json:"table_number"`
	Items       []ItemPrice     `json:"items"`
	Total       decimal.Decimal `json:"total"`
	CheckedIn   bool            `json:"checked_in"`
}

type OrderStatusChangedPayload struct {
	OrderID     string    `json:"order_id"`
	TableNumber int       `json:"table_number"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TableStatusChangedPayload struct {
	TableID     string        `json:"table_id"`
	TableNumber int           `json:"table_number"`
	From        tables.Status `json:"from"`
	To          tables.Status `json:"to"`
	Reason      string        `json:"reason"`
}

// outboxEvent wraps payload in an envelope ready to be appended to the
// outbox of the current transaction.
func (s *Service) outboxEvent(topic, aggregateID, eventType, traceParent string, payload any) (outbox.Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return outbox.Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:       s.newID(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.producer,
		TraceParent:   traceParent,
		CorrelationID: aggregateID,
		Payload:       body,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return outbox.Event{}, fmt.Errorf("encode %s envelope: %w", eventType, err)
	}
	return outbox.Event{
		Topic:       topic,
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     raw,
		TraceParent: traceParent,
		CreatedAt:   env.OccurredAt,
		Status:      outbox.StatusPending,
	}, nil
}

// DecodePayload unwraps the typed payload of an envelope.
func DecodePayload[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	return t, nil
}
