package outbox

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// Event is one message waiting to be published. It is written in the same
// transaction as the state change it describes.
type Event struct {
	ID          int64
	Topic       string
	AggregateID string
	Type        string
	Payload     []byte
	TraceParent string
	CreatedAt   time.Time
	Status      Status
	RelayID     string
	LeaseUntil  time.Time
	RetryCount  int
	LastError   string
}
