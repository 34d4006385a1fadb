package orders

import "fmt"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// Active orders keep their table occupied.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

// Closed statuses trigger the table release check.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}
