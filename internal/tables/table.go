package tables

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusOccupied  Status = "OCCUPIED"
	StatusReserved  Status = "RESERVED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusAvailable, StatusOccupied, StatusReserved:
		return st, nil
	default:
		return "", fmt.Errorf("unknown table status %q", s)
	}
}

type Table struct {
	ID        string    `json:"id"`
	Number    int       `json:"number"`
	Status    Status    `json:"status"`
	Token     string    `json:"-"`
	QRCode    string    `json:"qr_code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Orderable reports whether a guest without a check-in token may order here.
func (t Table) Orderable() bool { return t.Status == StatusAvailable }
