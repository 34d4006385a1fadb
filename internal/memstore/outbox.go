package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/ariefcatur/tableorder/internal/outbox"
)

func (s *Store) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []outbox.Event
	for i := range s.outbox {
		if len(out) == batchSize {
			break
		}
		ev := &s.outbox[i]
		expired := ev.Status == outbox.StatusInProgress && ev.LeaseUntil.Before(now)
		if ev.Status != outbox.StatusPending && !expired {
			continue
		}
		ev.Status = outbox.StatusInProgress
		ev.RelayID = relayID
		ev.LeaseUntil = now.Add(lease)
		out = append(out, *ev)
	}
	return out, nil
}

func (s *Store) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if slices.Contains(ids, s.outbox[i].ID) {
			s.outbox[i].Status = outbox.StatusSent
		}
	}
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id int64, errMsg string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		ev := &s.outbox[i]
		if ev.ID != id {
			continue
		}
		ev.RetryCount++
		ev.LastError = errMsg
		ev.Status = outbox.StatusPending
		if ev.RetryCount >= maxAttempts {
			ev.Status = outbox.StatusFailed
		}
	}
	return nil
}

// Events returns a copy of every outbox event, in append order.
func (s *Store) Events() []outbox.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.outbox)
}
