package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     chan kafka.Message
	committed map[int][]int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{queue: make(chan kafka.Message, len(msgs)), committed: map[int][]int64{}}
	for _, m := range msgs {
		r.queue <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.queue:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed[m.Partition] = append(r.committed[m.Partition], m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits(partition int) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed[partition]...)
}

func fastConsumer(r reader, workers int) *Consumer {
	c := newConsumer(zap.NewNop(), r, workers)
	c.retryDelay = time.Millisecond
	c.maxAttempts = 3
	return c
}

// runUntil starts c and cancels it once want messages were handled.
func runUntil(t *testing.T, c *Consumer, want int, h Handler) {
	t.Helper()
	var handled sync.WaitGroup
	handled.Add(want)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(ctx context.Context, m kafka.Message) error {
			err := h(ctx, m)
			if err == nil {
				handled.Done()
			}
			return err
		})
	}()
	handled.Wait()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerCommitsPartitionsInOrder(t *testing.T) {
	var msgs []kafka.Message
	for i := range 12 {
		msgs = append(msgs, kafka.Message{Partition: i % 3, Offset: int64(i / 3)})
	}
	r := newFakeReader(msgs...)
	c := fastConsumer(r, 2)

	var mu sync.Mutex
	attempts := map[int]int{}
	runUntil(t, c, len(msgs), func(_ context.Context, m kafka.Message) error {
		if m.Partition == 1 && m.Offset == 1 {
			mu.Lock()
			defer mu.Unlock()
			attempts[1]++
			if attempts[1] < 3 {
				return errors.New("redis down")
			}
		}
		return nil
	})

	for p := range 3 {
		assert.Equal(t, []int64{0, 1, 2, 3}, r.commits(p), "partition %d", p)
	}
	assert.Equal(t, 3, attempts[1])
	assert.True(t, r.closed)
}

func TestConsumerDoesNotCommitPastFailedMessage(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Partition: 0, Offset: 0},
		kafka.Message{Partition: 0, Offset: 1},
		kafka.Message{Partition: 0, Offset: 2},
	)
	c := fastConsumer(r, 4)
	c.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	failing := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(_ context.Context, m kafka.Message) error {
			if m.Offset == 1 {
				close(failing)
				return errors.New("redis down")
			}
			return nil
		})
	}()

	<-failing
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int64{0}, r.commits(0), "offsets after the failing one stay uncommitted")
}

func TestConsumerGivesUpAfterMaxAttempts(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Partition: 0, Offset: 0},
		kafka.Message{Partition: 0, Offset: 1},
	)
	c := fastConsumer(r, 1)

	var mu sync.Mutex
	calls := 0
	runUntil(t, c, 1, func(_ context.Context, m kafka.Message) error {
		if m.Offset == 0 {
			mu.Lock()
			calls++
			mu.Unlock()
			return errors.New("poison")
		}
		return nil
	})

	assert.Equal(t, 3, calls)
	assert.Equal(t, []int64{0, 1}, r.commits(0))
}

func TestHeader(t *testing.T) {
	m := kafka.Message{Headers: []kafka.Header{{Key: "x-event-type", Value: []byte("OrderPlaced")}}}
	v, ok := Header(m, "x-event-type")
	assert.True(t, ok)
	assert.Equal(t, "OrderPlaced", v)
	_, ok = Header(m, "traceparent")
	assert.False(t, ok)
}
