package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/tableorder/internal/tracing"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message was processed and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	log         *zap.Logger
	r           reader
	workers     int
	maxAttempts int
	retryDelay  time.Duration
}

func NewConsumer(log *zap.Logger, brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
		StartOffset:    kafka.FirstOffset,
	})
	return newConsumer(log, r, workers)
}

func newConsumer(log *zap.Logger, r reader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{log: log, r: r, workers: workers, maxAttempts: 5, retryDelay: 200 * time.Millisecond}
}

// Start fetches until ctx is cancelled. Every partition is served by exactly
// one worker, so messages of a partition are handled and committed in offset
// order and a commit never passes a message that is still being retried.
// A message whose handler keeps failing is retried maxAttempts times, then
// logged and committed so the partition can move on.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, id, h, m)
			}
		}(i, lanes[i])
	}
	stop := func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		lane := lanes[c.lane(m.Partition)]
		select {
		case lane <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) lane(partition int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % c.workers
}

func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) {
	if ctx.Err() != nil {
		// shutting down: leave the rest of the lane uncommitted
		return
	}
	mctx := tracing.ExtractKafkaHeaders(ctx, m.Headers)
	fields := []zap.Field{
		zap.Int("worker", worker),
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset),
	}
	for attempt := 1; ; attempt++ {
		err := h(mctx, m)
		if err == nil {
			break
		}
		if attempt >= c.maxAttempts {
			c.log.Error("message dropped after retries", append(fields, zap.Int("attempts", attempt), zap.Error(err))...)
			break
		}
		c.log.Warn("message handler failed", append(fields, zap.Int("attempt", attempt), zap.Error(err))...)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay):
		}
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		if ctx.Err() == nil {
			c.log.Error("commit failed", append(fields, zap.Error(err))...)
		}
	}
}
