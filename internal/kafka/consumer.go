package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Handler returns nil only when the message was processed and its offset may
// be committed. A failed message is retried in place until it succeeds or the
// consumer stops.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r          messageReader
	workers    int
	backoff    time.Duration
	maxBackoff time.Duration
	log        log.FieldLogger
}

// NewConsumer joins group and reads every topic in topics through a single
// group member.
func NewConsumer(brokers []string, group string, topics []string, workers int, logger log.FieldLogger) *Consumer {
	r := kafka.NewReader(readerConfig(brokers, group, topics))
	return newConsumer(r, workers, logger.WithFields(log.Fields{"group": group, "topics": topics}))
}

func readerConfig(brokers []string, group string, topics []string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
	}
}

func newConsumer(r messageReader, workers int, logger log.FieldLogger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:          r,
		workers:    workers,
		backoff:    200 * time.Millisecond,
		maxBackoff: 10 * time.Second,
		log:        logger,
	}
}

type partitionKey struct {
	topic     string
	partition int
}

// Start fetches messages and hands them to the worker pool until ctx is
// cancelled. It returns nil on shutdown and the fetch error otherwise. Every
// partition is pinned to one worker, so offsets of a partition are handled
// and committed in order.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 16)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			// after ctx ends the loop only drains, leaving offsets uncommitted
			for m := range jobs {
				c.process(ctx, id, h, m)
			}
		}(i, queues[i])
	}

	err := c.dispatch(ctx, queues)
	for _, q := range queues {
		close(q)
	}
	wg.Wait()
	return err
}

func (c *Consumer) dispatch(ctx context.Context, queues []chan kafka.Message) error {
	owner := make(map[partitionKey]int)
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		key := partitionKey{topic: m.Topic, partition: m.Partition}
		w, ok := owner[key]
		if !ok {
			w = len(owner) % len(queues)
			owner[key] = w
		}
		select {
		case queues[w] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// process runs h until it succeeds and then commits the offset. If ctx ends
// first the offset stays uncommitted and the message is fetched again by
// whoever owns the partition next.
func (c *Consumer) process(ctx context.Context, worker int, h Handler, m kafka.Message) {
	entry := c.log.WithFields(log.Fields{
		"worker":    worker,
		"topic":     m.Topic,
		"partition": m.Partition,
		"offset":    m.Offset,
	})
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return
		}
		err := h(ctx, m)
		if err == nil {
			break
		}
		entry.WithError(err).WithField("attempt", attempt).Warn("handler failed; retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
		wait *= 2
		if wait > c.maxBackoff {
			wait = c.maxBackoff
		}
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		entry.WithError(err).Error("commit offset")
	}
}
