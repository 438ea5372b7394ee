package kafka

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when processing succeeded and the offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	backoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, backoff: 200 * time.Millisecond}
}

// Start fetches until ctx is cancelled, fanning messages out to the
// worker pool. FetchMessage keeps offsets uncommitted until the handler
// succeeds; a failed message stays uncommitted so the group redelivers
// it, and the failing worker backs off before taking the next one.
// Workers drain fully before the reader is closed.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	jobs := make(chan kafka.Message, c.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					log.Printf("kafka handler: %s@%d left uncommitted: %v", m.Topic, m.Offset, err)
					time.Sleep(c.backoff)
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					log.Printf("kafka commit: %s@%d: %v", m.Topic, m.Offset, err)
				}
			}
		}()
	}

	var readErr error
loop:
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				readErr = err
			}
			break
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			break loop
		}
	}
	close(jobs)
	wg.Wait()
	_ = c.r.Close()
	return readErr
}
