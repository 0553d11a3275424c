// Package collector provides a batch-oriented event collector that
// accumulates Kafka events in memory and flushes them in bulk. The transcript
// loader uses it to publish document index events without one produce call
// per line.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/morphdex/morphdex/pkg/kafka"
	"github.com/morphdex/morphdex/pkg/resilience"
)

// Batch accumulates events and flushes them to Kafka either when the buffer
// reaches a configurable size or after a time interval.
type Batch struct {
	producer      *kafka.Producer
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
}

// NewBatch creates a Batch that flushes when the buffer reaches batchSize
// events or after flushInterval, whichever comes first.
func NewBatch(producer *kafka.Producer, batchSize int, flushInterval time.Duration) *Batch {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &Batch{
		producer:      producer,
		buffer:        make([]kafka.Event, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "batch-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the background flush loop.
func (b *Batch) Start(ctx context.Context) {
	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				b.Flush(ctx)
			case <-ctx.Done():
				// Final flush with a short deadline.
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				b.Flush(flushCtx)
				cancel()
				return
			}
		}
	}()
	b.logger.Info("batch collector started",
		"batch_size", b.batchSize,
		"flush_interval", b.flushInterval,
	)
}

// Track adds an event to the buffer. If the buffer reaches batchSize, an
// immediate flush is triggered.
func (b *Batch) Track(key string, value any) {
	b.mu.Lock()
	b.buffer = append(b.buffer, kafka.Event{Key: key, Value: value})
	shouldFlush := len(b.buffer) >= b.batchSize
	b.mu.Unlock()

	if shouldFlush {
		go b.Flush(context.Background())
	}
}

// Close waits for the background flush loop to finish.
func (b *Batch) Close() {
	<-b.done
}

// BufferLen returns the current number of buffered events.
func (b *Batch) BufferLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Flush publishes all buffered events in one batch write, retrying with
// backoff on transient broker errors. Batches that still fail are re-queued,
// capped at three batch sizes.
func (b *Batch) Flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buffer
	b.buffer = make([]kafka.Event, 0, b.batchSize)
	b.mu.Unlock()

	err := resilience.Retry(ctx, "batch-publish", resilience.RetryConfig{}, func() error {
		return b.producer.PublishBatch(ctx, batch)
	})
	if err != nil {
		b.logger.Error("batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
		b.mu.Lock()
		b.buffer = append(batch, b.buffer...)
		if len(b.buffer) > b.batchSize*3 {
			dropped := len(b.buffer) - b.batchSize*3
			b.buffer = b.buffer[:b.batchSize*3]
			b.logger.Warn("buffer overflow, events dropped", "dropped", dropped)
		}
		b.mu.Unlock()
		return
	}

	b.logger.Debug("batch flushed", "events", len(batch))
}
