package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/morphdex/morphdex/internal/analytics"
	"github.com/morphdex/morphdex/internal/engine"
	"github.com/morphdex/morphdex/internal/matchcache"
	"github.com/morphdex/morphdex/pkg/kafka"
	"github.com/morphdex/morphdex/pkg/resilience"
)

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewConsumer creates an IndexConsumer backed by the given Kafka consumer.
func NewConsumer(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that indexes every document
// event into the engine. The match cache, if present, is invalidated after
// each index operation; the collector, if present, receives an analytics
// event. Undecodable messages are logged and skipped.
func HandleMessage(eng *engine.Engine, cache *matchcache.Cache, collector *analytics.Collector) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IndexEvent](value)
		if err != nil {
			logger.Error("failed to decode index event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		start := time.Now()
		_, replaced := eng.Document(event.DocumentID)
		eng.Index(engine.Document(event.Fields), event.DocumentID)

		if cache != nil {
			err := resilience.WithTimeout(ctx, 2*time.Second, "cache-invalidate", func(ctx context.Context) error {
				return cache.Invalidate(ctx)
			})
			if err != nil {
				logger.Warn("match cache invalidation failed", "error", err)
			}
		}
		if collector != nil {
			collector.Track(analytics.IndexEvent{
				Type:       analytics.EventIndexDoc,
				DocumentID: event.DocumentID,
				Fields:     len(event.Fields),
				Replaced:   replaced,
				LatencyMs:  time.Since(start).Milliseconds(),
				Timestamp:  time.Now().UTC(),
			})
		}

		logger.Info("document indexed",
			"doc_id", event.DocumentID,
			"fields", len(event.Fields),
		)
		return nil
	}
}
