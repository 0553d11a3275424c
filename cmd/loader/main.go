// Command loader reads a transcript file and publishes one index event per
// non-blank line to the document index topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/morphdex/morphdex/internal/analytics/collector"
	"github.com/morphdex/morphdex/internal/ingest"
	"github.com/morphdex/morphdex/pkg/config"
	"github.com/morphdex/morphdex/pkg/kafka"
	"github.com/morphdex/morphdex/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	filePath := flag.String("file", "transcript.txt", "path to transcript file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting transcript loader",
		"file", *filePath,
		"topic", cfg.Kafka.Topics.DocumentIndex,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIndex)
	defer producer.Close()

	batch := collector.NewBatch(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
	batchCtx, cancelBatch := context.WithCancel(ctx)
	batch.Start(batchCtx)

	source := ingest.NewTranscriptSource(*filePath)
	start := time.Now()
	var published int64

	err = source.Each(func(id int64, fields map[string]string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch.Track(strconv.FormatInt(id, 10), ingest.IndexEvent{
			DocumentID: id,
			Fields:     fields,
			EnqueuedAt: time.Now().UTC(),
		})
		published++
		return nil
	})
	if err != nil {
		slog.Error("transcript load failed", "error", err)
		cancelBatch()
		batch.Close()
		os.Exit(1)
	}

	batch.Flush(ctx)
	cancelBatch()
	batch.Close()

	slog.Info("transcript loaded",
		"documents", published,
		"elapsed", time.Since(start),
	)
}
