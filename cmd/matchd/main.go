package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/morphdex/morphdex/internal/analytics"
	"github.com/morphdex/morphdex/internal/analytics/aggregator"
	"github.com/morphdex/morphdex/internal/engine"
	"github.com/morphdex/morphdex/internal/ingest"
	"github.com/morphdex/morphdex/internal/matchcache"
	"github.com/morphdex/morphdex/internal/morphology"
	"github.com/morphdex/morphdex/internal/server"
	"github.com/morphdex/morphdex/pkg/config"
	"github.com/morphdex/morphdex/pkg/health"
	"github.com/morphdex/morphdex/pkg/kafka"
	"github.com/morphdex/morphdex/pkg/logger"
	"github.com/morphdex/morphdex/pkg/metrics"
	"github.com/morphdex/morphdex/pkg/middleware"
	"github.com/morphdex/morphdex/pkg/postgres"
	pkgredis "github.com/morphdex/morphdex/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting match service", "port", cfg.Server.Port, "morphology", cfg.Engine.Morphology)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
		slog.Info("metrics server started", "port", cfg.Metrics.Port)
	}

	eng := engine.New(
		morphology.FromName(cfg.Engine.Morphology),
		engine.WithMetrics(m),
	)

	var cache *matchcache.Cache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, match caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		cache = matchcache.New(redisClient, cfg.Redis, m)
		slog.Info("match cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	var collector *analytics.Collector
	var analyticsH *analytics.Handler
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		defer collector.Close()

		agg := analytics.NewAggregator(nil)
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
		agg.SetConsumer(consumer)
		go func() {
			if err := agg.Start(ctx); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		analyticsH = analytics.NewHandler(agg)
		slog.Info("analytics pipeline started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

		if db, err := postgres.New(cfg.Postgres); err != nil {
			slog.Warn("postgres unavailable, snapshot persistence disabled", "error", err)
		} else {
			defer db.Close()
			store := aggregator.NewStore(db)
			store.StartPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
			analyticsH.WithStore(store)
			slog.Info("analytics snapshots enabled", "interval", cfg.Analytics.SnapshotInterval)
		}
	}

	indexConsumer := ingest.NewConsumer(kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIndex,
		ingest.HandleMessage(eng, cache, collector),
	))
	go func() {
		if err := indexConsumer.Start(ctx); err != nil {
			slog.Error("index consumer error", "error", err)
		}
	}()
	slog.Info("index consumer started", "topic", cfg.Kafka.Topics.DocumentIndex)

	checker := health.NewChecker()
	checker.Register("engine", func(ctx context.Context) health.ComponentHealth {
		stats := eng.Stats()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents, %d terms", stats.Documents, stats.Terms),
		}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := server.New(eng, cache, collector, m, cfg.Engine, cfg.Match)

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/documents/{id}", h.IndexDocument)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.GetDocument)
	mux.HandleFunc("GET /api/v1/match", h.Match)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	if analyticsH != nil {
		mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", analyticsH.Snapshots)
		mux.HandleFunc("GET /api/v1/analytics/snapshots/latest", analyticsH.LatestSnapshot)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	limiter := middleware.NewRateLimiter(cfg.Match.RequestsPerMin, time.Minute)
	limiter.TrustProxyHeader = cfg.Match.TrustProxyHeader

	var chain http.Handler = mux
	chain = middleware.RateLimit(limiter)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("match service listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("match service stopped")
}
